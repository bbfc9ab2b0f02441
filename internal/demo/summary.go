package demo

import "sort"

// TeamSummary is a printable view of a team graph.
type TeamSummary struct {
	Name    string          `json:"name" yaml:"name"`
	Lead    string          `json:"lead,omitempty" yaml:"lead,omitempty"`
	Members []MemberSummary `json:"members" yaml:"members"`
}

// MemberSummary describes one roster entry.
type MemberSummary struct {
	Name     string           `json:"name" yaml:"name"`
	Kind     string           `json:"kind" yaml:"kind"`
	Age      int32            `json:"age" yaml:"age"`
	Nickname string           `json:"nickname,omitempty" yaml:"nickname,omitempty"`
	Friend   string           `json:"friend,omitempty" yaml:"friend,omitempty"`
	Title    string           `json:"title,omitempty" yaml:"title,omitempty"`
	Skills   map[string]int64 `json:"skills,omitempty" yaml:"skills,omitempty"`
}

// Summarize flattens t for display.
func Summarize(t *Team) *TeamSummary {
	s := &TeamSummary{Name: t.Name}
	if t.Lead != nil {
		s.Lead = t.Lead.Base().Name
	}
	if t.Members == nil {
		return s
	}
	for _, m := range t.Members.Items {
		s.Members = append(s.Members, summarizeMember(m))
	}
	return s
}

func summarizeMember(m Member) MemberSummary {
	p := m.Base()
	ms := MemberSummary{Name: p.Name, Kind: "person", Age: p.Age}
	if p.Nickname != nil {
		ms.Nickname = *p.Nickname
	}
	if p.Friend != nil {
		ms.Friend = p.Friend.Base().Name
	}
	if e, ok := m.(*Employee); ok {
		ms.Kind = "employee"
		ms.Title = e.Title
		if e.Skills != nil && e.Skills.Len() > 0 {
			ms.Skills = make(map[string]int64, e.Skills.Len())
			e.Skills.Range(func(k string, v int64) bool {
				ms.Skills[k] = v
				return true
			})
		}
	}
	return ms
}

// SkillNames returns the employee's skills in sorted order.
func (e *Employee) SkillNames() []string {
	if e.Skills == nil {
		return nil
	}
	names := e.Skills.Keys()
	sort.Strings(names)
	return names
}
