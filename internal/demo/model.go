// Package demo is a small organisation graph used by the command line tool
// and the service tests. Persons reference each other and their team, so the
// graph is cyclic; employees extend persons through a super bundle.
package demo

import (
	"github.com/graphpack/pkg/bundle"
	"github.com/graphpack/pkg/container"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
	"github.com/graphpack/pkg/packer"
	"github.com/graphpack/pkg/registry"
)

// Entity type names.
const (
	TeamType     = "demo.Team"
	PersonType   = "demo.Person"
	EmployeeType = "demo.Employee"
	MemberType   = "demo.Member"
)

// Bundle versions written by this build. Person version 1 had no nickname.
const (
	teamVersion     = 1
	personVersion   = 2
	employeeVersion = 1
)

var (
	memberCodec = container.Entities[Member](MemberType)
	skillKeys   = container.Strings()
	skillLevels = container.Int64s()
)

// Member is a team member: a *Person or an *Employee.
type Member interface {
	packer.Packable
	Base() *Person
}

// Team is the root of the demo graph.
type Team struct {
	Name    string
	Members *container.List[Member]
	Lead    Member

	membersRef identity.Reference
	leadRef    identity.Reference
}

// NewTeam creates a team with an empty roster.
func NewTeam(name string) *Team {
	return &Team{Name: name, Members: container.NewList(memberCodec)}
}

// Add appends members to the roster and points them at the team.
func (t *Team) Add(members ...Member) {
	for _, m := range members {
		m.Base().Team = t
		t.Members.Items = append(t.Members.Items, m)
	}
}

// EntityType implements packer.Packable.
func (t *Team) EntityType() string { return TeamType }

// DescribeSelf implements packer.Packable.
func (t *Team) DescribeSelf(pc *packer.Context) (*bundle.Bundle, error) {
	members, err := pc.RefHolder(t.Members, true)
	if err != nil {
		return nil, err
	}
	lead, err := pc.RefHolder(t.Lead, false)
	if err != nil {
		return nil, err
	}
	b := bundle.New(TeamType, teamVersion)
	return b, b.PutAll(
		bundle.Field{Name: "name", Holder: holder.String(t.Name)},
		bundle.Field{Name: "members", Holder: members},
		bundle.Field{Name: "lead", Holder: lead},
	)
}

// CompleteSelf implements registry.Completer. The roster must be finished;
// the lead only needs a shell.
func (t *Team) CompleteSelf(uc registry.UnpackContext) (registry.Status, error) {
	if !registry.AllFinished(uc, t.membersRef) || !registry.AllAvailable(uc, t.leadRef) {
		return registry.NotYetReady, nil
	}
	members, err := registry.ResolveAs[*container.List[Member]](uc, t.membersRef)
	if err != nil {
		return 0, err
	}
	lead, err := registry.ResolveAs[Member](uc, t.leadRef)
	if err != nil {
		return 0, err
	}
	t.Members, t.Lead = members, lead
	return registry.Done, nil
}

func newTeamShell(b *bundle.Bundle, _ registry.UnpackContext) (any, error) {
	name, err := b.String("name")
	if err != nil {
		return nil, err
	}
	members, err := b.Ref("members")
	if err != nil {
		return nil, err
	}
	lead, err := b.Ref("lead")
	if err != nil {
		return nil, err
	}
	return &Team{Name: name, membersRef: members, leadRef: lead}, nil
}

// Person is a team member with an optional nickname and a friend.
type Person struct {
	Name     string
	Age      int32
	Nickname *string
	Friend   Member
	Team     *Team

	friendRef identity.Reference
	teamRef   identity.Reference
}

// Base implements Member.
func (p *Person) Base() *Person { return p }

// EntityType implements packer.Packable.
func (p *Person) EntityType() string { return PersonType }

// DescribeSelf implements packer.Packable.
func (p *Person) DescribeSelf(pc *packer.Context) (*bundle.Bundle, error) {
	nickname, err := holder.OptString(p.Nickname, false)
	if err != nil {
		return nil, err
	}
	friend, err := pc.RefHolder(p.Friend, false)
	if err != nil {
		return nil, err
	}
	team, err := pc.RefHolder(p.Team, false)
	if err != nil {
		return nil, err
	}
	b := bundle.New(PersonType, personVersion)
	return b, b.PutAll(
		bundle.Field{Name: "name", Holder: holder.String(p.Name)},
		bundle.Field{Name: "age", Holder: holder.Int(p.Age)},
		bundle.Field{Name: "nickname", Holder: nickname},
		bundle.Field{Name: "friend", Holder: friend},
		bundle.Field{Name: "team", Holder: team},
	)
}

// CompleteSelf implements registry.Completer. Friend and team only need
// shells, which is what lets mutual friends finish in the same sweep.
func (p *Person) CompleteSelf(uc registry.UnpackContext) (registry.Status, error) {
	if !registry.AllAvailable(uc, p.friendRef, p.teamRef) {
		return registry.NotYetReady, nil
	}
	friend, err := registry.ResolveAs[Member](uc, p.friendRef)
	if err != nil {
		return 0, err
	}
	team, err := registry.ResolveAs[*Team](uc, p.teamRef)
	if err != nil {
		return 0, err
	}
	p.Friend, p.Team = friend, team
	return registry.Done, nil
}

// readPerson fills p from a demo.Person bundle of any supported version.
func readPerson(b *bundle.Bundle, p *Person) error {
	var err error
	if p.Name, err = b.String("name"); err != nil {
		return err
	}
	if p.Age, err = b.Int("age"); err != nil {
		return err
	}
	if b.Version >= 2 {
		h, err := b.Require("nickname")
		if err != nil {
			return err
		}
		nick, ok, err := h.AsString()
		if err != nil {
			return err
		}
		if ok {
			p.Nickname = &nick
		}
	}
	if p.friendRef, err = b.Ref("friend"); err != nil {
		return err
	}
	p.teamRef, err = b.Ref("team")
	return err
}

func newPersonShell(b *bundle.Bundle, _ registry.UnpackContext) (any, error) {
	p := &Person{}
	if err := readPerson(b, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Employee is a Person with a title, a salary and skill levels.
type Employee struct {
	Person
	Title  string
	Salary float64
	Skills *container.Map[string, int64]

	skillsRef identity.Reference
}

// NewEmployee creates an employee with no skills recorded.
func NewEmployee(name string, age int32, title string, salary float64) *Employee {
	return &Employee{
		Person: Person{Name: name, Age: age},
		Title:  title,
		Salary: salary,
		Skills: container.NewMap(skillKeys, skillLevels),
	}
}

// Base implements Member.
func (e *Employee) Base() *Person { return &e.Person }

// EntityType implements packer.Packable.
func (e *Employee) EntityType() string { return EmployeeType }

// DescribeSelf implements packer.Packable. The person part travels as the
// super bundle.
func (e *Employee) DescribeSelf(pc *packer.Context) (*bundle.Bundle, error) {
	super, err := e.Person.DescribeSelf(pc)
	if err != nil {
		return nil, err
	}
	skills, err := pc.RefHolder(e.Skills, true)
	if err != nil {
		return nil, err
	}
	b := bundle.New(EmployeeType, employeeVersion).WithSuper(super)
	return b, b.PutAll(
		bundle.Field{Name: "title", Holder: holder.String(e.Title)},
		bundle.Field{Name: "salary", Holder: holder.Double(e.Salary)},
		bundle.Field{Name: "skills", Holder: skills},
	)
}

// CompleteSelf implements registry.Completer.
func (e *Employee) CompleteSelf(uc registry.UnpackContext) (registry.Status, error) {
	if !registry.AllFinished(uc, e.skillsRef) {
		return registry.NotYetReady, nil
	}
	if status, err := e.Person.CompleteSelf(uc); err != nil || status != registry.Done {
		return status, err
	}
	skills, err := registry.ResolveAs[*container.Map[string, int64]](uc, e.skillsRef)
	if err != nil {
		return 0, err
	}
	e.Skills = skills
	return registry.Done, nil
}

func newEmployeeShell(b *bundle.Bundle, _ registry.UnpackContext) (any, error) {
	e := &Employee{}
	if b.Super == nil {
		return nil, structuralf("%s bundle has no %s super bundle", EmployeeType, PersonType)
	}
	if err := readPerson(b.Super, &e.Person); err != nil {
		return nil, err
	}
	var err error
	if e.Title, err = b.String("title"); err != nil {
		return nil, err
	}
	if e.Salary, err = b.Double("salary"); err != nil {
		return nil, err
	}
	if e.skillsRef, err = b.Ref("skills"); err != nil {
		return nil, err
	}
	return e, nil
}
