package demo

import (
	"github.com/graphpack/pkg/container"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/registry"
)

// Register adds the demo factories, including the roster list and the
// skills map, to reg.
func Register(reg *registry.Registry) error {
	steps := []func() error{
		func() error { return reg.Register(TeamType, teamVersion, teamVersion, newTeamShell) },
		func() error { return reg.Register(PersonType, 1, personVersion, newPersonShell) },
		func() error { return reg.Register(EmployeeType, employeeVersion, employeeVersion, newEmployeeShell) },
		func() error { return container.RegisterList(reg, memberCodec) },
		func() error { return container.RegisterMap(reg, skillKeys, skillLevels) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding only the demo factories.
func NewRegistry(opts ...registry.Option) (*registry.Registry, error) {
	reg := registry.New(opts...)
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// SampleTeam builds a three person team: two employees and a contractor.
// Alice and Bob are mutual friends, Carol befriends Alice.
func SampleTeam() *Team {
	team := NewTeam("Platform")

	alice := NewEmployee("Alice", 34, "Staff Engineer", 182000)
	alice.Skills.Set("go", 5)
	alice.Skills.Set("sql", 4)
	alice.Skills.Set("kubernetes", 3)

	nick := "bobby"
	bob := &Person{Name: "Bob", Age: 29, Nickname: &nick}

	carol := NewEmployee("Carol", 41, "Engineering Manager", 205000)
	carol.Skills.Set("hiring", 5)

	alice.Friend = bob
	bob.Friend = alice
	carol.Friend = alice

	team.Add(alice, bob, carol)
	team.Lead = carol
	return team
}

func structuralf(format string, args ...any) error {
	return apperrors.Newf(apperrors.CodeStructural, format, args...)
}
