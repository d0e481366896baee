package user

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var roleTags = []Role{RoleAdmin, RoleUser, Role("AUDITOR"), Role("")}

func genRoles() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, len(roleTags)-1).Map(func(i int) Role {
		return roleTags[i]
	}))
}

func TestRoleSetProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("only known roles are members", prop.ForAll(
		func(roles []Role) bool {
			s := NewRoleSet(roles...)
			for _, r := range s.Roles() {
				if r != RoleAdmin && r != RoleUser {
					return false
				}
			}
			return !s.Has(Role("AUDITOR"))
		},
		genRoles(),
	))

	properties.Property("string form parses back to the same set", prop.ForAll(
		func(roles []Role) bool {
			s := NewRoleSet(roles...)
			back, dropped := ParseRoleSet(strings.ToLower(s.String()))
			return back == s && len(dropped) == 0
		},
		genRoles(),
	))

	properties.Property("union intersects each non-empty operand", prop.ForAll(
		func(a, b []Role) bool {
			x, y := NewRoleSet(a...), NewRoleSet(b...)
			u := x.Union(y)
			return (x.IsEmpty() || u.Intersects(x)) && (y.IsEmpty() || u.Intersects(y))
		},
		genRoles(), genRoles(),
	))

	properties.TestingRun(t)
}
