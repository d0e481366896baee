package auth

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

func genRoleSet() gopter.Gen {
	return gen.UInt8Range(0, 3).Map(func(v uint8) user.RoleSet {
		return user.RoleSet(v)
	})
}

func genProfile() gopter.Gen {
	return gopter.CombineGens(gen.Bool(), genRoleSet()).Map(func(vals []interface{}) *user.Profile {
		if !vals[0].(bool) {
			return nil
		}
		return &user.Profile{ID: "u", Roles: vals[1].(user.RoleSet)}
	})
}

func TestDecideProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("loading always yields pending", prop.ForAll(
		func(u *user.Profile, required user.RoleSet) bool {
			return Decide(true, u, required).Kind == Pending
		},
		genProfile(), genRoleSet(),
	))

	properties.Property("no user always redirects to login", prop.ForAll(
		func(required user.RoleSet) bool {
			d := Decide(false, nil, required)
			return d.Kind == Redirect && d.Location == LoginPath
		},
		genRoleSet(),
	))

	properties.Property("empty requirement renders for any user", prop.ForAll(
		func(roles user.RoleSet) bool {
			return Decide(false, &user.Profile{ID: "u", Roles: roles}, 0).Kind == Render
		},
		genRoleSet(),
	))

	properties.Property("render with requirement implies intersection", prop.ForAll(
		func(u *user.Profile, required user.RoleSet) bool {
			d := Decide(false, u, required)
			if d.Kind != Render || required.IsEmpty() {
				return true
			}
			return u != nil && u.Roles.Intersects(required)
		},
		genProfile(), genRoleSet(),
	))

	properties.Property("authenticated users are never redirected", prop.ForAll(
		func(roles, required user.RoleSet) bool {
			return Decide(false, &user.Profile{ID: "u", Roles: roles}, required).Kind != Redirect
		},
		genRoleSet(), genRoleSet(),
	))

	properties.Property("intersection is symmetric", prop.ForAll(
		func(a, b user.RoleSet) bool {
			return a.Intersects(b) == b.Intersects(a)
		},
		genRoleSet(), genRoleSet(),
	))

	properties.TestingRun(t)
}
