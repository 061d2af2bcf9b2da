package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/newdoli/dolisync/pkg/store"
)

func TestDerivePermissions_AdminHoldsEverything(t *testing.T) {
	admin := &store.User{ID: 1, Login: "root", Admin: true}

	all := []store.Permission{
		{Name: "user_read"},
		{Name: "user_write"},
		{Name: "thirdparty_read"},
	}

	got := DerivePermissions(admin, nil, all)
	assert.Equal(t, []string{"user_read", "user_write", "thirdparty_read"}, got)
}

func TestDerivePermissions_UnionDedupesInFirstSeenOrder(t *testing.T) {
	user := &store.User{
		ID:          2,
		Login:       "toto",
		GroupIDs:    []uint{10, 20, 99}, // 99 does not exist
		Permissions: []string{"product_read", "user_read"},
	}

	groups := []store.Group{
		{ID: 20, Permissions: []string{"thirdparty_read", "user_read"}},
		{ID: 10, Permissions: []string{"user_read", "user_write"}},
	}

	got := DerivePermissions(user, groups, nil)

	// Groups resolve in the order the user references them, then the
	// direct grants; duplicates keep their first position.
	assert.Equal(t, []string{
		"user_read", "user_write", "thirdparty_read", "product_read",
	}, got)
}

func TestDerivePermissions_Idempotent(t *testing.T) {
	user := &store.User{
		ID:          3,
		GroupIDs:    []uint{1},
		Permissions: []string{"user_read"},
	}
	groups := []store.Group{{ID: 1, Permissions: []string{"group_read"}}}

	first := DerivePermissions(user, groups, nil)
	second := DerivePermissions(user, groups, nil)

	assert.Equal(t, first, second)
}

func TestDerivePermissions_NilUser(t *testing.T) {
	assert.Nil(t, DerivePermissions(nil, nil, nil))
}

func TestModuleOfPermission(t *testing.T) {
	assert.Equal(t, "user", moduleOfPermission("user_read"))
	assert.Equal(t, "thirdparty", moduleOfPermission("thirdparty_all"))
	assert.Equal(t, "", moduleOfPermission("standalone"))
	assert.Equal(t, "", moduleOfPermission("_leading"))
}
