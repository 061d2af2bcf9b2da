package auth

import (
	"strings"

	"github.com/newdoli/dolisync/pkg/store"
)

// DerivePermissions computes the effective permission set for a user.
// Admins hold every known permission. Everyone else gets the union of
// their groups' permission lists and their direct permissions, deduped
// in first-seen order: groups in the order the user references them,
// then direct grants.
func DerivePermissions(
	user *store.User,
	groups []store.Group,
	all []store.Permission,
) []string {
	if user == nil {
		return nil
	}

	if user.Admin {
		names := make([]string, 0, len(all))
		for _, p := range all {
			names = append(names, p.Name)
		}

		return names
	}

	byID := make(map[uint]*store.Group, len(groups))
	for i := range groups {
		byID[groups[i].ID] = &groups[i]
	}

	seen := make(map[string]struct{})

	var derived []string

	add := func(name string) {
		if name == "" {
			return
		}

		if _, ok := seen[name]; ok {
			return
		}

		seen[name] = struct{}{}
		derived = append(derived, name)
	}

	for _, gid := range user.GroupIDs {
		group, ok := byID[gid]
		if !ok {
			continue
		}

		for _, name := range group.Permissions {
			add(name)
		}
	}

	for _, name := range user.Permissions {
		add(name)
	}

	return derived
}

// moduleOfPermission extracts the module prefix from a permission name
// shaped "<module>_<verb>". Names without an underscore belong to no
// module.
func moduleOfPermission(name string) string {
	idx := strings.Index(name, "_")
	if idx <= 0 {
		return ""
	}

	return name[:idx]
}
