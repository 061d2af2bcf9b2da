// Package search filters mirrored collections with free-text queries
// and facet constraints. Everything here is pure: inputs are never
// mutated and output order follows input order.
package search

import (
	"strings"

	"github.com/newdoli/dolisync/pkg/store"
)

// Tokenize lowercases the query and splits it on whitespace runs.
// An empty or blank query yields no tokens.
func Tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// matches reports whether every token appears as a substring of the
// lowercased haystack. No tokens means everything matches.
func matches(tokens []string, fields ...string) bool {
	if len(tokens) == 0 {
		return true
	}

	haystack := strings.ToLower(strings.Join(fields, " "))

	for _, token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}

	return true
}

// ThirdPartyFacets constrains a third-party search. Nil pointers and
// empty strings leave their dimension unconstrained.
type ThirdPartyFacets struct {
	Client   *bool
	Supplier *bool
	Prospect *bool
	Status   string
}

func (f ThirdPartyFacets) match(tp *store.ThirdParty) bool {
	if f.Client != nil && tp.Client != *f.Client {
		return false
	}

	if f.Supplier != nil && tp.Supplier != *f.Supplier {
		return false
	}

	if f.Prospect != nil && tp.Prospect != *f.Prospect {
		return false
	}

	if f.Status != "" && tp.Status != f.Status {
		return false
	}

	return true
}

// FilterThirdParties returns the third parties matching every query
// token and every facet, preserving input order.
func FilterThirdParties(
	items []store.ThirdParty,
	query string,
	facets ThirdPartyFacets,
) []store.ThirdParty {
	tokens := Tokenize(query)

	out := make([]store.ThirdParty, 0, len(items))

	for i := range items {
		tp := &items[i]

		if !facets.match(tp) {
			continue
		}

		if !matches(tokens,
			tp.Name, tp.NameAlias, tp.Email, tp.Address,
			tp.Zip, tp.Town, tp.Phone, tp.NotePublic, tp.NotePrivate,
		) {
			continue
		}

		out = append(out, *tp)
	}

	return out
}

// ProductFacets constrains a product search. Empty strings leave their
// dimension unconstrained.
type ProductFacets struct {
	Type     string
	Status   string
	Category string
}

func (f ProductFacets) match(p *store.Product) bool {
	if f.Type != "" && p.Type != f.Type {
		return false
	}

	if f.Status != "" && p.StatusLabel != f.Status {
		return false
	}

	if f.Category != "" && p.Category != f.Category {
		return false
	}

	return true
}

// FilterProducts returns the products matching every query token and
// every facet, preserving input order.
func FilterProducts(
	items []store.Product,
	query string,
	facets ProductFacets,
) []store.Product {
	tokens := Tokenize(query)

	out := make([]store.Product, 0, len(items))

	for i := range items {
		p := &items[i]

		if !facets.match(p) {
			continue
		}

		if !matches(tokens, p.Label, p.Ref, p.Description, p.Category) {
			continue
		}

		out = append(out, *p)
	}

	return out
}

// FilterUsers returns the users matching every query token over login,
// names, and email, preserving input order.
func FilterUsers(items []store.User, query string) []store.User {
	tokens := Tokenize(query)

	out := make([]store.User, 0, len(items))

	for i := range items {
		u := &items[i]

		if !matches(tokens, u.Login, u.Firstname, u.Lastname, u.Email) {
			continue
		}

		out = append(out, *u)
	}

	return out
}
