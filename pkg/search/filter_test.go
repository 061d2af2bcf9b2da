package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newdoli/dolisync/pkg/search"
	"github.com/newdoli/dolisync/pkg/store"
)

func boolPtr(b bool) *bool { return &b }

func sampleThirdParties() []store.ThirdParty {
	return []store.ThirdParty{
		{ID: 1, Name: "Acme SARL", Town: "Paris", Zip: "75001", Client: true, Status: "active"},
		{ID: 2, Name: "Globex", Town: "Lyon", Zip: "69000", Supplier: true, Status: "active"},
		{ID: 3, Name: "Paris Nord Transports", Town: "Saint-Denis", Zip: "93200", Client: true, Prospect: true, Status: "inactive"},
		{ID: 4, Name: "Initech", Town: "Paris", Zip: "75011", Supplier: true, Status: "active"},
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "empty", query: "", expected: nil},
		{name: "blank", query: "   \t ", expected: nil},
		{name: "lowercases", query: "Acme", expected: []string{"acme"}},
		{name: "splits on runs", query: "  paris   75 ", expected: []string{"paris", "75"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, search.Tokenize(tt.query))
		})
	}
}

func TestFilterThirdParties_TokensAreANDed(t *testing.T) {
	items := sampleThirdParties()

	// "paris 75" must match rows containing both tokens anywhere in the
	// concatenated fields: Acme (town + zip) and Initech (town + zip),
	// but not the Saint-Denis company whose zip lacks "75".
	got := search.FilterThirdParties(items, "paris 75", search.ThirdPartyFacets{})

	require.Len(t, got, 2)
	assert.Equal(t, uint(1), got[0].ID)
	assert.Equal(t, uint(4), got[1].ID)
}

func TestFilterThirdParties_CaseInsensitive(t *testing.T) {
	items := sampleThirdParties()

	got := search.FilterThirdParties(items, "ACME", search.ThirdPartyFacets{})

	require.Len(t, got, 1)
	assert.Equal(t, "Acme SARL", got[0].Name)
}

func TestFilterThirdParties_Facets(t *testing.T) {
	items := sampleThirdParties()

	t.Run("client only", func(t *testing.T) {
		got := search.FilterThirdParties(items, "", search.ThirdPartyFacets{
			Client: boolPtr(true),
		})
		require.Len(t, got, 2)
		assert.Equal(t, uint(1), got[0].ID)
		assert.Equal(t, uint(3), got[1].ID)
	})

	t.Run("explicit false excludes", func(t *testing.T) {
		got := search.FilterThirdParties(items, "", search.ThirdPartyFacets{
			Supplier: boolPtr(false),
		})
		require.Len(t, got, 2)
	})

	t.Run("status", func(t *testing.T) {
		got := search.FilterThirdParties(items, "", search.ThirdPartyFacets{
			Status: "inactive",
		})
		require.Len(t, got, 1)
		assert.Equal(t, uint(3), got[0].ID)
	})

	t.Run("query and facets combine", func(t *testing.T) {
		got := search.FilterThirdParties(items, "paris", search.ThirdPartyFacets{
			Supplier: boolPtr(true),
		})
		require.Len(t, got, 1)
		assert.Equal(t, "Initech", got[0].Name)
	})
}

func TestFilterThirdParties_IdentityWhenUnconstrained(t *testing.T) {
	items := sampleThirdParties()

	got := search.FilterThirdParties(items, "", search.ThirdPartyFacets{})

	assert.Equal(t, items, got)
}

func TestFilterThirdParties_OutputIsSubsetInOrder(t *testing.T) {
	items := sampleThirdParties()

	got := search.FilterThirdParties(items, "a", search.ThirdPartyFacets{})

	var lastIdx = -1

	for _, g := range got {
		found := false

		for i, item := range items {
			if item.ID == g.ID {
				assert.Greater(t, i, lastIdx, "order preserved")
				lastIdx = i
				found = true

				break
			}
		}

		assert.True(t, found, "every result comes from the input")
	}
}

func TestFilterProducts(t *testing.T) {
	items := []store.Product{
		{ID: 1, Ref: "CHAIR-01", Label: "Office Chair", Type: "product", StatusLabel: "onsell", Category: "furniture"},
		{ID: 2, Ref: "SVC-AUDIT", Label: "Annual Audit", Type: "service", StatusLabel: "onsell", Category: "consulting"},
		{ID: 3, Ref: "DESK-02", Label: "Standing Desk", Type: "product", StatusLabel: "notonsell", Category: "furniture"},
	}

	t.Run("query over label and ref", func(t *testing.T) {
		got := search.FilterProducts(items, "chair", search.ProductFacets{})
		require.Len(t, got, 1)
		assert.Equal(t, uint(1), got[0].ID)
	})

	t.Run("type facet", func(t *testing.T) {
		got := search.FilterProducts(items, "", search.ProductFacets{Type: "service"})
		require.Len(t, got, 1)
		assert.Equal(t, "Annual Audit", got[0].Label)
	})

	t.Run("category and status combine", func(t *testing.T) {
		got := search.FilterProducts(items, "", search.ProductFacets{
			Category: "furniture",
			Status:   "onsell",
		})
		require.Len(t, got, 1)
		assert.Equal(t, uint(1), got[0].ID)
	})

	t.Run("identity", func(t *testing.T) {
		assert.Equal(t, items, search.FilterProducts(items, "", search.ProductFacets{}))
	})
}

func TestFilterUsers(t *testing.T) {
	items := []store.User{
		{ID: 1, Login: "toto", Firstname: "Toto", Lastname: "Martin", Email: "toto@example.org"},
		{ID: 2, Login: "jdupont", Firstname: "Jean", Lastname: "Dupont", Email: "jean@example.org"},
	}

	got := search.FilterUsers(items, "dupont")
	require.Len(t, got, 1)
	assert.Equal(t, "jdupont", got[0].Login)

	assert.Equal(t, items, search.FilterUsers(items, ""))
	assert.Empty(t, search.FilterUsers(items, "nobody"))
}
