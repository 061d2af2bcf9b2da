package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newdoli/dolisync/pkg/search"
)

var (
	searchClient   string
	searchSupplier string
	searchProspect string
	searchStatus   string
	searchType     string
	searchCategory string
)

var searchCmd = &cobra.Command{
	Use:   "search <thirdparties|products> [query...]",
	Short: "Search the local mirror",
	Long: `Search the mirrored collections without touching the network.
Query tokens are ANDed; facet flags narrow the result further.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchClient, "client", "",
		"filter third parties by client flag (true/false)")
	searchCmd.Flags().StringVar(&searchSupplier, "supplier", "",
		"filter third parties by supplier flag (true/false)")
	searchCmd.Flags().StringVar(&searchProspect, "prospect", "",
		"filter third parties by prospect flag (true/false)")
	searchCmd.Flags().StringVar(&searchStatus, "status", "",
		"filter by status")
	searchCmd.Flags().StringVar(&searchType, "type", "",
		"filter products by type (product/service)")
	searchCmd.Flags().StringVar(&searchCategory, "category", "",
		"filter products by category")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	collection := args[0]
	query := strings.Join(args[1:], " ")

	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	switch collection {
	case "thirdparties":
		return searchThirdParties(ctx, a, query)
	case "products":
		return searchProducts(ctx, a, query)
	default:
		return fmt.Errorf("unknown collection %q (use thirdparties or products)", collection)
	}
}

func searchThirdParties(ctx context.Context, a *app, query string) error {
	items, err := a.store.ListThirdParties(ctx)
	if err != nil {
		return fmt.Errorf("reading mirror: %w", err)
	}

	facets := search.ThirdPartyFacets{
		Client:   parseTriState(searchClient),
		Supplier: parseTriState(searchSupplier),
		Prospect: parseTriState(searchProspect),
		Status:   searchStatus,
	}

	results := search.FilterThirdParties(items, query, facets)

	for _, tp := range results {
		kind := make([]string, 0, 3)

		if tp.Client {
			kind = append(kind, "client")
		}

		if tp.Supplier {
			kind = append(kind, "supplier")
		}

		if tp.Prospect {
			kind = append(kind, "prospect")
		}

		fmt.Printf("%6d  %-30s %-20s %s\n",
			tp.ID, tp.Name, tp.Town, strings.Join(kind, ","))
	}

	fmt.Printf("%d result(s)\n", len(results))

	return nil
}

func searchProducts(ctx context.Context, a *app, query string) error {
	items, err := a.store.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("reading mirror: %w", err)
	}

	facets := search.ProductFacets{
		Type:     searchType,
		Status:   searchStatus,
		Category: searchCategory,
	}

	results := search.FilterProducts(items, query, facets)

	for _, p := range results {
		fmt.Printf("%6d  %-15s %-30s %10.2f\n", p.ID, p.Ref, p.Label, p.Price)
	}

	fmt.Printf("%d result(s)\n", len(results))

	return nil
}

// parseTriState maps a flag value onto a tri-state facet: empty means
// unconstrained.
func parseTriState(raw string) *bool {
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		b := true
		return &b
	case "false", "0", "no":
		b := false
		return &b
	default:
		return nil
	}
}
