// apicheck probes the backend once and prints a health report plus a
// catalog summary.
// Usage: go run ./cmd/apicheck --config configs/client.yaml [--query camera]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bidflow/auction-client/internal/api"
	"github.com/bidflow/auction-client/internal/catalog"
	"github.com/bidflow/auction-client/internal/config"
	"github.com/bidflow/auction-client/internal/health"
	"github.com/bidflow/auction-client/internal/model"
)

func main() {
	configPath := flag.String("config", "configs/client.yaml", "path to config file")
	query := flag.String("query", "", "only list auctions matching this text")
	categoryID := flag.Int64("category", 0, "only list auctions in this category")
	page := flag.Int("page", 1, "page of the auction list to print")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Health
	fmt.Println("=== Backend Health ===")
	checker := health.NewChecker(health.Config{
		BaseURL:   cfg.Health.BaseURL,
		Endpoints: cfg.Health.Endpoints,
		Timeout:   cfg.Health.Timeout,
		CacheTTL:  cfg.Health.CacheTTL,
	}, logger)

	results := checker.CheckAll(ctx)
	healthy := true
	for _, r := range results {
		mark := "OK  "
		if !r.Healthy {
			mark = "FAIL"
			healthy = false
		}
		fmt.Printf("  [%s] %-40s status=%-3d %s\n", mark, r.Endpoint, r.Status, r.Message)
	}
	if !healthy {
		for i, r := range results {
			if !r.Healthy {
				fmt.Println()
				fmt.Println(checker.DeveloperMessage(cfg.Health.Endpoints[i], r.Status))
			}
		}
		os.Exit(1)
	}

	// Catalog
	fmt.Println("\n=== Catalog ===")
	client := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
	)
	registry := catalog.NewRegistry(catalog.Config{}, client, logger)
	if err := registry.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "catalog refresh failed: %v\n", err)
		os.Exit(1)
	}

	auctions := registry.Auctions()
	now := time.Now()
	counts := map[model.AuctionStatus]int{}
	for _, a := range auctions {
		counts[a.Phase(now)]++
	}
	fmt.Printf("Auctions: %d (live %d, upcoming %d, ended %d)\n",
		len(auctions), counts[model.StatusLive], counts[model.StatusUpcoming], counts[model.StatusEnded])

	categories := registry.Categories()
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.CategoryName)
	}
	fmt.Printf("Categories: %d %s\n", len(categories), strings.Join(names, ", "))

	matched := registry.Browse(catalog.Filter{CategoryID: *categoryID, Query: *query})
	p := catalog.Paginate(matched, *page, cfg.Catalog.PageSize)
	fmt.Printf("\nPage %d of %d (%d matching)\n", p.Number, p.TotalPages, p.Total)
	for _, a := range p.Items {
		fmt.Printf("  #%-5d %-30s %-8s price=%-10d next=%d\n",
			a.AuctionID, a.DisplayName(), a.Phase(now), a.Price(), a.NextBid())
	}

	fmt.Println("\n=== All checks passed ===")
}
