package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/DRSN-tech/visual-search/internal/app"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load products from a YAML catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadSeedFile(file)
			if err != nil {
				return err
			}

			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				res, err := c.CatalogUC.SeedCatalog(ctx, req)
				if err != nil {
					return err
				}

				showSuccess("Seeded %d products (%d changed)", res.Total, res.Changed)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yaml", "Catalog file")

	return cmd
}

func newWarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Precompute features for every catalog product",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				if err := initBackbone(ctx, c); err != nil {
					return err
				}

				start := time.Now()
				res, err := c.SearchUC.WarmCache(ctx)
				if err != nil {
					return err
				}

				showSuccess("Feature cache warmed in %s", time.Since(start).Round(time.Millisecond))
				fmt.Printf("  products: %d\n  cached:   %d\n  computed: %d\n", res.Total, res.Cached, res.Computed)
				if res.Failed > 0 {
					showWarning("  failed:   %d (see logs with --debug)", res.Failed)
				}
				return nil
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	var (
		imagePath     string
		imageURL      string
		minSimilarity float64
		useColor      bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find products similar to an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (imagePath == "") == (imageURL == "") {
				return fmt.Errorf("exactly one of --image or --url is required")
			}

			var data []byte
			if imagePath != "" {
				var err error
				if data, err = os.ReadFile(imagePath); err != nil {
					return err
				}
			}

			var threshold *float64
			if cmd.Flags().Changed("min") {
				threshold = &minSimilarity
			}

			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				if err := initBackbone(ctx, c); err != nil {
					return err
				}

				descriptor, err := describeQuery(ctx, c.SearchUC, data, imageURL, useColor)
				if err != nil {
					return err
				}

				var histogram *domain.ColorHistogram
				if useColor {
					histogram = descriptor.Histogram
				}

				res, err := c.SearchUC.FindSimilarProducts(ctx, usecase.NewFindSimilarReq(descriptor.Features, histogram, threshold))
				if err != nil {
					return err
				}

				printResults(res)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Path to the query image")
	cmd.Flags().StringVarP(&imageURL, "url", "u", "", "URL of the query image (http, https or s3)")
	cmd.Flags().Float64Var(&minSimilarity, "min", 0.1, "Minimum similarity in [0, 1]")
	cmd.Flags().BoolVar(&useColor, "color", false, "Blend color histogram similarity into the score")

	return cmd
}

func newProductsCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List catalog products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				var (
					products []domain.Product
					err      error
				)
				if category != "" {
					products, err = c.CatalogUC.ProductsByCategory(ctx, category)
				} else {
					products, err = c.CatalogUC.ListProducts(ctx)
				}
				if err != nil {
					return err
				}

				printProducts(products)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only products of this category (case-insensitive)")

	return cmd
}

func describeQuery(ctx context.Context, uc usecase.SearchUC, data []byte, url string, useColor bool) (*domain.ImageDescriptor, error) {
	switch {
	case useColor && url != "":
		return uc.DescribeImageFromURL(ctx, url)
	case useColor:
		return uc.DescribeImage(ctx, data)
	}

	var (
		vector domain.FeatureVector
		err    error
	)
	if url != "" {
		vector, err = uc.ExtractFeaturesFromURL(ctx, url)
	} else {
		vector, err = uc.ExtractFeatures(ctx, data)
	}
	if err != nil {
		return nil, err
	}

	return &domain.ImageDescriptor{Features: vector}, nil
}

func printResults(res *usecase.FindSimilarRes) {
	gray := color.New(color.FgHiBlack)

	if len(res.Results) == 0 {
		showWarning("No similar products found")
	}

	for i, r := range res.Results {
		fmt.Printf("%2d. ", i+1)
		matchColor(r.MatchPercentage).Printf("%3d%%", r.MatchPercentage)
		fmt.Printf("  %s  ", r.Product.Name)
		gray.Printf("[%s] %s  %s\n", r.Product.ID, r.Product.Category, r.Product.Price.StringFixed(2))
	}

	gray.Printf("\nscanned %d, cached %d, computed %d, skipped %d\n", res.Scanned, res.Cached, res.Computed, res.Skipped)
}

func printProducts(products []domain.Product) {
	gray := color.New(color.FgHiBlack)
	bold := color.New(color.Bold)

	for _, p := range products {
		bold.Printf("%s", p.Name)
		gray.Printf("  [%s] %s  %s  %s\n", p.ID, p.Category, p.Price.StringFixed(2), p.ImageURL)
	}
	gray.Printf("%d products\n", len(products))
}

func matchColor(percentage int) *color.Color {
	switch {
	case percentage >= 80:
		return color.New(color.FgGreen, color.Bold)
	case percentage >= 50:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func showInfo(format string, args ...any) {
	color.New(color.FgCyan).Fprintf(os.Stderr, format+"\n", args...)
}

func showSuccess(format string, args ...any) {
	color.New(color.FgGreen).Printf("✓ "+format+"\n", args...)
}

func showWarning(format string, args ...any) {
	color.New(color.FgYellow).Printf(format+"\n", args...)
}

func showError(err error) {
	red := color.New(color.FgRed, color.Bold)
	if !e.HasUserMessage(err) {
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	red.Fprintf(os.Stderr, "Error: %s\n", e.UserMessage(err))
	color.New(color.FgHiBlack).Fprintf(os.Stderr, "  %v\n", err)
}
