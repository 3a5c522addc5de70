package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/internal/engine"
	"github.com/gcbaptista/package-search/internal/query"
	"github.com/gcbaptista/package-search/internal/source"
)

var (
	searchFile         string
	searchOrder        string
	searchOffset       int
	searchLimit        int
	searchTags         []string
	searchDiscontinued bool
	searchJSON         bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a package file once",
	Long: `Loads packages from a JSON file, builds the index and prints one page of
results. Without a query the packages are ranked by popularity.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchFile, "file", "f", "", "JSON file holding an array of packages")
	searchCmd.Flags().StringVarP(&searchOrder, "order", "o", "", "text, popularity, health, maintenance, created or updated")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "number of hits to skip")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "page size (0 uses the configured default)")
	searchCmd.Flags().StringSliceVarP(&searchTags, "tag", "t", nil, "required tag; repeatable")
	searchCmd.Flags().BoolVar(&searchDiscontinued, "discontinued", false, "include discontinued packages")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	path := searchFile
	if path == "" && cfg.Source.Type == config.SourceFile {
		path = cfg.Source.Path
	}
	if path == "" {
		return errors.New("no package file: pass --file or configure a file source")
	}

	eng, err := engine.NewEngine(engine.Options{Settings: cfg.Search})
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := cmd.Context()
	if _, err := eng.Refresh(ctx, source.NewFileSource(path, nil)); err != nil {
		return err
	}

	raw := strings.Join(args, " ")
	q := query.Parse(raw, searchOrder, searchOffset, searchLimit, searchTags, eng.Settings())
	q.IncludeDiscontinued = searchDiscontinued

	result, err := eng.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(result.SdkLibraryHits) > 0 {
		cmd.Println("SDK libraries:")
		for _, hit := range result.SdkLibraryHits {
			cmd.Printf("  %s (%.2f)\n", hit.Library, hit.Score)
		}
		cmd.Println()
	}
	if len(result.PackageHits) == 0 {
		cmd.Printf("No packages found (%d total).\n", result.TotalCount)
		return nil
	}
	cmd.Printf("Packages %d-%d of %d (order: %s):\n",
		q.Offset+1, q.Offset+len(result.PackageHits), result.TotalCount, q.Order)
	for i, hit := range result.PackageHits {
		cmd.Printf("  [%d] %s (%.2f)\n", q.Offset+i+1, hit.Package, hit.Score)
	}
	return nil
}
