package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wikirag/internal/app"
	"wikirag/internal/retrieval"
)

func (c *cli) newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [seed...]",
		Short: "Crawl the wiki once and ingest every page found",
		Long: `Walks the wiki depth-first from the configured seeds (or the ones given)
and ingests each page. Prints the final crawl status as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds := args
			if len(seeds) == 0 {
				seeds = c.cfg.CrawlSeeds
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				st, err := a.Crawler.Crawl(ctx, seeds)
				if err != nil {
					return fmt.Errorf("crawl failed: %w", err)
				}
				return printJSON(cmd, st)
			})
		},
	}
}

func (c *cli) newSearchCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search ingested wiki chunks by similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				results, err := a.Retrieval.Search(ctx, query, limit)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				if asJSON {
					return printJSON(cmd, results)
				}
				printResults(cmd, results)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default from SEARCH_TOP_K)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func (c *cli) newAskCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question using retrieved wiki context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				resp, err := a.Chat.Ask(ctx, question, model)
				if err != nil {
					return err
				}
				cmd.Println(resp.Message.Content)
				if len(resp.ContextUsed) > 0 {
					cmd.Println()
					cmd.Println("Sources:")
					for _, s := range resp.ContextUsed {
						cmd.Printf("  - %s\n", s)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "generation model override")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printResults(cmd *cobra.Command, results []retrieval.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}
	for i, r := range results {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, r.Title, r.Score)
		if r.URL != "" {
			cmd.Printf("      %s\n", r.URL)
		}
		cmd.Printf("      %s\n\n", snippet(r.Content, 160))
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
