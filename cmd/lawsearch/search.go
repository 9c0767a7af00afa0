package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/mode"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/query"
	chiTransport "github.com/catuchi/LawMadeSimple-sub001/internal/transport/chi"
)

type searchOptions struct {
	filter   string
	strategy string
	page     int
	limit    int
	laws     string
	identity string
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	so := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Run one search against the configured stores and print the JSON envelope",
		Example: `  lawsearch search "arrest without warrant" --type section
  lawsearch search "tenant eviction" --mode keyword --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := query.Params{
				Text:     strings.Join(args, " "),
				Filter:   kind.Filter(so.filter),
				Strategy: mode.Strategy(so.strategy),
				LawIDs:   query.ParseLawIDs(so.laws),
				Page:     so.page,
				PageSize: so.limit,
			}
			return runSearch(cmd, opts, domain.Identity(so.identity), p)
		},
	}

	f := cmd.Flags()
	f.StringVar(&so.filter, "type", string(kind.All), "result kinds: all, law, section, scenario")
	f.StringVar(&so.strategy, "mode", string(mode.Hybrid), "strategy: keyword, semantic, hybrid")
	f.IntVar(&so.page, "page", 0, "1-based page number (default 1)")
	f.IntVar(&so.limit, "limit", 0, "results per page (default from config)")
	f.StringVar(&so.laws, "laws", "", "comma-separated law ids to restrict results to")
	f.StringVar(&so.identity, "identity", "", "caller identity; quota applies when set")
	return cmd
}

func runSearch(cmd *cobra.Command, opts *rootOptions, id domain.Identity, p query.Params) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer func() {
		// Side effects were detached from ctx; give them a moment to land.
		closeCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(opts.cfg.SideEffects.TimeoutSec)*time.Second)
		defer cancel()
		a.close(closeCtx, opts.logger)
	}()

	resp, err := a.search.Search(ctx, id, p)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(chiTransport.NewSearchResponse(resp)); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
