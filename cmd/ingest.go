package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/cache"
	"github.com/sells-group/scholar-cli/internal/ingest"
	"github.com/sells-group/scholar-cli/internal/matcher"
	"github.com/sells-group/scholar-cli/internal/pace"
	"github.com/sells-group/scholar-cli/pkg/openalex"
	"github.com/sells-group/scholar-cli/pkg/orcid"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Resolve faculty seeds and ingest their publications",
	Long:  "Matches every faculty seed to an ORCID, stores the researcher, pulls works, venues and coauthors from OpenAlex and refreshes metrics.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
			cfg.Ingest.Concurrency = v
		}
		seedsPath, _ := cmd.Flags().GetString("seeds")
		if seedsPath == "" {
			seedsPath = cfg.Ingest.SeedsPath
		}
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")
		noCache, _ := cmd.Flags().GetBool("no-cache")

		seeds, err := ingest.LoadSeeds(seedsPath)
		if err != nil {
			return err
		}
		seeds = filterSeeds(seeds, category, limit)

		env, err := initStores(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		orcidClient, worksClient, closeCache, err := registryClients(ctx, noCache)
		if err != nil {
			return err
		}
		defer closeCache()

		pacer := pace.New(time.Duration(cfg.Pace.DelayMS) * time.Millisecond)
		counters := ingest.NewCounters(prometheus.DefaultRegisterer)
		proc := ingest.NewProcessor(ingest.Deps{
			Matcher:      matcher.New(orcidClient, pacer),
			Researchers:  env.Researchers,
			Publications: env.Publications,
			Works:        worksClient,
			Pacer:        pacer,
			Metrics:      env.engine(1),
			Weights:      env.Weights,
			Counters:     counters,
		})

		sum, err := ingest.RunBatch(ctx, proc, seeds, ingest.BatchOptions{
			Concurrency: cfg.Ingest.Concurrency,
			Runs:        env.Runs,
			Counters:    counters,
		})
		if sum != nil {
			if perr := printJSON(sum); perr != nil {
				return perr
			}
		}
		return err
	},
}

// registryClients builds the ORCID and OpenAlex clients, wrapped in the
// SQLite response cache unless disabled. The returned func closes the cache.
func registryClients(ctx context.Context, noCache bool) (orcid.Client, openalex.Client, func(), error) {
	orcidClient := orcid.NewClient(
		orcid.WithBaseURL(cfg.ORCID.BaseURL),
		orcid.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.ORCID.TimeoutSecs) * time.Second}),
	)
	worksClient := openalex.NewClient(
		openalex.WithBaseURL(cfg.OpenAlex.BaseURL),
		openalex.WithMailto(cfg.OpenAlex.Mailto),
		openalex.WithPerPage(cfg.OpenAlex.PerPage),
		openalex.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.OpenAlex.TimeoutSecs) * time.Second}),
	)

	if noCache || cfg.Cache.Path == "" {
		return orcidClient, worksClient, func() {}, nil
	}
	c, err := cache.Open(ctx, cfg.Cache.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	closeFn := func() {
		if err := c.Close(); err != nil {
			zap.L().Warn("close registry cache", zap.Error(err))
		}
	}
	return cache.ORCID(orcidClient, c, ttl), cache.OpenAlex(worksClient, c, ttl), closeFn, nil
}

// filterSeeds keeps one category when set and the first limit seeds when
// limit is positive.
func filterSeeds(seeds []ingest.Seed, category string, limit int) []ingest.Seed {
	out := seeds
	if category != "" {
		out = make([]ingest.Seed, 0, len(seeds))
		for _, s := range seeds {
			if s.Category == category {
				out = append(out, s)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func init() {
	ingestCmd.Flags().String("seeds", "", "faculty seed file (default from config)")
	ingestCmd.Flags().Int("concurrency", 0, "seeds processed in parallel (default from config)")
	ingestCmd.Flags().String("category", "", "only ingest one faculty category")
	ingestCmd.Flags().Int("limit", 0, "ingest at most this many seeds")
	ingestCmd.Flags().Bool("no-cache", false, "bypass the registry response cache")
	rootCmd.AddCommand(ingestCmd)
}
