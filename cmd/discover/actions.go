package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/nishimvki/coverdiscover/internal/collector"
	"github.com/nishimvki/coverdiscover/internal/config"
	"github.com/nishimvki/coverdiscover/internal/dashboard"
	"github.com/nishimvki/coverdiscover/internal/domain"
	"github.com/nishimvki/coverdiscover/internal/ingest"
	"github.com/nishimvki/coverdiscover/internal/logger"
	"github.com/nishimvki/coverdiscover/internal/query"
	"github.com/nishimvki/coverdiscover/internal/sampler"
	"github.com/nishimvki/coverdiscover/internal/storage"
	"github.com/urfave/cli/v3"
)

// run bundles what the sampling commands share
type run struct {
	cfg      *config.Config
	log      *slog.Logger
	sampler  *sampler.Sampler
	existing domain.IDSet
	out      string
	save     bool
}

func setup(cmd *cli.Command, validate bool) (*config.Config, *slog.Logger, error) {
	read := config.Read
	if validate {
		read = config.Load
	}
	cfg, err := read(cmd.String("env"))
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if v := cmd.String("log-level"); v != "" {
		level = v
	}
	format := cfg.LogFormat
	if v := cmd.String("log-format"); v != "" {
		format = v
	}
	log := logger.New(logger.Config{Level: logger.ParseLevel(level), Format: format, Output: cmd.Root().ErrWriter})
	return cfg, log, nil
}

func newRun(ctx context.Context, cmd *cli.Command) (*run, error) {
	cfg, log, err := setup(cmd, true)
	if err != nil {
		return nil, err
	}

	provider, err := collector.NewCollector(ctx, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("initialize collector: %w", err)
	}
	log.Info("Collector initialized", "mode", cfg.Provider.Mode)

	var rng *rand.Rand
	if seed := cmd.Uint64("seed"); seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	genOpts := []query.Option{
		query.WithRand(rng),
		query.WithYearRange(cmd.Int("year-from"), cmd.Int("year-to")),
	}
	if names := cmd.StringSlice("shape"); len(names) > 0 {
		shapes, err := query.ParseShapes(names)
		if err != nil {
			return nil, err
		}
		genOpts = append(genOpts, query.WithShapes(shapes...))
	}
	if path := cmd.String("alphabet"); path != "" {
		alphabet, err := ingest.LoadAlphabet(path)
		if err != nil {
			return nil, fmt.Errorf("load alphabet: %w", err)
		}
		genOpts = append(genOpts, query.WithAlphabet(alphabet))
	}

	batch, offsetCap := cmd.Int("batch"), cmd.Int("offset-cap")
	if err := checkLimits(batch, offsetCap); err != nil {
		return nil, err
	}

	smp, err := sampler.New(provider, query.NewGenerator(genOpts...), sampler.Config{
		BatchSize: batch,
		OffsetCap: offsetCap,
		Filter:    filterFromFlags(cmd),
	},
		sampler.WithRand(rng),
		sampler.WithLogger(log),
		sampler.WithProgress(func(p sampler.Progress) {
			log.Info("Searching", "attempt", p.Attempt, "of", p.Attempts, "collected", p.Collected, "target", p.Target)
		}),
	)
	if err != nil {
		return nil, err
	}

	out := cfg.DataFile
	if v := cmd.String("out"); v != "" {
		out = v
	}
	save := !cmd.Bool("no-save")

	existing, err := loadExisting(out, save, cmd.StringSlice("exclude"))
	if err != nil {
		return nil, err
	}

	return &run{cfg: cfg, log: log, sampler: smp, existing: existing, out: out, save: save}, nil
}

// checkLimits keeps the sampler inside what the search endpoint serves
func checkLimits(batch, offsetCap int) error {
	if batch > collector.MaxLimit {
		return fmt.Errorf("--batch %d: %w (max %d)", batch, collector.ErrInvalidLimit, collector.MaxLimit)
	}
	if offsetCap > collector.OffsetCap {
		return fmt.Errorf("--offset-cap %d: %w (max %d)", offsetCap, collector.ErrOffsetCap, collector.OffsetCap)
	}
	return nil
}

func filterFromFlags(cmd *cli.Command) sampler.Filter {
	f := sampler.Filter{
		RequireImage:       cmd.Bool("require-image"),
		RequireSquareImage: cmd.Bool("square"),
		RequirePreview:     cmd.Bool("require-preview"),
	}
	if ceiling := cmd.Int("max-popularity"); ceiling >= 0 {
		f.LimitPopularity = true
		f.MaxPopularity = ceiling
	}
	return f
}

// loadExisting gathers ids to skip: everything already saved in the data
// file plus every exclusion file
func loadExisting(out string, includeOut bool, excludes []string) (domain.IDSet, error) {
	existing := domain.NewIDSet()
	if includeOut {
		ids, err := storage.LoadIDs(out)
		if err != nil {
			return nil, err
		}
		existing.Merge(ids)
	}
	for _, path := range excludes {
		var ids domain.IDSet
		var err error
		if strings.HasSuffix(strings.ToLower(path), ".csv") {
			ids, err = ingest.LoadIDs(path)
		} else {
			ids, err = storage.LoadIDs(path)
		}
		if err != nil {
			return nil, fmt.Errorf("load exclusions from %s: %w", path, err)
		}
		existing.Merge(ids)
	}
	return existing, nil
}

func (r *run) attempts(cmd *cli.Command, target int) int {
	if n := cmd.Int("attempts"); n > 0 {
		return n
	}
	return target * 3
}

func (r *run) finish(w io.Writer, tracks []domain.Track, target int) error {
	printTracks(w, tracks)

	if len(tracks) < target {
		r.log.Warn("Fewer tracks than requested, try again", "collected", len(tracks), "target", target)
	}
	if !r.save || len(tracks) == 0 {
		return nil
	}
	if err := storage.Append(r.out, storage.NewRecords(tracks, time.Now())); err != nil {
		return fmt.Errorf("save tracks: %w", err)
	}
	r.log.Info("Tracks saved", "path", r.out, "count", len(tracks))
	return nil
}

func sampleAction(ctx context.Context, cmd *cli.Command) error {
	target := cmd.Int("count")
	if target <= 0 {
		return fmt.Errorf("--count must be positive, got %d", target)
	}

	r, err := newRun(ctx, cmd)
	if err != nil {
		return err
	}

	tracks := r.sampler.Collect(ctx, target, r.existing, r.attempts(cmd, target))
	return r.finish(cmd.Root().Writer, tracks, target)
}

func oneAction(ctx context.Context, cmd *cli.Command) error {
	r, err := newRun(ctx, cmd)
	if err != nil {
		return err
	}

	var tracks []domain.Track
	if t, ok := r.sampler.One(ctx, r.existing, r.attempts(cmd, 1)); ok {
		tracks = append(tracks, t)
	}
	return r.finish(cmd.Root().Writer, tracks, 1)
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd, false)
	if err != nil {
		return err
	}

	port := cfg.Port
	if v := cmd.String("port"); v != "" {
		port = v
	}
	data := cfg.DataFile
	if v := cmd.String("data"); v != "" {
		data = v
	}

	log.Info("Starting Dashboard", "port", port, "data", data)
	return dashboard.StartServer(ctx, data, port)
}

func printTracks(w io.Writer, tracks []domain.Track) {
	for i, t := range tracks {
		fmt.Fprintf(w, "%2d. %s - %s\n", i+1, t.Name, strings.Join(t.Artists, ", "))
		fmt.Fprintf(w, "    album: %s (%s)\n", t.Album.Name, t.Album.ReleaseDate)
		preview := "no preview"
		if t.PreviewURL != "" {
			preview = t.PreviewURL
		}
		fmt.Fprintf(w, "    popularity: %d/100  preview: %s\n", t.Popularity, preview)
		if img, ok := t.FirstImage(); ok {
			fmt.Fprintf(w, "    artwork: %s (%dx%d)\n", img.URL, img.Width, img.Height)
		}
		if t.ExternalURL != "" {
			fmt.Fprintf(w, "    %s\n", t.ExternalURL)
		}
	}
}
