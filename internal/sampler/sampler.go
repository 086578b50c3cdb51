package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/nishimvki/coverdiscover/internal/domain"
	"github.com/nishimvki/coverdiscover/internal/query"
)

const (
	// DefaultOffsetCap is the deepest offset+limit the search endpoint serves
	DefaultOffsetCap = 1000
	DefaultBatchSize = 50
	probeLimit       = 1
)

var ErrInvalidBatch = errors.New("batch size must be between 1 and the offset cap")

// QueryGenerator is satisfied by *query.Generator
type QueryGenerator interface {
	Next() query.Query
}

type Config struct {
	BatchSize int
	OffsetCap int
	Filter    Filter
}

func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		OffsetCap: DefaultOffsetCap,
	}
}

// Progress is reported after every attempt. It is advisory only.
type Progress struct {
	Attempt   int
	Attempts  int
	Collected int
	Target    int
}

// Sampler approximates uniform random sampling over a catalog that only
// offers offset-paginated keyword search: a probe learns the hit count of a
// random query, then a fetch reads one batch at a random offset below the cap.
type Sampler struct {
	provider   domain.Provider
	queries    QueryGenerator
	cfg        Config
	rng        *rand.Rand
	logger     *slog.Logger
	onProgress func(Progress)
}

type Option func(*Sampler)

func WithRand(r *rand.Rand) Option {
	return func(s *Sampler) {
		if r != nil {
			s.rng = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress registers a callback invoked after each attempt
func WithProgress(fn func(Progress)) Option {
	return func(s *Sampler) {
		s.onProgress = fn
	}
}

func New(provider domain.Provider, queries QueryGenerator, cfg Config, opts ...Option) (*Sampler, error) {
	if provider == nil || queries == nil {
		return nil, errors.New("sampler needs a provider and a query generator")
	}
	if cfg.OffsetCap <= 0 {
		cfg.OffsetCap = DefaultOffsetCap
	}
	if cfg.BatchSize < 1 || cfg.BatchSize > cfg.OffsetCap {
		return nil, fmt.Errorf("%w: batch=%d cap=%d", ErrInvalidBatch, cfg.BatchSize, cfg.OffsetCap)
	}
	if err := cfg.Filter.Validate(); err != nil {
		return nil, err
	}

	s := &Sampler{
		provider: provider,
		queries:  queries,
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Collect gathers up to target tracks that pass the filter and are not in
// existing. It never returns an error: provider failures consume one attempt
// each and a short (possibly empty) result means the budget ran out.
// existing is only read.
func (s *Sampler) Collect(ctx context.Context, target int, existing domain.IDSet, maxAttempts int) []domain.Track {
	if target <= 0 || maxAttempts <= 0 {
		return nil
	}

	collected := make([]domain.Track, 0, target)
	seen := make(domain.IDSet, target)

	for attempt := 1; attempt <= maxAttempts && len(collected) < target; attempt++ {
		if ctx.Err() != nil {
			s.logger.Warn("Sampling cancelled", "collected", len(collected), "err", ctx.Err())
			break
		}

		q := s.queries.Next()
		batch, err := s.draw(ctx, q)
		if err != nil {
			s.logger.Warn("Search attempt failed", "attempt", attempt, "query", q.Text, "err", err)
		}

		s.rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })

		for _, t := range batch {
			if len(collected) >= target {
				break
			}
			if t.ID == "" || existing.Has(t.ID) || seen.Has(t.ID) || !s.cfg.Filter.Accept(t) {
				continue
			}
			t.Query = q.Text
			t.Shape = string(q.Shape)
			seen.Add(t.ID)
			collected = append(collected, t)
		}

		s.logger.Debug("Sampling progress", "attempt", attempt, "query", q.Text, "batch", len(batch), "collected", len(collected), "target", target)
		if s.onProgress != nil {
			s.onProgress(Progress{Attempt: attempt, Attempts: maxAttempts, Collected: len(collected), Target: target})
		}
	}

	return collected
}

// One returns a single fresh track, or false when the budget ran out
func (s *Sampler) One(ctx context.Context, existing domain.IDSet, maxAttempts int) (domain.Track, bool) {
	tracks := s.Collect(ctx, 1, existing, maxAttempts)
	if len(tracks) == 0 {
		return domain.Track{}, false
	}
	return tracks[0], true
}

// draw runs the probe and, if the query has hits, the real fetch
func (s *Sampler) draw(ctx context.Context, q query.Query) ([]domain.Track, error) {
	probe, err := s.provider.Search(ctx, domain.SearchRequest{
		Query: q.Text,
		Type:  domain.TypeTrack,
		Limit: probeLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	if probe.Total <= 0 {
		return nil, nil
	}

	offset := s.Offset(probe.Total)
	page, err := s.provider.Search(ctx, domain.SearchRequest{
		Query:  q.Text,
		Type:   domain.TypeTrack,
		Limit:  s.cfg.BatchSize,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch at offset %d: %w", offset, err)
	}
	// shuffled in place later, so never hand back the provider's slice
	return slices.Clone(page.Items), nil
}

// Offset picks a random start such that a full batch stays under the cap
func (s *Sampler) Offset(total int) int {
	maxOffset := min(total, s.cfg.OffsetCap)
	if maxOffset <= s.cfg.BatchSize {
		return 0
	}
	return s.rng.IntN(maxOffset - s.cfg.BatchSize + 1)
}
