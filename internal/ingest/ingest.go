// Package ingest fetches raw inspection records from every configured source
// concurrently and hands them to the reconciler as one ordered batch.
package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/logging"
)

// Source produces raw inspection records.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]inspections.RawRecord, error)
}

// SourceStats describes what one source contributed.
type SourceStats struct {
	Name     string        `json:"name" yaml:"name"`
	Records  int           `json:"records" yaml:"records"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Result is the combined output of all sources.
type Result struct {
	Records []inspections.RawRecord
	Sources []SourceStats
}

// Option configures ingestion.
type Option func(*options)

type options struct {
	concurrency int
}

// WithConcurrency caps how many sources are fetched at once. Zero or less
// means no limit.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// Fetch runs every source concurrently and concatenates their records in the
// order the sources were given, so the batch is the same no matter which
// source finishes first. The first failure cancels the remaining fetches and
// is returned.
func Fetch(ctx context.Context, sources []Source, opts ...Option) (*Result, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	perSource := make([][]inspections.RawRecord, len(sources))
	stats := make([]SourceStats, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i, src := range sources {
		g.Go(func() error {
			sctx := logging.WithSource(gctx, src.Name())
			start := time.Now()
			records, err := src.Fetch(sctx)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", src.Name(), err)
			}
			perSource[i] = records
			stats[i] = SourceStats{Name: src.Name(), Records: len(records), Duration: time.Since(start)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Sources: stats}
	for _, records := range perSource {
		res.Records = append(res.Records, records...)
	}
	logging.FromContext(ctx).Info().Int("sources", len(sources)).Int("records", len(res.Records)).Msg("ingestion complete")
	return res, nil
}

// Static is a Source over records already in memory.
type Static struct {
	SourceName string
	Records    []inspections.RawRecord
}

// Name implements Source.
func (s *Static) Name() string {
	return s.SourceName
}

// Fetch implements Source.
func (s *Static) Fetch(ctx context.Context) ([]inspections.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]inspections.RawRecord, len(s.Records))
	copy(out, s.Records)
	for i := range out {
		if out[i].Source == "" {
			out[i].Source = s.SourceName
		}
	}
	return out, nil
}
