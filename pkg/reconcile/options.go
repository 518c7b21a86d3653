package reconcile

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/quota"
	"github.com/agentstation/branchmap/pkg/resolver"
)

// Option configures a Reconciler
type Option func(*Reconciler) error

// WithPeriod sets the reporting period. The default is the current calendar year.
func WithPeriod(p quota.Period) Option {
	return func(r *Reconciler) error {
		r.period = p
		r.periodSet = true
		return nil
	}
}

// WithResolverOptions passes options through to the branch resolver.
func WithResolverOptions(opts ...resolver.Option) Option {
	return func(r *Reconciler) error {
		r.resolverOpts = append(r.resolverOpts, opts...)
		return nil
	}
}

// WithNormalizer replaces the default record normalizer.
func WithNormalizer(n *inspections.Normalizer) Option {
	return func(r *Reconciler) error {
		if n == nil {
			return errors.NewValidationError("normalizer", nil, "must not be nil")
		}
		r.normalizer = n
		return nil
	}
}

// WithClock sets the time source used for report timestamps and the default period.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) error {
		if now == nil {
			return errors.NewValidationError("clock", nil, "must not be nil")
		}
		r.now = now
		return nil
	}
}

// WithLogger sets the logger. Without it the logger carried by the context is used.
func WithLogger(logger *zerolog.Logger) Option {
	return func(r *Reconciler) error {
		r.logger = logger
		return nil
	}
}
