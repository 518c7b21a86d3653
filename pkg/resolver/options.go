package resolver

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/textnorm"
)

// Option configures a Resolver.
type Option func(*Resolver) error

// WithMaxDistance sets the coordinate-match cutoff in kilometres.
func WithMaxDistance(km float64) Option {
	return func(r *Resolver) error {
		if km < 0 || math.IsNaN(km) || math.IsInf(km, 0) {
			return errors.NewValidationError("max_distance_km", km, "must be a non-negative number")
		}
		r.maxDistanceKm = km
		return nil
	}
}

// WithStopWords adds words ignored by text-hint matching. Multi-word
// entries ("Grupo Norte") contribute each of their words.
func WithStopWords(words ...string) Option {
	return func(r *Resolver) error {
		r.addStopWords(words)
		return nil
	}
}

// WithHintFromLabel lets a declared label that failed the exact tier take part
// in text-hint matching when the event carries no hint of its own.
func WithHintFromLabel(enabled bool) Option {
	return func(r *Resolver) error {
		r.hintFromLabel = enabled
		return nil
	}
}

// WithLogger sets the logger for tier decisions. Without it the logger
// carried by the context is used.
func WithLogger(logger *zerolog.Logger) Option {
	return func(r *Resolver) error {
		r.logger = logger
		return nil
	}
}

func (r *Resolver) addStopWords(words []string) {
	for _, w := range words {
		for _, tok := range textnorm.Tokens(w) {
			r.stopWords[tok] = struct{}{}
		}
	}
}
