// Package sequence produces the integer indices that drive key and value
// synthesis.
//
// Three variants are provided: a strictly increasing Sequential counter,
// a seeded Uniform draw and a clamped Gaussian draw. Every variant is safe
// for concurrent use, so one Source may be shared by all workers or one
// built per worker.
package sequence

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrExhausted is returned by a bounded Sequential source that has
	// produced its last index and is not configured to wrap.
	ErrExhausted = errors.New("sequence: exhausted")

	// ErrInvalidBounds is returned when a source is constructed with
	// an empty range or a non-positive spread.
	ErrInvalidBounds = errors.New("sequence: invalid bounds")
)

// Source yields indices.
type Source interface {
	// Next returns the next index.
	Next() (int64, error)

	// Description is a short human readable form of the source.
	Description() string
}

// Mode selects a source variant.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeUniform    Mode = "uniform"
	ModeGaussian   Mode = "gaussian"
)

// ExhaustPolicy is what a bounded Sequential source does at its bound.
type ExhaustPolicy string

const (
	ExhaustFail ExhaustPolicy = "fail"
	ExhaustWrap ExhaustPolicy = "wrap"
)

// Sequential hands out origin, origin+1, ... exactly once each.
//
// With a bound it stops (ErrExhausted) or wraps back to origin once bound
// is reached. Next is a single atomic increment when unbounded or failing
// and a CAS loop when wrapping.
type Sequential struct {
	origin int64
	bound  int64 // exclusive; 0 means unbounded
	wrap   bool
	next   atomic.Int64
}

// NewSequential creates a sequential source starting at origin. A bound of
// zero means unbounded; otherwise bound must exceed origin.
func NewSequential(origin, bound int64, policy ExhaustPolicy) (*Sequential, error) {
	if bound != 0 && bound <= origin {
		return nil, fmt.Errorf("%w: bound %d must exceed origin %d", ErrInvalidBounds, bound, origin)
	}
	switch policy {
	case "", ExhaustFail, ExhaustWrap:
	default:
		return nil, fmt.Errorf("sequence: unknown exhaustion policy %q", policy)
	}
	s := &Sequential{origin: origin, bound: bound, wrap: policy == ExhaustWrap}
	s.next.Store(origin)
	return s, nil
}

// Next returns the next index in order.
func (s *Sequential) Next() (int64, error) {
	if s.bound == 0 {
		return s.next.Add(1) - 1, nil
	}
	if !s.wrap {
		v := s.next.Add(1) - 1
		if v >= s.bound {
			// Park the counter so repeated calls cannot overflow.
			s.next.Store(s.bound)
			return 0, ErrExhausted
		}
		return v, nil
	}
	for {
		v := s.next.Load()
		n := v + 1
		if n >= s.bound {
			n = s.origin
		}
		if s.next.CompareAndSwap(v, n) {
			return v, nil
		}
	}
}

func (s *Sequential) Description() string {
	if s.bound == 0 {
		return fmt.Sprintf("sequential from %d", s.origin)
	}
	policy := ExhaustFail
	if s.wrap {
		policy = ExhaustWrap
	}
	return fmt.Sprintf("sequential [%d, %d) then %s", s.origin, s.bound, policy)
}

// seeded is a PCG generator behind a mutex.
type seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSeeded(seed uint64) seeded {
	return seeded{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Uniform draws indices uniformly from [lower, upper).
type Uniform struct {
	lower, upper int64
	seeded
}

// NewUniform creates a uniform source over [lower, upper).
func NewUniform(lower, upper int64, seed uint64) (*Uniform, error) {
	if lower >= upper {
		return nil, fmt.Errorf("%w: lower %d must be below upper %d", ErrInvalidBounds, lower, upper)
	}
	return &Uniform{lower: lower, upper: upper, seeded: newSeeded(seed)}, nil
}

func (u *Uniform) Next() (int64, error) {
	u.mu.Lock()
	// The width may exceed math.MaxInt64; unsigned arithmetic wraps back
	// into the range.
	v := u.rng.Uint64N(uint64(u.upper) - uint64(u.lower))
	u.mu.Unlock()
	return int64(uint64(u.lower) + v), nil
}

func (u *Uniform) Description() string {
	return fmt.Sprintf("uniform [%d, %d)", u.lower, u.upper)
}

// Gaussian draws round(mean + stddev*Z) clamped into [lower, upper).
// Out of range draws are clamped, never redrawn.
type Gaussian struct {
	lower, upper int64
	mean, stddev float64
	seeded
}

// NewGaussian creates a clamped normal source.
func NewGaussian(lower, upper int64, mean, stddev float64, seed uint64) (*Gaussian, error) {
	if lower >= upper {
		return nil, fmt.Errorf("%w: lower %d must be below upper %d", ErrInvalidBounds, lower, upper)
	}
	if !(stddev > 0) || math.IsInf(stddev, 0) {
		return nil, fmt.Errorf("%w: stddev %v must be positive", ErrInvalidBounds, stddev)
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil, fmt.Errorf("%w: mean %v must be finite", ErrInvalidBounds, mean)
	}
	return &Gaussian{
		lower:  lower,
		upper:  upper,
		mean:   mean,
		stddev: stddev,
		seeded: newSeeded(seed),
	}, nil
}

func (g *Gaussian) Next() (int64, error) {
	g.mu.Lock()
	z := g.rng.NormFloat64()
	g.mu.Unlock()

	v := math.Round(g.mean + g.stddev*z)
	if v < float64(g.lower) {
		return g.lower, nil
	}
	if v > float64(g.upper-1) {
		return g.upper - 1, nil
	}
	return int64(v), nil
}

func (g *Gaussian) Description() string {
	return fmt.Sprintf("gaussian mean=%g stddev=%g clamped to [%d, %d)", g.mean, g.stddev, g.lower, g.upper)
}

// Spec describes a source in configuration terms.
type Spec struct {
	Mode        Mode
	Origin      int64
	Bound       int64
	Lower       int64
	Upper       int64
	Mean        float64
	StdDev      float64
	OnExhausted ExhaustPolicy
}

// New builds the source described by spec. Seed is ignored by the
// sequential variant.
func New(spec Spec, seed uint64) (Source, error) {
	switch Mode(strings.ToLower(string(spec.Mode))) {
	case "", ModeSequential:
		return NewSequential(spec.Origin, spec.Bound, spec.OnExhausted)
	case ModeUniform:
		return NewUniform(spec.Lower, spec.Upper, seed)
	case ModeGaussian:
		return NewGaussian(spec.Lower, spec.Upper, spec.Mean, spec.StdDev, seed)
	default:
		return nil, fmt.Errorf("sequence: unknown mode %q", spec.Mode)
	}
}
