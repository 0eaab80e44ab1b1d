// Package generator produces synthetic turbine power readings.
//
// Normal readings follow a diurnal wind profile scaled by the current weather
// factor and two random variances. A configurable share of readings are
// replaced by simulated sensor faults (outliers) that bypass that model.
package generator

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/c3-joao/windturbine-backend/internal/domain"
)

const (
	nightFactor   = 1.2
	middayFactor  = 0.6
	defaultFactor = 0.9

	// MaxOutputRatio caps normal readings relative to rated capacity.
	MaxOutputRatio = 1.2
)

type Config struct {
	// Location decides the local hour used for the diurnal profile. Defaults to time.Local.
	Location *time.Location
	// Source feeds every draw. Nil means a clock-seeded source.
	Source rand.Source
}

type Generator struct {
	loc *time.Location
	src rand.Source
}

func New(cfg Config) *Generator {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Generator{loc: loc, src: NewLockedSource(cfg.Source)}
}

// Generate returns one reading for turbine at the given instant. outlierChance
// is a percentage in [0, 100].
func (g *Generator) Generate(turbine domain.Turbine, at time.Time, weatherFactor, outlierChance float64) domain.Reading {
	if g.uniform(0, 100) < outlierChance {
		return g.Outlier(turbine, at, g.pickOutlierKind())
	}

	rated := turbine.RatedCapacityKW
	power := rated *
		TimeFactor(at.In(g.loc).Hour()) *
		weatherFactor *
		g.uniform(0.8, 1.2) *
		g.uniform(0.85, 1.15)

	power = clamp(round2(power), 0, floor2(rated*MaxOutputRatio))

	return domain.Reading{
		TurbineID: turbine.ID,
		PowerKW:   power,
		Timestamp: at,
	}
}

// Outlier returns a simulated sensor fault of the given kind.
func (g *Generator) Outlier(turbine domain.Turbine, at time.Time, kind domain.OutlierKind) domain.Reading {
	rated := turbine.RatedCapacityKW

	var power float64
	switch kind {
	case domain.OutlierNegativeReading:
		power = clamp(round2(-g.uniform(0, rated*0.5)), -floor2(rated*0.5), 0)
	case domain.OutlierZeroReading:
		power = 0
	case domain.OutlierExtremelyHigh:
		power = clamp(round2(g.uniform(rated*2, rated*5)), ceil2(rated*2), floor2(rated*5))
	case domain.OutlierMinorNegative:
		power = clamp(round2(-g.uniform(0, 50)), -50, 0)
	case domain.OutlierModerateSpike:
		power = clamp(round2(g.uniform(rated*1.5, rated*3.5)), ceil2(rated*1.5), floor2(rated*3.5))
	default:
		kind = domain.OutlierZeroReading
	}

	return domain.Reading{
		TurbineID:   turbine.ID,
		PowerKW:     power + 0, // normalise -0
		Timestamp:   at,
		IsOutlier:   true,
		OutlierKind: kind,
	}
}

// TimeFactor maps a local hour to the diurnal wind multiplier.
func TimeFactor(hour int) float64 {
	switch {
	case hour >= 22 || hour < 6:
		return nightFactor
	case hour >= 10 && hour < 16:
		return middayFactor
	default:
		return defaultFactor
	}
}

func (g *Generator) pickOutlierKind() domain.OutlierKind {
	idx := int(g.uniform(0, float64(len(domain.OutlierKinds))))
	if idx >= len(domain.OutlierKinds) {
		idx = len(domain.OutlierKinds) - 1
	}
	return domain.OutlierKinds[idx]
}

func (g *Generator) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: g.src}.Rand()
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func floor2(v float64) float64 { return math.Floor(v*100) / 100 }
func ceil2(v float64) float64  { return math.Ceil(v*100) / 100 }

func clamp(v, lo, hi float64) float64 {
	if lo > hi {
		return v
	}
	return math.Max(lo, math.Min(hi, v))
}

var _ domain.ReadingGenerator = (*Generator)(nil)
