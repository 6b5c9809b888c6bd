// Package predict turns two teams' season yardage into a home win probability.
package predict

import (
	"errors"
	"math"

	"goflare.io/gridiron/internal/normalize"
)

const (
	DefaultYardsToPoints = 0.02
	DefaultHomeFieldAdv  = 3.0
	DefaultStd           = 6.5

	// MissingStatsNote explains a neutral result.
	MissingStatsNote = "Missing team stats; check provider response"

	basisPoints = 1e4
)

// ErrInvalidStd is returned for a non-positive or non-finite logistic scale.
var ErrInvalidStd = errors.New("model std must be a positive finite number")

// Model holds the scorer constants.
type Model struct {
	YardsToPoints float64
	HomeFieldAdv  float64
	Std           float64
}

// DefaultModel returns the standard constants.
func DefaultModel() Model {
	return Model{
		YardsToPoints: DefaultYardsToPoints,
		HomeFieldAdv:  DefaultHomeFieldAdv,
		Std:           DefaultStd,
	}
}

// Validate checks that the model yields finite probabilities.
func (m Model) Validate() error {
	if m.Std <= 0 || math.IsNaN(m.Std) || math.IsInf(m.Std, 0) {
		return ErrInvalidStd
	}
	if math.IsNaN(m.YardsToPoints) || math.IsInf(m.YardsToPoints, 0) ||
		math.IsNaN(m.HomeFieldAdv) || math.IsInf(m.HomeFieldAdv, 0) {
		return errors.New("model constants must be finite")
	}
	return nil
}

// Breakdown carries the intermediate values of a computed prediction.
type Breakdown struct {
	HomeOffYds            float64 `json:"homeOffYds"`
	AwayOffYds            float64 `json:"awayOffYds"`
	HomeDefYdsAllowed     float64 `json:"homeDefYdsAllowed"`
	AwayDefYdsAllowed     float64 `json:"awayDefYdsAllowed"`
	HomeExpectedNetYards  float64 `json:"homeExpectedNetYards"`
	AwayExpectedNetYards  float64 `json:"awayExpectedNetYards"`
	YardsGap              float64 `json:"yardsGap"`
	ScaleFactor           float64 `json:"scaleFactor"`
	ExpectedPointDiff     float64 `json:"expectedPointDiff"`
	HomeFieldAdv          float64 `json:"homeFieldAdv"`
	ExpectedNetPointsHome float64 `json:"expectedNetPointsHome"`
	ScaleStd              float64 `json:"scaleStd"`
}

// Fallback explains why a prediction is neutral and echoes what was found.
type Fallback struct {
	Note      string              `json:"note"`
	HomeStats *normalize.TeamStat `json:"homeStats"`
	AwayStats *normalize.TeamStat `json:"awayStats"`
}

// ModelDetails holds exactly one of Breakdown or Fallback; the set one is
// flattened into the JSON object.
type ModelDetails struct {
	*Breakdown
	*Fallback
}

// Result is a scored matchup.
type Result struct {
	Home         string       `json:"home"`
	Away         string       `json:"away"`
	HomeProb     float64      `json:"homeProb"`
	AwayProb     float64      `json:"awayProb"`
	ModelDetails ModelDetails `json:"modelDetails"`
}

// Neutral reports whether the result is the missing-data fallback.
func (r Result) Neutral() bool {
	return r.ModelDetails.Fallback != nil
}

// Score computes the home and away win probabilities. A nil record yields an
// even split. Missing yardage counts as zero.
func Score(home, away string, homeStats, awayStats *normalize.TeamStat, m Model) Result {
	if homeStats == nil || awayStats == nil {
		return Result{
			Home:     home,
			Away:     away,
			HomeProb: 0.5,
			AwayProb: 0.5,
			ModelDetails: ModelDetails{Fallback: &Fallback{
				Note:      MissingStatsNote,
				HomeStats: homeStats,
				AwayStats: awayStats,
			}},
		}
	}

	b := &Breakdown{
		HomeOffYds:        orZero(homeStats.OffenseYdsPerGame),
		AwayOffYds:        orZero(awayStats.OffenseYdsPerGame),
		HomeDefYdsAllowed: orZero(homeStats.DefenseYdsAllowedPerGame),
		AwayDefYdsAllowed: orZero(awayStats.DefenseYdsAllowedPerGame),
		ScaleFactor:       m.YardsToPoints,
		HomeFieldAdv:      m.HomeFieldAdv,
		ScaleStd:          m.Std,
	}
	b.HomeExpectedNetYards = b.HomeOffYds - b.AwayDefYdsAllowed
	b.AwayExpectedNetYards = b.AwayOffYds - b.HomeDefYdsAllowed
	b.YardsGap = b.HomeExpectedNetYards - b.AwayExpectedNetYards
	b.ExpectedPointDiff = b.YardsGap * b.ScaleFactor
	b.ExpectedNetPointsHome = b.ExpectedPointDiff + b.HomeFieldAdv

	homeProb, awayProb := split(logistic(b.ExpectedNetPointsHome / b.ScaleStd))

	return Result{
		Home:         home,
		Away:         away,
		HomeProb:     homeProb,
		AwayProb:     awayProb,
		ModelDetails: ModelDetails{Breakdown: b},
	}
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// split rounds p to four decimals and derives the complement from the same
// basis points, so the pair always sums to one at that precision.
func split(p float64) (float64, float64) {
	home := math.Round(p * basisPoints)
	away := basisPoints - home
	return home / basisPoints, away / basisPoints
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
