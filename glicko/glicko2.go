// Package glicko implements the Glicko-2 rating algorithm
// (Glickman, "Example of the Glicko-2 system").
//
// All functions are pure: they take rating snapshots and return new ones,
// persistence is the caller's concern.
package glicko

import (
	"errors"
	"math"
)

const (
	// Scale between the public 1500-based scale and the internal mu/phi scale.
	scale = 173.7178

	DefaultRating     = 1500.0
	DefaultRD         = 350.0
	DefaultVolatility = 0.06
	DefaultTau        = 0.5

	// Convergence defaults for the volatility iteration.
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 100
)

var ErrNoConvergence = errors.New("glicko: volatility iteration did not converge")

// Scores for a single game outcome.
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

// Rating holds the public-scale values of one player.
type Rating struct {
	Rating     float64
	RD         float64
	Volatility float64
}

// Default returns a fresh rating at the standard Glicko-2 defaults.
func Default() Rating {
	return Rating{Rating: DefaultRating, RD: DefaultRD, Volatility: DefaultVolatility}
}

// Params controls the system constant and the volatility solver.
type Params struct {
	Tau           float64
	Tolerance     float64
	MaxIterations int
}

// DefaultParams returns parameters suitable for stable per-match updates.
func DefaultParams() Params {
	return Params{Tau: DefaultTau, Tolerance: DefaultTolerance, MaxIterations: DefaultMaxIterations}
}

func (p Params) normalized() Params {
	if p.Tau <= 0 {
		p.Tau = DefaultTau
	}
	if p.Tolerance <= 0 {
		p.Tolerance = DefaultTolerance
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	return p
}

// Result is one opponent and the score achieved against them
// (1 win, 0.5 draw, 0 loss).
type Result struct {
	Opponent Rating
	Score    float64
}

func toInternal(r Rating) (mu, phi float64) {
	return (r.Rating - DefaultRating) / scale, r.RD / scale
}

func fromInternal(mu, phi, sigma float64) Rating {
	return Rating{Rating: mu*scale + DefaultRating, RD: phi * scale, Volatility: sigma}
}

func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

func e(mu, muj, phij float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phij)*(mu-muj)))
}

// Update applies one rating-period update for a player against the given
// results. With no results it is equivalent to Decay.
func Update(p Params, player Rating, results []Result) (Rating, error) {
	p = p.normalized()
	if len(results) == 0 {
		return Decay(player), nil
	}

	mu, phi := toInternal(player)

	var invV float64   // Σ g² E (1-E)
	var impSum float64 // Σ g (s - E)
	for _, res := range results {
		muj, phij := toInternal(res.Opponent)
		gj := g(phij)
		ej := e(mu, muj, phij)
		invV += gj * gj * ej * (1 - ej)
		impSum += gj * (res.Score - ej)
	}
	v := 1.0 / invV
	delta := v * impSum

	sigma, err := solveVolatility(p, phi, v, delta, player.Volatility)
	if err != nil {
		return player, err
	}

	phiStar := math.Sqrt(phi*phi + sigma*sigma)
	phiNew := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muNew := mu + phiNew*phiNew*impSum

	return fromInternal(muNew, phiNew, sigma), nil
}

// UpdatePair updates both sides of a single decided game at once, each
// against the other's pre-update snapshot. score is from a's perspective.
func UpdatePair(p Params, a, b Rating, score float64) (Rating, Rating, error) {
	newA, err := Update(p, a, []Result{{Opponent: b, Score: score}})
	if err != nil {
		return a, b, err
	}
	newB, err := Update(p, b, []Result{{Opponent: a, Score: 1 - score}})
	if err != nil {
		return a, b, err
	}
	return newA, newB, nil
}

// Decay applies the no-game rating-period step: the rating is unchanged and
// RD grows with volatility (phi* = sqrt(phi² + sigma²)).
func Decay(player Rating) Rating {
	mu, phi := toInternal(player)
	phiStar := math.Sqrt(phi*phi + player.Volatility*player.Volatility)
	return fromInternal(mu, phiStar, player.Volatility)
}

// solveVolatility finds sigma' with the Illinois variant of regula falsi,
// as laid out in step 5 of the Glicko-2 paper.
func solveVolatility(p Params, phi, v, delta, sigma float64) (float64, error) {
	a := math.Log(sigma * sigma)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phi*phi - v - ex)
		den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
		return num/den - (x-a)/(p.Tau*p.Tau)
	}

	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*p.Tau) < 0 {
			k++
		}
		B = a - k*p.Tau
	}

	fA := f(A)
	fB := f(B)
	for i := 0; i < p.MaxIterations; i++ {
		if math.Abs(B-A) <= p.Tolerance {
			return math.Exp(A / 2.0), nil
		}
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if fC*fB <= 0 {
			A = B
			fA = fB
		} else {
			fA = fA / 2.0
		}
		B = C
		fB = fC
	}
	if math.Abs(B-A) <= p.Tolerance {
		return math.Exp(A / 2.0), nil
	}
	return sigma, ErrNoConvergence
}
