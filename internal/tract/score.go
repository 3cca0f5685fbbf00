package tract

import "math/rand"

// subFactorSpread bounds the uniform noise applied around the base score.
const subFactorSpread = 15

// SubFactors are the five correlated component scores shown alongside the
// overall opportunity score.
type SubFactors struct {
	Education int `json:"education"`
	Safety    int `json:"safety"`
	Housing   int `json:"housing"`
	Health    int `json:"health"`
	Economy   int `json:"economy"`
}

// deriveSubFactors perturbs the base score with independent uniform noise
// in [-15, +15], clamping each result to [0, 100].
func deriveSubFactors(base int, rng *rand.Rand) SubFactors {
	perturb := func() int {
		s := base + rng.Intn(2*subFactorSpread+1) - subFactorSpread
		if s < 0 {
			return 0
		}
		if s > 100 {
			return 100
		}
		return s
	}
	return SubFactors{
		Education: perturb(),
		Safety:    perturb(),
		Housing:   perturb(),
		Health:    perturb(),
		Economy:   perturb(),
	}
}
