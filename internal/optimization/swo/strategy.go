package swo

import "math"

// The reference agents jk[1], jk[2] and jk[3] are drawn once per iteration
// and shared by every agent in it. Only the environment step uses the
// agent's own slot jk[i].

// hunt moves agent i with the hunting and nesting rules. a, a2 and k are
// the iteration's control coefficients.
func (o *SpiderWaspOptimizer) hunt(i int, jk []int, a, a2, k float64) {
	r1 := o.rng.Float64()
	r2 := o.rng.Float64()
	r3 := o.rng.Float64()
	p := o.rng.Float64()
	c := a * (2*r1 - 1)
	l := (a2-1)*o.rng.Float64() + 1
	o.levy.StepInto(o.step)
	for j := range o.vc {
		o.vc[j] = -k + 2*k*o.rng.Float64()
	}
	rn1 := o.rng.NormFloat64()

	var (
		x      = o.pop.row(i)
		ref1   = o.pop.row(jk[1])
		ref2   = o.pop.row(jk[2])
		ref3   = o.pop.row(jk[3])
		own    = o.pop.row(jk[i])
		lower  = o.config.Space.Lower
		upper  = o.config.Space.Upper
		n      = float64(o.pop.active)
		spiral = math.Cos(2 * math.Pi * l)
	)

	explore := float64(i) < k*n
	for j := range x {
		switch {
		case explore && p < k && r1 < r2:
			// chase the prey
			x[j] += math.Abs(rn1) * r1 * (ref1[j] - ref2[j])
		case explore && p < k:
			b := 1 / (1 + math.Exp(l))
			x[j] = own[j] + b*spiral*(lower[j]+o.rng.Float64()*(upper[j]-lower[j]))
		case explore && r1 < r2:
			x[j] += c * math.Abs(2*o.rng.Float64()*ref3[j]-x[j])
		case explore:
			x[j] *= o.vc[j]
		case r1 < r2:
			x[j] = o.best[j] + spiral*(o.best[j]-x[j])
		default:
			var mask float64
			if o.rng.Float64() > o.rng.Float64() {
				mask = 1
			}
			x[j] = ref1[j] + r3*math.Abs(o.step[j])*(ref1[j]-x[j]) + (1-r3)*mask*(ref3[j]-ref2[j])
		}
	}
}

// mate moves agent i towards a crossover of the difference vectors between
// the shared reference agents.
func (o *SpiderWaspOptimizer) mate(i int, jk []int, a2 float64) {
	l := (a2-1)*o.rng.Float64() + 1

	var (
		x    = o.pop.row(i)
		ref1 = o.pop.row(jk[1])
		ref2 = o.pop.row(jk[2])
		ref3 = o.pop.row(jk[3])
		fit  = o.pop.fitness
	)
	towards(o.v1, ref1, x, fit[jk[1]] < fit[i])
	towards(o.v2, ref2, ref3, fit[jk[2]] < fit[jk[3]])

	rn1 := math.Abs(o.rng.NormFloat64())
	rn2 := math.Abs(o.rng.NormFloat64())
	el := math.Exp(l)
	for j := range x {
		candidate := x[j] + el*rn1*o.v1[j] + (1-el)*rn2*o.v2[j]
		if o.rng.Float64() < crossoverProbability {
			x[j] = candidate
		}
	}
}

// towards sets dst to a-b when aBetter, b-a otherwise.
func towards(dst, a, b []float64, aBetter bool) {
	for j := range dst {
		if aBetter {
			dst[j] = a[j] - b[j]
		} else {
			dst[j] = b[j] - a[j]
		}
	}
}
