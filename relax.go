/*
Copyright © 2017 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package lmc

import "math"

// RelaxParams configures a relaxation sweep.
type RelaxParams struct {
	// ThetaDt is the implicitness factor times the time step.
	ThetaDt float64

	// Factor is the damping factor for each of the n+1 equations.
	Factor []float64

	// Mode selects the heat equation unknown.
	Mode DDMode

	// ResOnly computes the residual without changing the state.
	ResOnly bool

	// Mult is the sign applied to the operator: -1 for relaxation, where
	// the residual is R - A(S), and +1 to form R + A(S).
	Mult float64

	// Skip, if not nil, marks equations that are left untouched. Their
	// residual is set to zero and they do not contribute to the maxima.
	Skip []bool
}

// Relax performs one pointwise relaxation sweep on the composite field S.
// For every equation the residual R + Mult·A(S) is stored in Res, where
// A(S) = ρS - θΔt·L for the density-weighted rows (species, and enthalpy
// in EnthalpyMode) and A(S) = S - θΔt·L for the temperature row. Unless
// ResOnly is set, S is then corrected by
// Factor·residual/(1+θΔt·α), with the residual of density-weighted rows
// taken per unit density.
//
// It returns, for each equation, the maximum absolute residual (per unit
// density for density-weighted rows) and the maximum absolute correction
// over all patches.
func Relax(S, Res, L, alpha, R *Field, p RelaxParams, patches []Patch) (maxRes, maxCor []float64) {
	neq := Res.NComp
	n := neq - 1
	cRho := compRho(n)
	cHeat := heatComp(n, p.Mode)
	acc := maxOverPatches(patches, 2*neq, func(pt Patch, acc []float64) {
		for j := pt.JLo; j < pt.JHi; j++ {
			for i := pt.ILo; i < pt.IHi; i++ {
				rho := S.At(cRho, i, j)
				for eq := 0; eq < neq; eq++ {
					if p.Skip != nil && p.Skip[eq] {
						Res.Set(eq, i, j, 0)
						continue
					}
					sc, weighted := eq, true
					if eq == n {
						sc, weighted = cHeat, p.Mode == EnthalpyMode
					}
					s := S.At(sc, i, j)
					a := s - p.ThetaDt*L.At(eq, i, j)
					if weighted {
						a = rho*s - p.ThetaDt*L.At(eq, i, j)
					}
					res := R.At(eq, i, j) + p.Mult*a
					Res.Set(eq, i, j, res)
					if weighted {
						res /= rho
					}
					acc[eq] = math.Max(acc[eq], math.Abs(res))
					if p.ResOnly {
						continue
					}
					cor := p.Factor[eq] * res / (1 + p.ThetaDt*alpha.At(eq, i, j))
					S.Set(sc, i, j, s+cor)
					acc[neq+eq] = math.Max(acc[neq+eq], math.Abs(cor))
				}
			}
		}
	})
	return acc[:neq], acc[neq:]
}
