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

import (
	"math"
)

// EstTimeStep returns the largest stable time step given the face
// velocities umac, the largest diffusivity dmax [m²/s] and, if the divu
// ceiling is enabled, the divergence constraint divu of state. It is the
// smallest of the advective limit CFL·Δx/|u|, the diffusive limit
// CFL·Δx²/(2·dmax), and, in cells with S > 0 and ρ above
// MinRhoDivuCeiling, DivuDtFactor·(1 - MinRhoDivuCeiling/ρ)/S.
// A positive FixedDt is returned unchanged.
func EstTimeStep(c TimeStepConfig, state *Field, umac FluxField, divu *Field, dmax float64) (float64, error) {
	if c.FixedDt > 0 {
		return c.FixedDt, nil
	}
	g := state.Geom
	dt := math.Inf(1)
	dxMin := math.Inf(1)
	for d, ff := range umac {
		dx := g.Width(d)
		dxMin = math.Min(dxMin, dx)
		nx, ny := ff.Shape()
		var umax float64
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				umax = math.Max(umax, math.Abs(ff.At(0, i, j)))
			}
		}
		if umax > 0 {
			dt = math.Min(dt, c.CFL*dx/umax)
		}
	}
	if dmax > 0 {
		dt = math.Min(dt, c.CFL*dxMin*dxMin/(2*dmax))
	}
	if c.DivuCeiling && divu != nil {
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				s := divu.At(0, i, j)
				rho := state.At(Density, i, j)
				if s > 0 && rho > c.MinRhoDivuCeiling {
					dt = math.Min(dt, c.DivuDtFactor*(1-c.MinRhoDivuCeiling/rho)/s)
				}
			}
		}
	}
	if c.MaxDt > 0 {
		dt = math.Min(dt, c.MaxDt)
	}
	if math.IsInf(dt, 1) {
		return 0, configErrorf("the time step is unbounded; set a fixed or maximum time step")
	}
	return dt, nil
}

// MaxDiffusivity returns the largest species or thermal diffusivity
// [m²/s] in state, using the transport coefficients of the latest
// evaluation.
func (m *MCDD) MaxDiffusivity(state *Field) float64 {
	n := m.layout.NSpecies
	coef := m.op.levels[0].coef
	acc := maxOverPatches(m.patches, 1, func(p Patch, acc []float64) {
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				rho := state.At(Density, i, j)
				for k := 0; k < n; k++ {
					acc[0] = math.Max(acc[0], coef.At(k, i, j)/rho)
				}
				acc[0] = math.Max(acc[0], coef.At(n, i, j)/(rho*coef.At(n+1, i, j)))
			}
		}
	})
	return acc[0]
}
