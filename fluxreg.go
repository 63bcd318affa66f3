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

// FluxRegister accumulates time-integrated face fluxes over a step. It
// stands in for the coarse-fine flux registers of a mesh hierarchy: the
// net boundary transport it records must balance the change in the
// domain totals.
type FluxRegister struct {
	geom       Geometry
	flux       FluxField
	increments int
}

// NewFluxRegister allocates an empty register with ncomp components.
func NewFluxRegister(g Geometry, ncomp int) *FluxRegister {
	return &FluxRegister{geom: g, flux: NewFluxField(g, ncomp)}
}

// Increment adds scale times f to the register.
func (r *FluxRegister) Increment(f FluxField, scale float64) {
	r.flux.AddScaled(scale, f)
	r.increments++
}

// Reset clears the register.
func (r *FluxRegister) Reset() {
	r.flux.Zero()
	r.increments = 0
}

// Increments returns the number of Increment calls since the last Reset.
func (r *FluxRegister) Increments() int { return r.increments }

// Flux returns the accumulated fluxes.
func (r *FluxRegister) Flux() FluxField { return r.flux }

// Net returns the amount of component comp that left the domain through
// its boundary faces, per unit depth.
func (r *FluxRegister) Net(comp int) float64 {
	var o float64
	for d, ff := range r.flux {
		a := r.geom.FaceArea(d)
		nx, ny := ff.Shape()
		if d == 0 {
			for j := 0; j < ny; j++ {
				o += a * (ff.At(comp, nx-1, j) - ff.At(comp, 0, j))
			}
			continue
		}
		for i := 0; i < nx; i++ {
			o += a * (ff.At(comp, i, ny-1) - ff.At(comp, i, 0))
		}
	}
	return o
}
