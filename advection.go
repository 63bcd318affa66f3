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
	"github.com/ctessum/atmos/advect"
)

// VelocityPredictor supplies face-normal velocities for the advection of
// scalars over a time step.
type VelocityPredictor interface {
	// EdgeVelocities returns the velocity normal to every face, one
	// component per face field, for advancing state from time over dt.
	EdgeVelocities(state *Field, time, dt float64) (FluxField, error)
}

// ConstantVelocity is a uniform velocity field [m/s].
type ConstantVelocity [2]float64

// EdgeVelocities implements VelocityPredictor.
func (v ConstantVelocity) EdgeVelocities(state *Field, _, _ float64) (FluxField, error) {
	u := NewFluxField(state.Geom, 1)
	for d, ff := range u {
		nx, ny := ff.Shape()
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				ff.Set(0, i, j, v[d])
			}
		}
	}
	return u, nil
}

// AveragedVelocity interpolates the cell-centered velocity of the state to
// the faces.
type AveragedVelocity struct {
	Layout StateLayout
	Mesh   Mesh
}

// EdgeVelocities implements VelocityPredictor.
func (v AveragedVelocity) EdgeVelocities(state *Field, time, _ float64) (FluxField, error) {
	if err := v.Mesh.FillGhost(state, 1, time); err != nil {
		return nil, err
	}
	g := state.Geom
	u := NewFluxField(g, 1)
	for d, ff := range u {
		c := v.Layout.Vel(d)
		nx, ny := ff.Shape()
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				il, jl := lowNeighbor(d, i, j)
				ff.Set(0, i, j, 0.5*(state.At(c, il, jl)+state.At(c, i, j)))
			}
		}
	}
	return u, nil
}

// AdvectionTerms returns -∇·(u U) for every conserved equation of state,
// using first-order upwind face states, along with the advective face
// fluxes. The ghost cells of state are filled first.
func AdvectionTerms(state *Field, umac FluxField, l StateLayout, mesh Mesh, time float64) (*Field, FluxField, error) {
	if err := mesh.FillGhost(state, 1, time); err != nil {
		return nil, nil, err
	}
	g := state.Geom
	neq := l.NEq()
	A := NewField(g, neq, 0)
	flux := NewFluxField(g, neq)
	for d, ff := range flux {
		dx := g.Width(d)
		nx, ny := ff.Shape()
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				il, jl := lowNeighbor(d, i, j)
				u := umac[d].At(0, i, j)
				for eq := 0; eq < neq; eq++ {
					c := l.EqComp(eq)
					ff.Set(eq, i, j, advect.UpwindFlux(u, state.At(c, il, jl), state.At(c, i, j), dx)*dx)
				}
			}
		}
	}
	for eq := 0; eq < neq; eq++ {
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				var div float64
				for d, ff := range flux {
					ih, jh := highNeighbor(d, i, j)
					div += (ff.At(eq, ih, jh) - ff.At(eq, i, j)) / g.Width(d)
				}
				A.Set(eq, i, j, -div)
			}
		}
	}
	return A, flux, nil
}
