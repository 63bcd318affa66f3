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
	"fmt"
	"math"
)

// Indices of the scalar components of a state field. Species partial
// densities follow, then velocity.
const (
	Density = iota // ρ [kg/m³]
	RhoH           // ρh [J/m³]
	Temp           // T [K]
	RhoRT          // thermodynamic pressure closure ρRT/W̄ [Pa]
	FirstSpec      // ρY_0 [kg/m³]
)

// universalGasConstant in J/kmol/K, so that molar masses in g/mol
// give pressures in Pa.
const universalGasConstant = 8314.46261815324

// StateLayout describes the component layout of a state field.
type StateLayout struct {
	NSpecies int
	Dim      int
}

// Spec returns the component index of species k.
func (l StateLayout) Spec(k int) int { return FirstSpec + k }

// Vel returns the component index of the velocity in direction d.
func (l StateLayout) Vel(d int) int { return FirstSpec + l.NSpecies + d }

// NComp returns the number of components in a state field.
func (l StateLayout) NComp() int { return FirstSpec + l.NSpecies + l.Dim }

// NEq returns the number of conserved scalar equations: one per species
// plus one for enthalpy.
func (l StateLayout) NEq() int { return l.NSpecies + 1 }

// EqComp returns the state component advanced by conserved equation eq.
func (l StateLayout) EqComp(eq int) int {
	if eq == l.NSpecies {
		return RhoH
	}
	return l.Spec(eq)
}

// NewState allocates a state field.
func (l StateLayout) NewState(g Geometry, ngrow int) *Field {
	return NewField(g, l.NComp(), ngrow)
}

// Conserved returns a new field holding ρY_0…ρY_{n-1}, ρh from s.
func (l StateLayout) Conserved(s *Field) *Field {
	u := NewField(s.Geom, l.NEq(), s.NGrow)
	for eq := 0; eq < l.NEq(); eq++ {
		u.CopyComp(eq, s, l.EqComp(eq), 1)
	}
	return u
}

// SetConserved copies the conserved quantities in u into s and resets
// the density to the sum of the species partial densities.
func (l StateLayout) SetConserved(s, u *Field) {
	for eq := 0; eq < l.NEq(); eq++ {
		s.CopyComp(l.EqComp(eq), u, eq, 1)
	}
	SetRhoToSpeciesSum(s, l, false)
}

// SetRhoToSpeciesSum sets the density in every cell, ghost cells
// included, to the sum of the species partial densities. If clip is true,
// negative partial densities are set to zero first.
func SetRhoToSpeciesSum(s *Field, l StateLayout, clip bool) {
	forAllCells(s, func(i, j int) {
		var rho float64
		for k := 0; k < l.NSpecies; k++ {
			v := s.At(l.Spec(k), i, j)
			if clip && v < 0 {
				v = 0
				s.Set(l.Spec(k), i, j, 0)
			}
			rho += v
		}
		s.Set(Density, i, j, rho)
	})
}

// FloorSpecies sets negative species partial densities to zero in the
// valid region without changing the density.
func FloorSpecies(s *Field, l StateLayout) {
	for j := 0; j < s.Geom.Ny; j++ {
		for i := 0; i < s.Geom.Nx; i++ {
			for k := 0; k < l.NSpecies; k++ {
				if s.At(l.Spec(k), i, j) < 0 {
					s.Set(l.Spec(k), i, j, 0)
				}
			}
		}
	}
}

// forAllCells calls f for every cell of s, ghost cells included.
func forAllCells(s *Field, f func(i, j int)) {
	g := s.NGrow
	gy := s.GrowY()
	for j := -gy; j < s.Geom.Ny+gy; j++ {
		for i := -g; i < s.Geom.Nx+g; i++ {
			f(i, j)
		}
	}
}

// massFractions fills Y with the mass fractions in cell (i, j).
func (l StateLayout) massFractions(s *Field, i, j int, Y []float64) {
	rhoInv := 1 / s.At(Density, i, j)
	for k := range Y {
		Y[k] = s.At(l.Spec(k), i, j) * rhoInv
	}
}

// ComputeTemperature sets the temperature in the valid region from the
// enthalpy and composition, using the current temperature as the
// starting guess.
func ComputeTemperature(s *Field, l StateLayout, th Thermo, patches []Patch) error {
	errs := make([]error, len(patches))
	runPatches(patches, func(ip int, p Patch) {
		Y := make([]float64, l.NSpecies)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				l.massFractions(s, i, j, Y)
				h := s.At(RhoH, i, j) / s.At(Density, i, j)
				T, err := th.TFromHY(h, Y, s.At(Temp, i, j))
				if err != nil {
					errs[ip] = fmt.Errorf("%w: cell (%d,%d): %v", ErrThermo, i, j, err)
					return
				}
				s.Set(Temp, i, j, T)
			}
		}
	})
	return firstError(errs)
}

// ComputeEnthalpy sets ρh in the valid region from the temperature and
// composition.
func ComputeEnthalpy(s *Field, l StateLayout, th Thermo, patches []Patch) {
	runPatches(patches, func(_ int, p Patch) {
		Y := make([]float64, l.NSpecies)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				l.massFractions(s, i, j, Y)
				s.Set(RhoH, i, j, s.At(Density, i, j)*th.HFromTY(s.At(Temp, i, j), Y))
			}
		}
	})
}

// ComputeRhoRT sets the thermodynamic pressure closure ρ R T Σ Y_k/W_k
// in the valid region.
func ComputeRhoRT(s *Field, l StateLayout, th Thermo) {
	mw := th.MolecularWeights()
	for j := 0; j < s.Geom.Ny; j++ {
		for i := 0; i < s.Geom.Nx; i++ {
			var molPerMass float64
			for k, w := range mw {
				molPerMass += s.At(l.Spec(k), i, j) / w
			}
			s.Set(RhoRT, i, j, universalGasConstant*s.At(Temp, i, j)*molPerMass)
		}
	}
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// meanMolecularWeight returns W̄ = 1/Σ(Y_k/W_k).
func meanMolecularWeight(Y, mw []float64) float64 {
	var s float64
	for k, y := range Y {
		s += y / mw[k]
	}
	if s <= 0 {
		return math.Inf(1)
	}
	return 1 / s
}
