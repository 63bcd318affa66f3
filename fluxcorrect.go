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

// minRepairWeight is the smallest sum of face mass fractions that is
// used to weight the flux repair.
const minRepairWeight = 1.e-12

// repairFace adjusts the species fluxes F on a single face so that they
// sum to zero. The imbalance is removed in proportion to the face mass
// fractions Yf, with negative fractions counted as zero. If the face mass
// fractions sum to less than minRepairWeight the imbalance is split
// equally.
func repairFace(F, Yf []float64) {
	var sumF, sumY float64
	for k, f := range F {
		sumF += f
		sumY += math.Max(Yf[k], 0)
	}
	if sumF == 0 {
		return
	}
	if sumY < minRepairWeight {
		d := sumF / float64(len(F))
		for k := range F {
			F[k] -= d
		}
	} else {
		for k := range F {
			F[k] -= math.Max(Yf[k], 0) * sumF / sumY
		}
	}
	// Put the rounding error on the largest flux so that the sum is zero
	// to the precision of the largest term.
	var sum float64
	imax := 0
	for k, f := range F {
		sum += f
		if math.Abs(f) > math.Abs(F[imax]) {
			imax = k
		}
	}
	F[imax] -= sum
}

// RepairFluxes adjusts the species components 0…nspec-1 of flux so that
// they sum to zero on every face of the domain, physical and patch
// boundary faces included. The face mass fraction is the average of the
// two adjoining cells of Y, components compY…compY+nspec-1, whose ghost
// cells must be filled.
func RepairFluxes(flux FluxField, Y *Field, compY, nspec int, patches []Patch) {
	g := Y.Geom
	runPatches(patches, func(_ int, p Patch) {
		F := make([]float64, nspec)
		Yf := make([]float64, nspec)
		for d, ff := range flux {
			ihi, jhi := ownedFaces(g, p, d)
			for j := p.JLo; j < jhi; j++ {
				for i := p.ILo; i < ihi; i++ {
					il, jl := lowNeighbor(d, i, j)
					for k := 0; k < nspec; k++ {
						F[k] = ff.At(k, i, j)
						Yf[k] = 0.5 * (Y.At(compY+k, il, jl) + Y.At(compY+k, i, j))
					}
					repairFace(F, Yf)
					for k := 0; k < nspec; k++ {
						ff.Set(k, i, j, F[k])
					}
				}
			}
		}
	})
}

// ownedFaces returns the exclusive upper face indices in each direction
// of the faces normal to direction d that patch p is responsible for.
// A patch owns its low face and, on the high boundary of the domain,
// its high face.
func ownedFaces(g Geometry, p Patch, d int) (ihi, jhi int) {
	ihi, jhi = p.IHi, p.JHi
	if d == 0 && p.IHi == g.Nx {
		ihi++
	}
	if d == 1 && p.JHi == g.Ny {
		jhi++
	}
	return ihi, jhi
}

// lowNeighbor returns the cell on the low side of face (i, j) normal to d.
func lowNeighbor(d, i, j int) (int, int) {
	if d == 0 {
		return i - 1, j
	}
	return i, j - 1
}
