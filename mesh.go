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

import "fmt"

// Mesh supplies the values of ghost cells. It stands in for the adaptive
// mesh hierarchy, which owns boundary conditions and halo exchange.
type Mesh interface {
	// FillGhost fills width layers of ghost cells of every component
	// of f with data valid at the given time.
	FillGhost(f *Field, width int, time float64) error
}

// BCType is a physical boundary condition type.
type BCType int

// Boundary condition types.
const (
	// ZeroGradient extrapolates the adjacent valid value into the ghost
	// cells, which gives zero diffusive flux through the boundary face.
	ZeroGradient BCType = iota

	// Periodic copies values from the opposite side of the domain.
	Periodic
)

// UniformMesh is a single-patch-group mesh with physical boundaries of
// the given type on the low (Lo) and high (Hi) side of each direction.
// It serves every multigrid level because its boundary conditions do not
// depend on resolution.
type UniformMesh struct {
	Lo, Hi [2]BCType
}

// FillGhost implements Mesh.
func (m UniformMesh) FillGhost(f *Field, width int, _ float64) error {
	if width > f.NGrow {
		return fmt.Errorf("lmc: cannot fill %d ghost cells in a field with %d", width, f.NGrow)
	}
	for d := 0; d < f.Geom.Dim(); d++ {
		if (m.Lo[d] == Periodic) != (m.Hi[d] == Periodic) {
			return fmt.Errorf("lmc: direction %d is periodic on only one side", d)
		}
	}
	nx, ny := f.Geom.Nx, f.Geom.Ny
	for c := 0; c < f.NComp; c++ {
		for j := 0; j < ny; j++ {
			for g := 1; g <= width; g++ {
				if m.Lo[0] == Periodic {
					f.Set(c, -g, j, f.At(c, nx-g, j))
					f.Set(c, nx-1+g, j, f.At(c, g-1, j))
				} else {
					f.Set(c, -g, j, f.At(c, 0, j))
					f.Set(c, nx-1+g, j, f.At(c, nx-1, j))
				}
			}
		}
		if f.Geom.Dim() == 1 {
			continue
		}
		// The y sweep includes the x ghost columns so that corners are filled.
		for i := -width; i < nx+width; i++ {
			for g := 1; g <= width; g++ {
				if m.Lo[1] == Periodic {
					f.Set(c, i, -g, f.At(c, i, ny-g))
					f.Set(c, i, ny-1+g, f.At(c, i, g-1))
				} else {
					f.Set(c, i, -g, f.At(c, i, 0))
					f.Set(c, i, ny-1+g, f.At(c, i, ny-1))
				}
			}
		}
	}
	return nil
}
