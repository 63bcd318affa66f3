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
	"runtime"
	"sync"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Geometry describes a uniform patch of rectangular cells.
// A one-dimensional problem has Ny == 1.
type Geometry struct {
	Nx, Ny int
	Dx, Dy float64 // cell widths [m]
}

// Dim returns the number of active spatial directions.
func (g Geometry) Dim() int {
	if g.Ny == 1 {
		return 1
	}
	return 2
}

// Width returns the cell width in direction dir.
func (g Geometry) Width(dir int) float64 {
	if dir == 0 {
		return g.Dx
	}
	return g.Dy
}

// FaceArea returns the area of a cell face normal to direction dir,
// per unit depth.
func (g Geometry) FaceArea(dir int) float64 {
	if dir == 0 {
		return g.Dy
	}
	return g.Dx
}

// Volume returns the cell volume per unit depth.
func (g Geometry) Volume() float64 { return g.Dx * g.Dy }

// CanCoarsen reports whether g can be coarsened by a factor of two.
func (g Geometry) CanCoarsen() bool {
	if g.Nx < 2 || g.Nx%2 != 0 {
		return false
	}
	if g.Ny != 1 && (g.Ny < 2 || g.Ny%2 != 0) {
		return false
	}
	return true
}

// Coarsen returns g coarsened by a factor of two in every active direction.
func (g Geometry) Coarsen() Geometry {
	c := Geometry{Nx: g.Nx / 2, Ny: g.Ny, Dx: 2 * g.Dx, Dy: g.Dy}
	if g.Ny != 1 {
		c.Ny = g.Ny / 2
		c.Dy = 2 * g.Dy
	}
	return c
}

// CellCenter returns the location of the center of cell (i, j)
// relative to the lower-left corner of the domain.
func (g Geometry) CellCenter(i, j int) (x, y float64) {
	x = (float64(i) + 0.5) * g.Dx
	if g.Ny == 1 {
		return x, 0
	}
	return x, (float64(j) + 0.5) * g.Dy
}

// Patch is the block of valid cells [ILo,IHi) × [JLo,JHi).
type Patch struct {
	ILo, IHi, JLo, JHi int
}

// Len returns the number of cells in the patch.
func (p Patch) Len() int { return (p.IHi - p.ILo) * (p.JHi - p.JLo) }

// Patches tiles g into patches with at most size cells in each direction.
func (g Geometry) Patches(size int) []Patch {
	if size <= 0 {
		size = g.Nx
		if g.Ny > size {
			size = g.Ny
		}
	}
	var o []Patch
	for j := 0; j < g.Ny; j += size {
		jhi := j + size
		if jhi > g.Ny {
			jhi = g.Ny
		}
		for i := 0; i < g.Nx; i += size {
			ihi := i + size
			if ihi > g.Nx {
				ihi = g.Nx
			}
			o = append(o, Patch{ILo: i, IHi: ihi, JLo: j, JHi: jhi})
		}
	}
	return o
}

// runPatches concurrently runs f on all of the patches and returns
// after every patch has been processed.
func runPatches(patches []Patch, f func(ip int, p Patch)) {
	nprocs := runtime.GOMAXPROCS(0)
	if nprocs > len(patches) {
		nprocs = len(patches)
	}
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for ii := pp; ii < len(patches); ii += nprocs {
				f(ii, patches[ii])
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

// maxOverPatches runs f on every patch, each with its own n-element
// accumulator, and returns the element-wise maximum over all patches.
// The reduction happens only after every patch has finished.
func maxOverPatches(patches []Patch, n int, f func(p Patch, acc []float64)) []float64 {
	partial := make([][]float64, len(patches))
	runPatches(patches, func(ip int, p Patch) {
		acc := make([]float64, n)
		f(p, acc)
		partial[ip] = acc
	})
	o := make([]float64, n)
	for _, acc := range partial {
		for k, v := range acc {
			o[k] = math.Max(o[k], v)
		}
	}
	return o
}

// Field holds NComp cell-centered quantities over a Geometry plus
// NGrow layers of ghost cells in each active direction.
type Field struct {
	Geom  Geometry
	NComp int
	NGrow int

	gy   int // ghost width in y; zero for one-dimensional problems
	data *sparse.DenseArray
}

// NewField allocates a zeroed field.
func NewField(g Geometry, ncomp, ngrow int) *Field {
	f := &Field{Geom: g, NComp: ncomp, NGrow: ngrow, gy: ngrow}
	if g.Dim() == 1 {
		f.gy = 0
	}
	f.data = sparse.ZerosDense(ncomp, g.Nx+2*ngrow, g.Ny+2*f.gy)
	return f
}

// GrowY returns the number of ghost cells in the y direction.
func (f *Field) GrowY() int { return f.gy }

func (f *Field) index(c, i, j int) int {
	return (c*f.data.Shape[1]+i+f.NGrow)*f.data.Shape[2] + j + f.gy
}

// At returns component c of cell (i, j). Ghost cells have negative
// indices or indices at or beyond Nx, Ny.
func (f *Field) At(c, i, j int) float64 { return f.data.Elements[f.index(c, i, j)] }

// Set sets component c of cell (i, j).
func (f *Field) Set(c, i, j int, v float64) { f.data.Elements[f.index(c, i, j)] = v }

// Add adds v to component c of cell (i, j).
func (f *Field) Add(c, i, j int, v float64) { f.data.Elements[f.index(c, i, j)] += v }

// Copy returns a deep copy of f.
func (f *Field) Copy() *Field {
	o := *f
	o.data = f.data.Copy()
	return &o
}

func (f *Field) checkShape(o *Field) {
	if f.Geom != o.Geom || f.NGrow != o.NGrow {
		panic(fmt.Errorf("lmc: field shape mismatch: %+v/%d vs %+v/%d", f.Geom, f.NGrow, o.Geom, o.NGrow))
	}
}

func (f *Field) compSlice(c int) []float64 {
	n := f.data.Shape[1] * f.data.Shape[2]
	return f.data.Elements[c*n : (c+1)*n]
}

// CopyComp copies n components of src starting at srcComp into f starting
// at dstComp, including ghost cells. The fields must have the same shape.
func (f *Field) CopyComp(dstComp int, src *Field, srcComp, n int) {
	f.checkShape(src)
	for k := 0; k < n; k++ {
		copy(f.compSlice(dstComp+k), src.compSlice(srcComp+k))
	}
}

// SetVal sets n components starting at comp to v, including ghost cells.
func (f *Field) SetVal(v float64, comp, n int) {
	for k := comp; k < comp+n; k++ {
		s := f.compSlice(k)
		for i := range s {
			s[i] = v
		}
	}
}

// Zero sets every value in f to zero.
func (f *Field) Zero() {
	for i := range f.data.Elements {
		f.data.Elements[i] = 0
	}
}

// Scale multiplies every value in f by v.
func (f *Field) Scale(v float64) { f.data.Scale(v) }

// AddField adds src to f in place.
func (f *Field) AddField(src *Field) {
	f.checkShape(src)
	f.data.AddDense(src.data)
}

// AddScaled adds alpha*src to f in place.
func (f *Field) AddScaled(alpha float64, src *Field) {
	f.checkShape(src)
	floats.AddScaled(f.data.Elements, alpha, src.data.Elements)
}

// AddScaledComp adds alpha times component srcComp of src to
// component dstComp of f, including ghost cells.
func (f *Field) AddScaledComp(dstComp int, alpha float64, src *Field, srcComp int) {
	f.checkShape(src)
	floats.AddScaled(f.compSlice(dstComp), alpha, src.compSlice(srcComp))
}

// MaxAbs returns the maximum absolute value of component c over the
// valid region.
func (f *Field) MaxAbs(c int) float64 {
	var o float64
	for j := 0; j < f.Geom.Ny; j++ {
		for i := 0; i < f.Geom.Nx; i++ {
			o = math.Max(o, math.Abs(f.At(c, i, j)))
		}
	}
	return o
}

// Sum returns the sum of component c over the valid region.
func (f *Field) Sum(c int) float64 {
	var o float64
	for j := 0; j < f.Geom.Ny; j++ {
		for i := 0; i < f.Geom.Nx; i++ {
			o += f.At(c, i, j)
		}
	}
	return o
}

// ValidValues returns the values of component c over the valid region
// in row-major order.
func (f *Field) ValidValues(c int) []float64 {
	o := make([]float64, 0, f.Geom.Nx*f.Geom.Ny)
	for j := 0; j < f.Geom.Ny; j++ {
		for i := 0; i < f.Geom.Nx; i++ {
			o = append(o, f.At(c, i, j))
		}
	}
	return o
}

// FaceField holds NComp quantities on the faces normal to direction Dir.
// Face i in direction 0 lies between cells i-1 and i.
type FaceField struct {
	Dir   int
	NComp int

	data *sparse.DenseArray
}

// NewFaceField allocates a zeroed face field for g normal to dir.
func NewFaceField(g Geometry, dir, ncomp int) *FaceField {
	nx, ny := g.Nx, g.Ny
	if dir == 0 {
		nx++
	} else {
		ny++
	}
	return &FaceField{Dir: dir, NComp: ncomp, data: sparse.ZerosDense(ncomp, nx, ny)}
}

// Shape returns the number of faces in each direction.
func (f *FaceField) Shape() (nx, ny int) { return f.data.Shape[1], f.data.Shape[2] }

func (f *FaceField) index(c, i, j int) int {
	return (c*f.data.Shape[1]+i)*f.data.Shape[2] + j
}

// At returns component c on face (i, j).
func (f *FaceField) At(c, i, j int) float64 { return f.data.Elements[f.index(c, i, j)] }

// Set sets component c on face (i, j).
func (f *FaceField) Set(c, i, j int, v float64) { f.data.Elements[f.index(c, i, j)] = v }

// Add adds v to component c on face (i, j).
func (f *FaceField) Add(c, i, j int, v float64) { f.data.Elements[f.index(c, i, j)] += v }

// FluxField holds one FaceField per active direction.
type FluxField []*FaceField

// NewFluxField allocates a zeroed flux field with ncomp components.
func NewFluxField(g Geometry, ncomp int) FluxField {
	o := make(FluxField, g.Dim())
	for d := range o {
		o[d] = NewFaceField(g, d, ncomp)
	}
	return o
}

// Copy returns a deep copy of f.
func (f FluxField) Copy() FluxField {
	o := make(FluxField, len(f))
	for d, ff := range f {
		c := *ff
		c.data = ff.data.Copy()
		o[d] = &c
	}
	return o
}

// Zero sets every face value to zero.
func (f FluxField) Zero() {
	for _, ff := range f {
		for i := range ff.data.Elements {
			ff.data.Elements[i] = 0
		}
	}
}

// Scale multiplies every face value by v.
func (f FluxField) Scale(v float64) {
	for _, ff := range f {
		ff.data.Scale(v)
	}
}

// AddScaled adds alpha*src to f in place.
func (f FluxField) AddScaled(alpha float64, src FluxField) {
	for d, ff := range f {
		floats.AddScaled(ff.data.Elements, alpha, src[d].data.Elements)
	}
}

// TimeLevel selects the old-time or new-time member of a Fluxes pair.
type TimeLevel int

// Time levels.
const (
	OldTime TimeLevel = iota
	NewTime
)

func (t TimeLevel) String() string {
	if t == OldTime {
		return "old"
	}
	return "new"
}

// Fluxes holds diffusive fluxes evaluated at the beginning and end of a
// time step.
type Fluxes struct {
	Old, New FluxField
}

// At returns the fluxes for time level t.
func (f *Fluxes) At(t TimeLevel) FluxField {
	if t == OldTime {
		return f.Old
	}
	return f.New
}

// TimeCentered returns (1-theta)*Old + theta*New.
func (f *Fluxes) TimeCentered(theta float64) FluxField {
	o := f.Old.Copy()
	o.Scale(1 - theta)
	o.AddScaled(theta, f.New)
	return o
}
