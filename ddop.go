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

// DDMode selects the unknown solved for by the heat equation.
type DDMode int

// Heat equation modes.
const (
	// TempMode solves for temperature directly. The heat row of the
	// operator must be scaled by 1/(ρ c_p) before relaxation.
	TempMode DDMode = iota

	// EnthalpyMode solves for specific enthalpy; temperature is
	// recovered from enthalpy and composition.
	EnthalpyMode
)

func (m DDMode) String() string {
	switch m {
	case TempMode:
		return "temperature"
	case EnthalpyMode:
		return "enthalpy"
	default:
		return fmt.Sprintf("DDMode(%d)", int(m))
	}
}

// ParseDDMode converts "temperature" or "enthalpy" into a DDMode.
func ParseDDMode(s string) (DDMode, error) {
	switch s {
	case "temperature", "temp", "T":
		return TempMode, nil
	case "enthalpy", "H", "rhoh":
		return EnthalpyMode, nil
	}
	return 0, configErrorf("invalid diffusion mode %q; valid options are 'temperature' and 'enthalpy'", s)
}

// Component indices of the composite (Y, T, H, ρ) working field for n
// species. Equation k < n solves for Y_k; equation n is the heat equation.
func compT(n int) int          { return n }
func compH(n int) int          { return n + 1 }
func compRho(n int) int        { return n + 2 }
func compositeNComp(n int) int { return n + 3 }

func heatComp(n int, m DDMode) int {
	if m == TempMode {
		return compT(n)
	}
	return compH(n)
}

// DDOp evaluates the multicomponent differential diffusion operator on
// a hierarchy of successively coarsened levels. Transport coefficients
// are cached per level; the cache changes only in UpdateCoefficients.
type DDOp struct {
	nspec     int
	thermo    Thermo
	transport Transport
	mesh      Mesh
	levels    []ddLevel
}

type ddLevel struct {
	geom    Geometry
	patches []Patch

	// coef holds ρD_0…ρD_{n-1}, λ and c_p.
	coef *Field
}

// NewDDOp creates an operator for geometry g with up to maxLevels levels,
// stopping early when g can no longer be coarsened by two.
func NewDDOp(g Geometry, maxLevels, patchSize, nspec int, th Thermo, tr Transport, mesh Mesh) *DDOp {
	op := &DDOp{nspec: nspec, thermo: th, transport: tr, mesh: mesh}
	for {
		op.levels = append(op.levels, ddLevel{
			geom:    g,
			patches: g.Patches(patchSize),
			coef:    NewField(g, nspec+2, 1),
		})
		if len(op.levels) >= maxLevels || !g.CanCoarsen() {
			break
		}
		g = g.Coarsen()
	}
	return op
}

// NumLevels returns the number of levels in the hierarchy.
func (op *DDOp) NumLevels() int { return len(op.levels) }

// Geometry returns the geometry of the given level.
func (op *DDOp) Geometry(level int) Geometry { return op.levels[level].geom }

// Patches returns the patches of the given level.
func (op *DDOp) Patches(level int) []Patch { return op.levels[level].patches }

// UpdateCoefficients recomputes the transport coefficients on the finest
// level from the composite field S and averages them onto the coarser
// levels. The ghost cells of S are filled first so that the coefficients
// see the boundary state.
func (op *DDOp) UpdateCoefficients(S *Field, time float64) error {
	if err := op.mesh.FillGhost(S, 1, time); err != nil {
		return err
	}
	n := op.nspec
	lev := op.levels[0]
	runPatches(lev.patches, func(_ int, p Patch) {
		Y := make([]float64, n)
		rhoD := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				for k := range Y {
					Y[k] = S.At(k, i, j)
				}
				T := S.At(compT(n), i, j)
				lambda := op.transport.Coefficients(T, S.At(compRho(n), i, j), Y, rhoD)
				for k, v := range rhoD {
					lev.coef.Set(k, i, j, v)
				}
				lev.coef.Set(n, i, j, lambda)
				lev.coef.Set(n+1, i, j, op.thermo.CpMix(T, Y))
			}
		}
	})
	if err := op.mesh.FillGhost(lev.coef, 1, time); err != nil {
		return err
	}
	for l := 1; l < len(op.levels); l++ {
		Restrict(op.levels[l-1].coef, op.levels[l].coef, 0, n+2)
		if err := op.mesh.FillGhost(op.levels[l].coef, 1, time); err != nil {
			return err
		}
	}
	return nil
}

// ApplyOptions configures an operator evaluation.
type ApplyOptions struct {
	Mode  DDMode
	Level int
	Time  float64

	// Alpha, if not nil, receives the diagonal approximation of the
	// operator. For the density-weighted rows (species, and enthalpy in
	// EnthalpyMode) it is given per unit density.
	Alpha *Field

	// Flux, if not nil, receives the face fluxes: species diffusive mass
	// fluxes followed by the enthalpy flux.
	Flux FluxField

	// Uncorrected skips the repair that makes the species fluxes sum
	// to zero.
	Uncorrected bool
}

// Apply evaluates the operator on the composite field S, writing the
// n+1 equation rows into L. Species rows are -∇·F_k. The heat row is
// -∇·q in EnthalpyMode, where q = -λ∇T + Σ h_k F_k, and
// ∇·λ∇T - Σ c_p,k F_k·∇T in TempMode. The ghost cells of S are filled
// before use.
func (op *DDOp) Apply(L, S *Field, o ApplyOptions) error {
	if o.Level < 0 || o.Level >= len(op.levels) {
		return fmt.Errorf("lmc: DDOp level %d out of range [0,%d)", o.Level, len(op.levels))
	}
	if err := op.mesh.FillGhost(S, 1, o.Time); err != nil {
		return err
	}
	lev := op.levels[o.Level]
	flux := o.Flux
	if flux == nil {
		flux = NewFluxField(lev.geom, op.nspec+1)
	}
	op.faceFluxes(lev, S, flux, o.Uncorrected)
	op.divergence(lev, L, S, flux, o)
	return nil
}

// faceFluxes sets the species diffusive fluxes on every face, repairs
// them to sum to zero unless uncorrected is set, and then sets the
// enthalpy flux from the repaired species fluxes.
func (op *DDOp) faceFluxes(lev ddLevel, S *Field, flux FluxField, uncorrected bool) {
	n := op.nspec
	g, coef := lev.geom, lev.coef
	cT := compT(n)
	runPatches(lev.patches, func(_ int, p Patch) {
		for d, ff := range flux {
			dx := g.Width(d)
			ihi, jhi := ownedFaces(g, p, d)
			for j := p.JLo; j < jhi; j++ {
				for i := p.ILo; i < ihi; i++ {
					il, jl := lowNeighbor(d, i, j)
					for k := 0; k < n; k++ {
						rhoD := harmonicMean(coef.At(k, il, jl), coef.At(k, i, j))
						ff.Set(k, i, j, -rhoD*(S.At(k, i, j)-S.At(k, il, jl))/dx)
					}
				}
			}
		}
	})
	if !uncorrected {
		RepairFluxes(flux, S, 0, n, lev.patches)
	}
	runPatches(lev.patches, func(_ int, p Patch) {
		h := make([]float64, n)
		for d, ff := range flux {
			dx := g.Width(d)
			ihi, jhi := ownedFaces(g, p, d)
			for j := p.JLo; j < jhi; j++ {
				for i := p.ILo; i < ihi; i++ {
					il, jl := lowNeighbor(d, i, j)
					tl, tr := S.At(cT, il, jl), S.At(cT, i, j)
					q := -harmonicMean(coef.At(n, il, jl), coef.At(n, i, j)) * (tr - tl) / dx
					op.thermo.SpeciesEnthalpies(0.5*(tl+tr), h)
					for k := 0; k < n; k++ {
						q += h[k] * ff.At(k, i, j)
					}
					ff.Set(n, i, j, q)
				}
			}
		}
	})
}

func (op *DDOp) divergence(lev ddLevel, L, S *Field, flux FluxField, o ApplyOptions) {
	n := op.nspec
	g, coef := lev.geom, lev.coef
	cT := compT(n)
	runPatches(lev.patches, func(_ int, p Patch) {
		cp := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				for k := 0; k <= n; k++ {
					var div float64
					for d, ff := range flux {
						ih, jh := highNeighbor(d, i, j)
						div += (ff.At(k, ih, jh) - ff.At(k, i, j)) / g.Width(d)
					}
					L.Set(k, i, j, -div)
				}
				if o.Mode == TempMode {
					T := S.At(cT, i, j)
					op.thermo.SpeciesCp(T, cp)
					var cond, fgrad float64
					for d, ff := range flux {
						dx := g.Width(d)
						il, jl := lowNeighbor(d, i, j)
						ih, jh := highNeighbor(d, i, j)
						lamLo := harmonicMean(coef.At(n, il, jl), coef.At(n, i, j))
						lamHi := harmonicMean(coef.At(n, i, j), coef.At(n, ih, jh))
						cond += (lamHi*(S.At(cT, ih, jh)-T) - lamLo*(T-S.At(cT, il, jl))) / (dx * dx)
						dTdx := (S.At(cT, ih, jh) - S.At(cT, il, jl)) / (2 * dx)
						for k := 0; k < n; k++ {
							fbar := 0.5 * (ff.At(k, i, j) + ff.At(k, ih, jh))
							fgrad += cp[k] * fbar * dTdx
						}
					}
					L.Set(n, i, j, cond-fgrad)
				}
				if o.Alpha != nil {
					op.diagonal(lev, o.Alpha, S, o.Mode, i, j)
				}
			}
		}
	})
}

// diagonal sets the diagonal approximation of the operator in cell (i, j).
func (op *DDOp) diagonal(lev ddLevel, alpha, S *Field, mode DDMode, i, j int) {
	n := op.nspec
	g, coef := lev.geom, lev.coef
	rho := S.At(compRho(n), i, j)
	for k := 0; k <= n; k++ {
		var a float64
		for d := 0; d < g.Dim(); d++ {
			dx := g.Width(d)
			il, jl := lowNeighbor(d, i, j)
			ih, jh := highNeighbor(d, i, j)
			a += (harmonicMean(coef.At(k, il, jl), coef.At(k, i, j)) +
				harmonicMean(coef.At(k, i, j), coef.At(k, ih, jh))) / (dx * dx)
		}
		switch {
		case k < n:
			a /= rho
		case mode == EnthalpyMode:
			a /= rho * coef.At(n+1, i, j)
		}
		alpha.Set(k, i, j, a)
	}
}

// highNeighbor returns the cell on the high side of cell (i, j) in
// direction d, which is also the index of the cell's high face.
func highNeighbor(d, i, j int) (int, int) {
	if d == 0 {
		return i + 1, j
	}
	return i, j + 1
}

func harmonicMean(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return 2. * a * b / (a + b)
}
