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

	"github.com/sirupsen/logrus"
)

// Status is the state of a multigrid solve.
type Status int

// Multigrid states. A solve starts InProgress and ends either Solved or
// Stalled, or InProgress if the cycle budget runs out. A solve whose
// residual or correction stops being finite ends Stalled.
const (
	InProgress Status = iota
	Solved
	Stalled
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in progress"
	case Solved:
		return "solved"
	case Stalled:
		return "stalled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MGParams holds the parameters and convergence state of one V-cycle.
// A copy with Level+1 and NumCoarser-1 is passed to the coarser level.
type MGParams struct {
	// Nu1 and Nu2 are the pre- and post-relaxation sweeps, indexed by
	// level. The last entry applies to every deeper level.
	Nu1, Nu2 []int

	Nub   int // sweeps on the coarsest level, replacing Nu1 and Nu2 if > 0
	Gamma int // coarse cycles per visit

	AbsTol   float64 // absolute tolerance on the normalized residual
	ReduxTol float64 // tolerance on the residual reduction ratio
	StallTol float64 // normalized correction below which the solve stalls

	Level      int // level of this cycle
	NumCoarser int // number of coarser levels below this one
	Iter       int // outer cycle number

	ThetaDt     float64
	Mode        DDMode
	Factor      []float64 // relaxation factor per equation
	Skip        []bool    // equations excluded from the solve
	Uncorrected bool      // relax with uncorrected species fluxes
	Time        float64

	// MaxRes and MaxCor are the normalized maximum residual and
	// correction of the latest sweep.
	MaxRes, MaxCor []float64

	// MaxResInitial is the normalized maximum residual of the first
	// sweep of the finest-level call. It is shared with coarser levels.
	MaxResInitial []float64

	// WorstAbs and WorstRedux are the equations with the largest
	// normalized residual and largest reduction ratio in the latest test.
	WorstAbs, WorstRedux int

	Status Status
}

func (p *MGParams) child() MGParams {
	c := *p
	c.Level++
	c.NumCoarser--
	c.Status = InProgress
	c.MaxRes, c.MaxCor = nil, nil
	return c
}

// sweeps returns the pre- and post-relaxation sweep counts of this
// level. The coarsest level of a hierarchy uses Nub instead, if set.
func (p *MGParams) sweeps() (nu1, nu2 int) {
	if p.Level > 0 && p.NumCoarser == 0 && p.Nub > 0 {
		return p.Nub, 0
	}
	return levelCount(p.Nu1, p.Level), levelCount(p.Nu2, p.Level)
}

func levelCount(nu []int, level int) int {
	switch {
	case len(nu) == 0:
		return 0
	case level >= len(nu):
		return nu[len(nu)-1]
	}
	return nu[level]
}

// diverged reports whether the latest residual or correction of an
// active equation is not finite.
func (p *MGParams) diverged() bool {
	for _, v := range [][]float64{p.MaxRes, p.MaxCor} {
		for eq, x := range v {
			if (p.Skip == nil || !p.Skip[eq]) && (math.IsNaN(x) || math.IsInf(x, 0)) {
				return true
			}
		}
	}
	return false
}

// mgLevel is the working storage for one multigrid level. The pool of
// levels is allocated once, when the Multigrid is created.
type mgLevel struct {
	geom    Geometry
	patches []Patch

	S        *Field // composite (Y, T, H, ρ) iterate
	saved    *Field // copy of S before the coarse solve
	weighted *Field // scratch for density-weighted restriction

	Rhs, Res, L, alpha *Field // one component per equation

	rhoCpInv *Field // 1/(ρ c_p) for scaling the temperature row
	flux     FluxField
}

// Multigrid is a nonlinear full approximation scheme solver for the
// coupled species and heat diffusion system
// A(S) = ρS - θΔt·L(S) = R.
type Multigrid struct {
	op      *DDOp
	thermo  Thermo
	nspec   int
	typical []float64
	log     logrus.FieldLogger
	levels  []*mgLevel

	// best holds a copy of the finest-level iterate, kept by Checkpoint.
	best *Field
}

// NewMultigrid allocates a level pool matching the levels of op.
// typical holds one reference magnitude per equation.
func NewMultigrid(op *DDOp, th Thermo, typical []float64, log logrus.FieldLogger) (*Multigrid, error) {
	n := op.nspec
	if len(typical) != n+1 {
		return nil, configErrorf("%d typical values for %d equations", len(typical), n+1)
	}
	for eq, v := range typical {
		if !(v > 0) {
			return nil, configErrorf("typical value for equation %d is %g; it must be positive", eq, v)
		}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	mg := &Multigrid{op: op, thermo: th, nspec: n, typical: typical, log: log,
		best: NewField(op.Geometry(0), compositeNComp(n), 1)}
	for l := 0; l < op.NumLevels(); l++ {
		g := op.Geometry(l)
		mg.levels = append(mg.levels, &mgLevel{
			geom:     g,
			patches:  op.Patches(l),
			S:        NewField(g, compositeNComp(n), 1),
			saved:    NewField(g, compositeNComp(n), 1),
			weighted: NewField(g, compositeNComp(n), 1),
			Rhs:      NewField(g, n+1, 0),
			Res:      NewField(g, n+1, 0),
			L:        NewField(g, n+1, 0),
			alpha:    NewField(g, n+1, 0),
			rhoCpInv: NewField(g, 1, 0),
			flux:     NewFluxField(g, n+1),
		})
	}
	return mg, nil
}

// NumLevels returns the number of levels in the pool.
func (mg *Multigrid) NumLevels() int { return len(mg.levels) }

// State returns the composite iterate on the finest level.
func (mg *Multigrid) State() *Field { return mg.levels[0].S }

// Checkpoint saves the finest-level iterate, ghost cells included.
func (mg *Multigrid) Checkpoint() {
	mg.best.CopyComp(0, mg.levels[0].S, 0, compositeNComp(mg.nspec))
}

// Restore resets the finest-level iterate to the latest checkpoint.
func (mg *Multigrid) Restore() {
	mg.levels[0].S.CopyComp(0, mg.best, 0, compositeNComp(mg.nspec))
}

// Rhs returns the right-hand side on the finest level.
func (mg *Multigrid) Rhs() *Field { return mg.levels[0].Rhs }

// Residual returns the residual of the latest sweep on the finest level.
func (mg *Multigrid) Residual() *Field { return mg.levels[0].Res }

// RhoCpInv returns the finest-level 1/(ρ c_p) field. After changing it,
// call AverageDownRhoCpInv.
func (mg *Multigrid) RhoCpInv() *Field { return mg.levels[0].rhoCpInv }

// AverageDownRhoCpInv restricts the finest-level 1/(ρ c_p) field onto
// the coarser levels.
func (mg *Multigrid) AverageDownRhoCpInv() {
	for l := 1; l < len(mg.levels); l++ {
		Restrict(mg.levels[l-1].rhoCpInv, mg.levels[l].rhoCpInv, 0, 1)
	}
}

// Cycle performs one FAS V-cycle starting at level p.Level.
func (mg *Multigrid) Cycle(p *MGParams) error {
	if p.Level < 0 || p.NumCoarser < 0 || p.Level+p.NumCoarser >= len(mg.levels) {
		return configErrorf("multigrid level %d with %d coarser levels exceeds the %d-level pool",
			p.Level, p.NumCoarser, len(mg.levels))
	}
	lev := mg.levels[p.Level]
	nu1, nu2 := p.sweeps()
	if err := mg.smooth(p, lev, nu1, true); err != nil {
		return err
	}
	if p.Status == InProgress && p.NumCoarser > 0 {
		if err := mg.coarseCorrection(p, lev); err != nil {
			return err
		}
	}
	if p.Status == InProgress {
		return mg.smooth(p, lev, nu2, false)
	}
	return nil
}

// smooth performs up to nu relaxation sweeps followed by a residual-only
// sweep, testing for convergence after each.
func (mg *Multigrid) smooth(p *MGParams, lev *mgLevel, nu int, pre bool) error {
	for iter := 0; iter <= nu && p.Status == InProgress; iter++ {
		resOnly := iter == nu
		if err := mg.evaluate(p, lev, p.Level, true); err != nil {
			return err
		}
		maxRes, maxCor := Relax(lev.S, lev.Res, lev.L, lev.alpha, lev.Rhs, RelaxParams{
			ThetaDt: p.ThetaDt,
			Factor:  p.Factor,
			Mode:    p.Mode,
			ResOnly: resOnly,
			Mult:    -1,
			Skip:    p.Skip,
		}, lev.patches)
		for eq := range maxRes {
			maxRes[eq] /= mg.typical[eq]
			maxCor[eq] /= mg.typical[eq]
		}
		if pre && iter == 0 && p.MaxResInitial == nil {
			p.MaxResInitial = append([]float64{}, maxRes...)
		}
		p.MaxRes = maxRes
		if !resOnly {
			p.MaxCor = maxCor
		}
		if p.Mode == EnthalpyMode && !resOnly {
			if err := mg.syncTemperature(lev); err != nil {
				return err
			}
		}
		mg.test(p, resOnly)
		mg.log.WithFields(logrus.Fields{
			"level":  p.Level,
			"cycle":  p.Iter,
			"sweep":  iter,
			"maxRes": p.MaxRes[p.WorstAbs],
			"eq":     p.WorstAbs,
			"status": p.Status,
		}).Debug("mcdd relaxation sweep")
	}
	return nil
}

// evaluate applies the operator on level l, scaling the temperature row
// by 1/(ρ c_p) in TempMode.
func (mg *Multigrid) evaluate(p *MGParams, lev *mgLevel, l int, withAlpha bool) error {
	o := ApplyOptions{
		Mode:        p.Mode,
		Level:       l,
		Time:        p.Time,
		Flux:        lev.flux,
		Uncorrected: p.Uncorrected,
	}
	if withAlpha {
		o.Alpha = lev.alpha
	}
	if err := mg.op.Apply(lev.L, lev.S, o); err != nil {
		return err
	}
	if p.Mode != TempMode {
		return nil
	}
	n := mg.nspec
	runPatches(lev.patches, func(_ int, pt Patch) {
		for j := pt.JLo; j < pt.JHi; j++ {
			for i := pt.ILo; i < pt.IHi; i++ {
				s := lev.rhoCpInv.At(0, i, j)
				lev.L.Set(n, i, j, lev.L.At(n, i, j)*s)
				if withAlpha {
					lev.alpha.Set(n, i, j, lev.alpha.At(n, i, j)*s)
				}
			}
		}
	})
	return nil
}

// test applies the absolute, relative and stall tests in that order. A
// residual or correction that is not finite stalls the solve.
func (mg *Multigrid) test(p *MGParams, resOnly bool) {
	active := func(eq int) bool { return p.Skip == nil || !p.Skip[eq] }
	if p.diverged() {
		p.Status = Stalled
		return
	}

	p.WorstAbs = 0
	absOK := true
	for eq, r := range p.MaxRes {
		if !active(eq) {
			continue
		}
		if r > p.MaxRes[p.WorstAbs] || !active(p.WorstAbs) {
			p.WorstAbs = eq
		}
		if !(r < p.AbsTol) {
			absOK = false
		}
	}
	if absOK {
		p.Status = Solved
		return
	}

	worstRatio := 0.
	p.WorstRedux = -1
	for eq, r := range p.MaxRes {
		if !active(eq) || r <= p.AbsTol {
			continue
		}
		ratio := math.Inf(1)
		if init := p.MaxResInitial[eq]; init > 0 {
			ratio = r / init
		}
		if p.WorstRedux < 0 || ratio > worstRatio {
			worstRatio, p.WorstRedux = ratio, eq
		}
	}
	if worstRatio < p.ReduxTol {
		p.Status = Solved
		return
	}

	if resOnly || p.StallTol <= 0 {
		return
	}
	var maxCor float64
	for eq, c := range p.MaxCor {
		if active(eq) {
			maxCor = math.Max(maxCor, c)
		}
	}
	if maxCor < p.StallTol && p.Status != Solved {
		p.Status = Stalled
	}
}

// coarseCorrection restricts the problem to the next coarser level,
// solves it there and adds the prolongated correction to the state on
// level lev.
func (mg *Multigrid) coarseCorrection(p *MGParams, lev *mgLevel) error {
	n := mg.nspec
	neq := n + 1
	cl := p.Level + 1
	clev := mg.levels[cl]

	Restrict(lev.Res, clev.Rhs, 0, neq)
	if err := mg.restrictState(lev, clev, p.Mode); err != nil {
		return err
	}

	// Coarse right-hand side: restricted residual plus the coarse
	// operator applied to the restricted state.
	if err := mg.evaluate(p, clev, cl, false); err != nil {
		return err
	}
	Relax(clev.S, clev.Res, clev.L, nil, clev.Rhs, RelaxParams{
		ThetaDt: p.ThetaDt,
		Mode:    p.Mode,
		ResOnly: true,
		Mult:    1,
		Skip:    p.Skip,
	}, clev.patches)
	clev.Rhs.CopyComp(0, clev.Res, 0, neq)
	clev.saved.CopyComp(0, clev.S, 0, compositeNComp(n))

	child := p.child()
	for g := 0; g < p.Gamma && child.Status == InProgress; g++ {
		if err := mg.Cycle(&child); err != nil {
			return err
		}
	}

	mg.prolongCorrection(lev, clev, p.Mode)
	if p.Mode == EnthalpyMode {
		return mg.syncTemperature(lev)
	}
	return nil
}

// restrictState averages the fine state onto the coarse level. Species
// mass fractions and enthalpy are averaged weighted by density so that
// the coarse partial densities and ρh are the averages of the fine
// ones. Temperature is intensive and is averaged unweighted.
func (mg *Multigrid) restrictState(fine, coarse *mgLevel, mode DDMode) error {
	n := mg.nspec
	cRho, cH := compRho(n), compH(n)
	w := fine.weighted
	w.CopyComp(0, fine.S, 0, compositeNComp(n))
	scaleDensityWeighted(w, n, fine.patches, false)
	Restrict(w, coarse.S, 0, compositeNComp(n))
	runPatches(coarse.patches, func(_ int, p Patch) {
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				rhoInv := 1 / coarse.S.At(cRho, i, j)
				for k := 0; k < n; k++ {
					coarse.S.Set(k, i, j, coarse.S.At(k, i, j)*rhoInv)
				}
				coarse.S.Set(cH, i, j, coarse.S.At(cH, i, j)*rhoInv)
			}
		}
	})
	if mode == EnthalpyMode {
		return mg.syncTemperature(coarse)
	}
	return nil
}

// prolongCorrection adds the coarse-level change in the solved
// components, density weighted for Y and H, to the fine state.
func (mg *Multigrid) prolongCorrection(fine, coarse *mgLevel, mode DDMode) {
	n := mg.nspec
	cRho, cHeat := compRho(n), heatComp(n, mode)
	corr := coarse.saved
	runPatches(coarse.patches, func(_ int, p Patch) {
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				rho := coarse.S.At(cRho, i, j)
				for k := 0; k < n; k++ {
					corr.Set(k, i, j, rho*(coarse.S.At(k, i, j)-corr.At(k, i, j)))
				}
				dh := coarse.S.At(cHeat, i, j) - corr.At(cHeat, i, j)
				if mode == EnthalpyMode {
					dh *= rho
				}
				corr.Set(cHeat, i, j, dh)
			}
		}
	})
	w := fine.weighted
	w.SetVal(0, 0, n)
	w.SetVal(0, cHeat, 1)
	ProlongAdd(corr, w, 0, n)
	ProlongAdd(corr, w, cHeat, 1)
	runPatches(fine.patches, func(_ int, p Patch) {
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				rhoInv := 1 / fine.S.At(cRho, i, j)
				for k := 0; k < n; k++ {
					fine.S.Add(k, i, j, w.At(k, i, j)*rhoInv)
				}
				if mode == EnthalpyMode {
					fine.S.Add(cHeat, i, j, w.At(cHeat, i, j)*rhoInv)
				} else {
					fine.S.Add(cHeat, i, j, w.At(cHeat, i, j))
				}
			}
		}
	})
}

// syncTemperature recovers the temperature from enthalpy and composition
// in the valid region of lev.
func (mg *Multigrid) syncTemperature(lev *mgLevel) error {
	return syncCompositeTemperature(lev.S, mg.nspec, mg.thermo, lev.patches)
}

// syncCompositeTemperature sets T from H and Y in the valid region of the
// composite field S.
func syncCompositeTemperature(S *Field, n int, th Thermo, patches []Patch) error {
	errs := make([]error, len(patches))
	runPatches(patches, func(ip int, p Patch) {
		Y := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				for k := range Y {
					Y[k] = S.At(k, i, j)
				}
				T, err := th.TFromHY(S.At(compH(n), i, j), Y, S.At(compT(n), i, j))
				if err != nil {
					errs[ip] = fmt.Errorf("%w: cell (%d,%d): %v", ErrThermo, i, j, err)
					return
				}
				S.Set(compT(n), i, j, T)
			}
		}
	})
	return firstError(errs)
}

// syncCompositeEnthalpy sets H from T and Y in the valid region of the
// composite field S.
func syncCompositeEnthalpy(S *Field, n int, th Thermo, patches []Patch) {
	runPatches(patches, func(_ int, p Patch) {
		Y := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				for k := range Y {
					Y[k] = S.At(k, i, j)
				}
				S.Set(compH(n), i, j, th.HFromTY(S.At(compT(n), i, j), Y))
			}
		}
	})
}

// scaleDensityWeighted multiplies (or, if divide is true, divides) the
// mass fractions and enthalpy of the composite field S by density in the
// valid region.
func scaleDensityWeighted(S *Field, n int, patches []Patch, divide bool) {
	cRho, cH := compRho(n), compH(n)
	runPatches(patches, func(_ int, p Patch) {
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				s := S.At(cRho, i, j)
				if divide {
					s = 1 / s
				}
				for k := 0; k < n; k++ {
					S.Set(k, i, j, S.At(k, i, j)*s)
				}
				S.Set(cH, i, j, S.At(cH, i, j)*s)
			}
		}
	})
}

// Restrict sets components comp…comp+n-1 of coarse to the average of the
// corresponding fine cells over the valid region. coarse must be fine
// coarsened by two.
func Restrict(fine, coarse *Field, comp, n int) {
	oneD := fine.Geom.Dim() == 1
	w := 0.25
	if oneD {
		w = 0.5
	}
	for c := comp; c < comp+n; c++ {
		for J := 0; J < coarse.Geom.Ny; J++ {
			for I := 0; I < coarse.Geom.Nx; I++ {
				i := 2 * I
				if oneD {
					coarse.Set(c, I, J, w*(fine.At(c, i, J)+fine.At(c, i+1, J)))
					continue
				}
				j := 2 * J
				coarse.Set(c, I, J, w*(fine.At(c, i, j)+fine.At(c, i+1, j)+
					fine.At(c, i, j+1)+fine.At(c, i+1, j+1)))
			}
		}
	}
}

// ProlongAdd adds the piecewise-constant interpolation of components
// comp…comp+n-1 of coarse to fine over the valid region.
func ProlongAdd(coarse, fine *Field, comp, n int) {
	oneD := fine.Geom.Dim() == 1
	for c := comp; c < comp+n; c++ {
		for j := 0; j < fine.Geom.Ny; j++ {
			jc := j / 2
			if oneD {
				jc = j
			}
			for i := 0; i < fine.Geom.Nx; i++ {
				fine.Add(c, i, j, coarse.At(c, i/2, jc))
			}
		}
	}
}
