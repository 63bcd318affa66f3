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
	"errors"
	"fmt"
	"math"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

// MCDD solves the implicit multicomponent differential diffusion system
//
//	ρY_k - θΔt·L_k(Y, T) = R_k
//	ρh   - θΔt·L_h(Y, T) = R_h
//
// for all species and enthalpy at once, with the nonlinear multigrid
// solver, or with the split update if the coupled solve is disabled.
type MCDD struct {
	cfg     *Config
	layout  StateLayout
	thermo  Thermo
	op      *DDOp
	mg      *Multigrid
	log     logrus.FieldLogger
	geom    Geometry
	patches []Patch

	work *Field // composite scratch for explicit evaluations
}

// DiffusionResult is the outcome of a diffusion update.
type DiffusionResult struct {
	Status Status
	Cycles int

	// MaxRes is the normalized maximum residual of each equation at the
	// end of the solve.
	MaxRes []float64

	// D holds -∇·F for each conserved equation at the new state and DOld
	// the same at the old state. DOld is only set by Update.
	D, DOld *Field

	// Fluxes holds the corrected face fluxes at the old (Update only) and
	// new states.
	Fluxes Fluxes
}

// Terms holds explicit diffusion terms of a state.
type Terms struct {
	// D holds -∇·F for every conserved equation.
	D *Field

	// DT holds the temperature diffusion term ∇·λ∇T - Σ c_p,k F_k·∇T.
	DT *Field

	Flux FluxField
}

// NewMCDD creates a diffusion solver for geometry g. typical holds the
// reference magnitude of each equation, in the units of the unknown
// selected by cfg.MCDD.Mode.
func NewMCDD(cfg *Config, g Geometry, th Thermo, tr Transport, mesh Mesh, typical []float64, log logrus.FieldLogger) (*MCDD, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := th.NumSpecies()
	maxLevels := cfg.MCDD.MaxLevels
	if !cfg.Diffusion.UseMCDD {
		maxLevels = 1
	}
	op := NewDDOp(g, maxLevels, cfg.PatchSize, n, th, tr, mesh)
	mg, err := NewMultigrid(op, th, typical, log)
	if err != nil {
		return nil, err
	}
	return &MCDD{
		cfg:     cfg,
		layout:  StateLayout{NSpecies: n, Dim: g.Dim()},
		thermo:  th,
		op:      op,
		mg:      mg,
		log:     log,
		geom:    g,
		patches: op.Patches(0),
		work:    NewField(g, compositeNComp(n), 1),
	}, nil
}

// NumLevels returns the number of multigrid levels in use.
func (m *MCDD) NumLevels() int { return m.mg.NumLevels() }

// DiffusionTerms evaluates the explicit diffusion terms of state. The
// transport coefficients are recomputed from state.
func (m *MCDD) DiffusionTerms(state *Field, time float64) (*Terms, error) {
	n := m.layout.NSpecies
	m.load(m.work, state, nil)
	if err := m.op.UpdateCoefficients(m.work, time); err != nil {
		return nil, err
	}
	t := &Terms{
		D:    NewField(m.geom, n+1, 0),
		DT:   NewField(m.geom, 1, 0),
		Flux: NewFluxField(m.geom, n+1),
	}
	if err := m.op.Apply(t.D, m.work, ApplyOptions{Mode: EnthalpyMode, Time: time, Flux: t.Flux}); err != nil {
		return nil, err
	}
	// ∇·λ∇T - Σ c_p,k F_k·∇T = -∇·q + Σ h_k ∇·F_k
	runPatches(m.patches, func(_ int, p Patch) {
		h := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				m.thermo.SpeciesEnthalpies(m.work.At(compT(n), i, j), h)
				dt := t.D.At(n, i, j)
				for k, hk := range h {
					dt += hk * t.D.At(k, i, j)
				}
				t.DT.Set(0, i, j, dt)
			}
		}
	})
	return t, nil
}

// Update advances diffusion over dt from the state old. base holds the
// conserved quantities with every other process already applied, so that
// the result satisfies
//
//	U = base + Δt·((1-θ)·D(old) + θ·D(U)).
//
// state holds the initial guess and receives the result.
func (m *MCDD) Update(old, state, base *Field, theta, dt, time float64) (*DiffusionResult, error) {
	told, err := m.DiffusionTerms(old, time)
	if err != nil {
		return nil, err
	}
	neq := m.layout.NEq()
	rhs := NewField(m.geom, neq, 0)
	w := (1 - theta) * dt
	for eq := 0; eq < neq; eq++ {
		for j := 0; j < m.geom.Ny; j++ {
			for i := 0; i < m.geom.Nx; i++ {
				rhs.Set(eq, i, j, base.At(eq, i, j)+w*told.D.At(eq, i, j))
			}
		}
	}
	res, err := m.Solve(state, rhs, theta, dt, time+dt)
	if err != nil {
		return nil, err
	}
	res.DOld = told.D
	res.Fluxes.Old = told.Flux
	return res, nil
}

// Solve finds the state U with U - θΔt·D(U) = rhs, where rhs holds the
// conserved quantities. state holds the initial guess and receives the
// result. Failure to converge is reported in the result status, not as an
// error.
func (m *MCDD) Solve(state, rhs *Field, theta, dt, time float64) (*DiffusionResult, error) {
	if rhs.NComp != m.layout.NEq() {
		return nil, configErrorf("diffusion right-hand side has %d components; want %d", rhs.NComp, m.layout.NEq())
	}
	if !m.cfg.Diffusion.UseMCDD {
		return m.SplitUpdate(state, rhs, theta, dt, time)
	}
	if theta == 0 {
		return m.explicit(state, rhs, time)
	}
	n := m.layout.NSpecies
	mode := m.cfg.MCDD.Mode
	S := m.mg.State()
	m.load(S, state, rhs)
	if err := m.loadRhs(S, rhs, mode); err != nil {
		return nil, err
	}
	if err := m.op.UpdateCoefficients(S, time); err != nil {
		return nil, err
	}
	if mode == TempMode {
		m.setRhoCpInv(S)
	}
	p := m.params(theta, dt, time, mode, nil)
	p.NumCoarser = m.mg.NumLevels() - 1
	cycles, err := m.iterate(&p, time)
	if err != nil {
		return nil, err
	}
	m.report(&p, cycles)
	if mode == TempMode {
		syncCompositeEnthalpy(S, n, m.thermo, m.patches)
	}
	res, err := m.store(state, rhs, S, theta, dt, time)
	if err != nil {
		return nil, err
	}
	res.Status, res.Cycles, res.MaxRes = p.Status, cycles, p.MaxRes
	return res, nil
}

// explicit sets state to rhs and evaluates the diffusion terms there.
func (m *MCDD) explicit(state, rhs *Field, time float64) (*DiffusionResult, error) {
	for eq := 0; eq < m.layout.NEq(); eq++ {
		for j := 0; j < m.geom.Ny; j++ {
			for i := 0; i < m.geom.Nx; i++ {
				state.Set(m.layout.EqComp(eq), i, j, rhs.At(eq, i, j))
			}
		}
	}
	SetRhoToSpeciesSum(state, m.layout, false)
	if err := ComputeTemperature(state, m.layout, m.thermo, m.patches); err != nil {
		return nil, err
	}
	t, err := m.DiffusionTerms(state, time)
	if err != nil {
		return nil, err
	}
	return &DiffusionResult{Status: Solved, D: t.D, Fluxes: Fluxes{New: t.Flux}}, nil
}

// params returns the multigrid parameters for a finest-level solve.
func (m *MCDD) params(theta, dt, time float64, mode DDMode, skip []bool) MGParams {
	c := m.cfg.MCDD
	n := m.layout.NSpecies
	factor := make([]float64, n+1)
	for k := 0; k < n; k++ {
		factor[k] = c.SpeciesRelax
	}
	factor[n] = c.TempRelax
	return MGParams{
		Nu1:      c.Nu1,
		Nu2:      c.Nu2,
		Nub:      c.Nub,
		Gamma:    c.Gamma,
		AbsTol:   c.AbsTol,
		ReduxTol: c.ReduxTol,
		StallTol: c.StallTol,
		ThetaDt:  theta * dt,
		Mode:     mode,
		Factor:   factor,
		Skip:     skip,
		Time:     time,
	}
}

// iterate runs multigrid cycles until the solve leaves InProgress or the
// cycle budget is spent. Coefficients are updated between cycles, never
// during one. If a cycle diverges, the finest-level iterate is reset to
// the one with the smallest residual seen at a cycle boundary and the
// solve ends Stalled.
func (m *MCDD) iterate(p *MGParams, time float64) (int, error) {
	n := m.layout.NSpecies
	S := m.mg.State()
	m.mg.Checkpoint()
	var bestRes []float64
	best := math.Inf(1)
	cycles := 0
	for p.Status == InProgress && cycles < m.cfg.MCDD.NumCycles {
		if cycles > 0 {
			if p.Mode == TempMode {
				syncCompositeEnthalpy(S, n, m.thermo, m.patches)
			}
			if err := m.op.UpdateCoefficients(S, time); err != nil {
				return cycles, err
			}
			if p.Mode == TempMode {
				m.setRhoCpInv(S)
			}
		}
		p.Iter = cycles
		err := m.mg.Cycle(p)
		if err != nil && !errors.Is(err, ErrThermo) {
			return cycles, err
		}
		cycles++
		if bestRes == nil && p.MaxResInitial != nil {
			bestRes = append([]float64{}, p.MaxResInitial...)
			best = worstResidual(bestRes, p.Skip)
		}
		if err != nil || p.diverged() {
			m.mg.Restore()
			p.Status = Stalled
			p.MaxRes = bestRes
			m.log.WithFields(logrus.Fields{
				"cycle": cycles,
				"error": err,
			}).Warn("mcdd: iteration diverged; keeping the best iterate")
			break
		}
		if r := worstResidual(p.MaxRes, p.Skip); r < best {
			best, bestRes = r, append([]float64{}, p.MaxRes...)
			m.mg.Checkpoint()
		}
		if m.cfg.MCDD.Verbose > 0 {
			m.log.WithFields(logrus.Fields{
				"cycle":  cycles,
				"maxRes": p.MaxRes[p.WorstAbs],
				"eq":     p.WorstAbs,
				"status": p.Status,
			}).Info("mcdd cycle")
		}
	}
	return cycles, nil
}

// worstResidual returns the largest residual of the active equations.
func worstResidual(maxRes []float64, skip []bool) float64 {
	var o float64
	for eq, r := range maxRes {
		if skip == nil || !skip[eq] {
			o = math.Max(o, r)
		}
	}
	return o
}

// report logs the outcome of a solve that did not converge.
func (m *MCDD) report(p *MGParams, cycles int) {
	fields := logrus.Fields{
		"cycles":   cycles,
		"worstAbs": p.WorstAbs,
		"maxRes":   p.MaxRes,
	}
	switch p.Status {
	case Stalled:
		m.log.WithFields(fields).Warn("mcdd: solve stalled")
	case InProgress:
		fields["worstRedux"] = p.WorstRedux
		m.log.WithFields(fields).Warn("mcdd: cycle budget exhausted before convergence")
		m.log.Debug(spew.Sdump(p))
	}
}

// load fills the valid region of the composite field S from state. The
// density is the species sum of rhs if rhs is not nil, since the corrected
// fluxes leave it unchanged by the solve, and the state density otherwise.
func (m *MCDD) load(S, state, rhs *Field) {
	n := m.layout.NSpecies
	runPatches(m.patches, func(_ int, p Patch) {
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				rhoState := state.At(Density, i, j)
				rho := rhoState
				if rhs != nil {
					rho = 0
					for k := 0; k < n; k++ {
						rho += rhs.At(k, i, j)
					}
				}
				for k := 0; k < n; k++ {
					S.Set(k, i, j, state.At(m.layout.Spec(k), i, j)/rhoState)
				}
				S.Set(compT(n), i, j, state.At(Temp, i, j))
				S.Set(compH(n), i, j, state.At(RhoH, i, j)/rhoState)
				S.Set(compRho(n), i, j, rho)
			}
		}
	})
}

// loadRhs copies rhs into the multigrid right-hand side. In TempMode the
// heat row is the temperature of the right-hand-side state.
func (m *MCDD) loadRhs(S, rhs *Field, mode DDMode) error {
	n := m.layout.NSpecies
	R := m.mg.Rhs()
	errs := make([]error, len(m.patches))
	runPatches(m.patches, func(ip int, p Patch) {
		Y := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				for eq := 0; eq <= n; eq++ {
					R.Set(eq, i, j, rhs.At(eq, i, j))
				}
				if mode != TempMode {
					continue
				}
				rhoInv := 1 / S.At(compRho(n), i, j)
				for k := range Y {
					Y[k] = rhs.At(k, i, j) * rhoInv
				}
				T, err := m.thermo.TFromHY(rhs.At(n, i, j)*rhoInv, Y, S.At(compT(n), i, j))
				if err != nil {
					errs[ip] = fmt.Errorf("%w: right-hand side in cell (%d,%d): %v", ErrThermo, i, j, err)
					return
				}
				R.Set(n, i, j, T)
			}
		}
	})
	return firstError(errs)
}

// setRhoCpInv sets 1/(ρ c_p) on every level from the finest-level S.
func (m *MCDD) setRhoCpInv(S *Field) {
	n := m.layout.NSpecies
	f := m.mg.RhoCpInv()
	runPatches(m.patches, func(_ int, p Patch) {
		Y := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				for k := range Y {
					Y[k] = S.At(k, i, j)
				}
				cp := m.thermo.CpMix(S.At(compT(n), i, j), Y)
				f.Set(0, i, j, 1/(S.At(compRho(n), i, j)*cp))
			}
		}
	})
	m.mg.AverageDownRhoCpInv()
}

// store evaluates the corrected fluxes at the iterate S and writes the
// conservative update rhs + θΔt·D(S) into state, so that species mass
// and enthalpy are conserved to rounding whatever the solver residual.
func (m *MCDD) store(state, rhs, S *Field, theta, dt, time float64) (*DiffusionResult, error) {
	n := m.layout.NSpecies
	if err := m.op.UpdateCoefficients(S, time); err != nil {
		return nil, err
	}
	D := NewField(m.geom, n+1, 0)
	flux := NewFluxField(m.geom, n+1)
	if err := m.op.Apply(D, S, ApplyOptions{Mode: EnthalpyMode, Time: time, Flux: flux}); err != nil {
		return nil, err
	}
	w := theta * dt
	runPatches(m.patches, func(_ int, p Patch) {
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				var rho float64
				for eq := 0; eq <= n; eq++ {
					v := rhs.At(eq, i, j) + w*D.At(eq, i, j)
					state.Set(m.layout.EqComp(eq), i, j, v)
					if eq < n {
						rho += v
					}
				}
				state.Set(Density, i, j, rho)
				state.Set(Temp, i, j, S.At(compT(n), i, j))
			}
		}
	})
	if err := ComputeTemperature(state, m.layout, m.thermo, m.patches); err != nil {
		return nil, err
	}
	return &DiffusionResult{Status: Solved, D: D, Fluxes: Fluxes{New: flux}}, nil
}
