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
	"github.com/sirupsen/logrus"
)

// SDC advances a reacting flow state over one time step. Advection is
// explicit; a semi-implicit (θ = ½) diffusion predictor is followed by a
// stiff reaction integration, and then by a fixed number of deferred
// correction sweeps, each a backward-Euler diffusion solve followed by a
// reaction integration, that reduce the splitting error.
type SDC struct {
	cfg      *Config
	layout   StateLayout
	thermo   Thermo
	mcdd     *MCDD
	reactor  Reactor
	velocity VelocityPredictor
	mesh     Mesh
	register *FluxRegister
	log      logrus.FieldLogger
	patches  []Patch

	// rate is the reaction rate of the latest step, one component per
	// conserved equation.
	rate *Field

	// divu is the divergence constraint of the latest state.
	divu *Field
}

// StepResult is the outcome of an SDC step.
type StepResult struct {
	State *Field

	// Divu is the divergence constraint of the new state and DsDt its
	// rate of change over the step. DsDt is nil after the first step.
	Divu, DsDt *Field

	// DtEst is the estimated stable time step for the next step.
	DtEst float64

	// Diffusion holds the outcome of the predictor diffusion update
	// followed by that of each corrector sweep.
	Diffusion []*DiffusionResult
}

// NewSDC creates an SDC controller.
func NewSDC(cfg *Config, th Thermo, mcdd *MCDD, r Reactor, v VelocityPredictor, mesh Mesh, log logrus.FieldLogger) *SDC {
	if log == nil {
		log = logrus.StandardLogger()
	}
	g := mcdd.geom
	l := StateLayout{NSpecies: th.NumSpecies(), Dim: g.Dim()}
	return &SDC{
		cfg:      cfg,
		layout:   l,
		thermo:   th,
		mcdd:     mcdd,
		reactor:  r,
		velocity: v,
		mesh:     mesh,
		register: NewFluxRegister(g, l.NEq()),
		log:      log,
		patches:  mcdd.patches,
	}
}

// FluxRegister returns the register of the time-integrated advective and
// diffusive fluxes of the latest step.
func (s *SDC) FluxRegister() *FluxRegister { return s.register }

// Rate returns the reaction rate of the latest step, or nil before the
// first step.
func (s *SDC) Rate() *Field { return s.rate }

// SetDivU sets the divergence constraint of the current state, so that
// the first step can compute its rate of change.
func (s *SDC) SetDivU(divu *Field) { s.divu = divu }

// Step advances old from time over dt.
func (s *SDC) Step(old *Field, dt, time float64) (*StepResult, error) {
	s.register.Reset()
	umac, err := s.velocity.EdgeVelocities(old, time, dt)
	if err != nil {
		return nil, err
	}
	A, advFlux, err := AdvectionTerms(old, umac, s.layout, s.mesh, time)
	if err != nil {
		return nil, err
	}
	R := s.rate
	if R == nil {
		R = s.instantaneousRate(old)
	}
	U0 := s.conserved(old)

	// Predictor.
	base := U0.Copy()
	base.AddScaled(dt, A)
	base.AddScaled(dt, R)
	state := old.Copy()
	pred, err := s.mcdd.Update(old, state, base, 0.5, dt, time)
	if err != nil {
		return nil, err
	}
	Dn, Fn := pred.DOld, pred.Fluxes.At(OldTime)
	forcing := A.Copy()
	forcing.AddScaled(0.5, Dn)
	forcing.AddScaled(0.5, pred.D)
	state, R, err = s.reactor.AdvanceReaction(old, forcing, dt)
	if err != nil {
		return nil, err
	}
	result := &StepResult{Diffusion: []*DiffusionResult{pred}}
	if s.cfg.SDC.Sweeps == 0 {
		flux := advFlux.Copy()
		flux.AddScaled(1, pred.Fluxes.TimeCentered(0.5))
		s.register.Increment(flux, dt)
	}

	// Corrector sweeps.
	for k := 0; k < s.cfg.SDC.Sweeps; k++ {
		tk, err := s.mcdd.DiffusionTerms(state, time+dt)
		if err != nil {
			return nil, err
		}
		defect := Dn.Copy()
		defect.AddScaled(-1, tk.D)
		defect.Scale(0.5)

		rhs := U0.Copy()
		rhs.AddScaled(dt, A)
		rhs.AddScaled(dt, R)
		rhs.AddScaled(dt, defect)
		guess := state.Copy()
		corr, err := s.mcdd.Solve(guess, rhs, 1, dt, time+dt)
		if err != nil {
			return nil, err
		}
		result.Diffusion = append(result.Diffusion, corr)

		forcing = A.Copy()
		forcing.AddScaled(1, defect)
		forcing.AddScaled(1, corr.D)
		state, R, err = s.reactor.AdvanceReaction(old, forcing, dt)
		if err != nil {
			return nil, err
		}
		if k == s.cfg.SDC.Sweeps-1 {
			flux := advFlux.Copy()
			flux.AddScaled(0.5, Fn)
			flux.AddScaled(-0.5, tk.Flux)
			flux.AddScaled(1, corr.Fluxes.At(NewTime))
			s.register.Increment(flux, dt)
		}
		s.log.WithFields(logrus.Fields{
			"sweep":  k,
			"status": corr.Status,
			"cycles": corr.Cycles,
		}).Debug("sdc corrector sweep")
	}
	if err := s.finish(state, time+dt, dt, result); err != nil {
		return nil, err
	}
	s.rate = R
	s.divu = result.Divu
	return result, nil
}

// finish updates the derived quantities of the new state and estimates
// the next time step. The controller itself is left unchanged, so that a
// failed step can be retried.
func (s *SDC) finish(state *Field, time, dt float64, result *StepResult) error {
	SetRhoToSpeciesSum(state, s.layout, s.cfg.ClipNegativeRhoY)
	if err := ComputeTemperature(state, s.layout, s.thermo, s.patches); err != nil {
		return err
	}
	ComputeRhoRT(state, s.layout, s.thermo)
	divu, err := s.DivU(state, time)
	if err != nil {
		return err
	}
	if s.divu != nil {
		result.DsDt = CalcDsDt(s.divu, divu, dt)
	}
	result.State, result.Divu = state, divu

	umac, err := s.velocity.EdgeVelocities(state, time, dt)
	if err != nil {
		return err
	}
	result.DtEst, err = EstTimeStep(s.cfg.TimeStep, state, umac, divu, s.mcdd.MaxDiffusivity(state))
	return err
}

// DivU returns the divergence constraint of state, evaluated with the
// instantaneous production rates.
func (s *SDC) DivU(state *Field, time float64) (*Field, error) {
	terms, err := s.mcdd.DiffusionTerms(state, time)
	if err != nil {
		return nil, err
	}
	wdot := NewField(state.Geom, s.layout.NSpecies, 0)
	s.reactor.ProductionRates(state, wdot)
	return CalcDivU(state, terms, wdot, s.layout, s.thermo), nil
}

// instantaneousRate returns the production rates of state in the
// conserved layout, for use before any reaction rate has been stored.
func (s *SDC) instantaneousRate(state *Field) *Field {
	n := s.layout.NSpecies
	wdot := NewField(state.Geom, n, 0)
	s.reactor.ProductionRates(state, wdot)
	R := NewField(state.Geom, s.layout.NEq(), 0)
	R.CopyComp(0, wdot, 0, n)
	return R
}

// conserved returns the conserved quantities of state over the valid
// region.
func (s *SDC) conserved(state *Field) *Field {
	g := state.Geom
	U := NewField(g, s.layout.NEq(), 0)
	for eq := 0; eq < s.layout.NEq(); eq++ {
		c := s.layout.EqComp(eq)
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				U.Set(eq, i, j, state.At(c, i, j))
			}
		}
	}
	return U
}
