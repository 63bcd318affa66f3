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

	"github.com/sirupsen/logrus"
)

// InitialCondition returns the species mass fractions, temperature [K]
// and velocity [m/s] at position (x, y) [m].
type InitialCondition func(x, y float64) (Y []float64, T float64, u [2]float64, err error)

// ReactingFlow is a PhysicsModel for a variable-density reacting flow
// advanced with SDC and multicomponent diffusion.
type ReactingFlow struct {
	cfg       *Config
	thermo    Thermo
	transport Transport
	reactor   Reactor
	velocity  VelocityPredictor
	initial   InitialCondition
	log       logrus.FieldLogger

	layout  StateLayout
	geom    Geometry
	mesh    UniformMesh
	patches []Patch

	state *Field
	mcdd  *MCDD
	sdc   *SDC
	last  *StepResult
}

// NewReactingFlow creates a reacting flow model. If kin is nil the flow
// does not react. If v is nil the velocity is interpolated from the cell
// velocities of the state.
func NewReactingFlow(cfg *Config, th Thermo, tr Transport, kin Kinetics, v VelocityPredictor, ic InitialCondition, log logrus.FieldLogger) (*ReactingFlow, error) {
	if err := cfg.Validate(th.NumSpecies()); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	g := cfg.Geometry()
	rf := &ReactingFlow{
		cfg:       cfg,
		thermo:    th,
		transport: tr,
		velocity:  v,
		initial:   ic,
		log:       log,
		layout:    StateLayout{NSpecies: th.NumSpecies(), Dim: g.Dim()},
		geom:      g,
		mesh:      cfg.Mesh(),
		patches:   g.Patches(cfg.PatchSize),
	}
	if kin != nil {
		rf.reactor = &KineticsReactor{Kinetics: kin, Layout: rf.layout, Patches: rf.patches}
	} else {
		rf.reactor = &NullReactor{Layout: rf.layout, Thermo: th, Patches: rf.patches}
	}
	if rf.velocity == nil {
		rf.velocity = AveragedVelocity{Layout: rf.layout, Mesh: rf.mesh}
	}
	return rf, nil
}

// State returns the current state.
func (rf *ReactingFlow) State() *Field { return rf.state }

// SpeciesNames returns the species names in state order.
func (rf *ReactingFlow) SpeciesNames() []string { return rf.thermo.SpeciesNames() }

// Layout returns the component layout of the state.
func (rf *ReactingFlow) Layout() StateLayout { return rf.layout }

// LastStep returns the outcome of the latest step, or nil.
func (rf *ReactingFlow) LastStep() *StepResult { return rf.last }

// SDC returns the time advance controller. It is nil before InitData.
func (rf *ReactingFlow) SDC() *SDC { return rf.sdc }

// InitData implements PhysicsModel. The density of each cell follows
// from the ideal gas law at the configured pressure.
func (rf *ReactingFlow) InitData() (float64, error) {
	n := rf.layout.NSpecies
	s := rf.layout.NewState(rf.geom, 1)
	mw := rf.thermo.MolecularWeights()
	for j := 0; j < rf.geom.Ny; j++ {
		for i := 0; i < rf.geom.Nx; i++ {
			x, y := rf.geom.CellCenter(i, j)
			Y, T, u, err := rf.initial(x, y)
			if err != nil {
				return 0, fmt.Errorf("lmc: initial condition at (%g, %g): %v", x, y, err)
			}
			if len(Y) != n {
				return 0, configErrorf("initial condition has %d species; want %d", len(Y), n)
			}
			if !(T > 0) {
				return 0, configErrorf("initial temperature %g at (%g, %g) must be positive", T, x, y)
			}
			rho := rf.cfg.Pressure * meanMolecularWeight(Y, mw) / (universalGasConstant * T)
			for k, v := range Y {
				s.Set(rf.layout.Spec(k), i, j, rho*v)
			}
			s.Set(Temp, i, j, T)
			for d := 0; d < rf.layout.Dim; d++ {
				s.Set(rf.layout.Vel(d), i, j, u[d])
			}
		}
	}
	SetRhoToSpeciesSum(s, rf.layout, rf.cfg.ClipNegativeRhoY)
	ComputeEnthalpy(s, rf.layout, rf.thermo, rf.patches)
	ComputeRhoRT(s, rf.layout, rf.thermo)

	mode := rf.cfg.MCDD.Mode
	if !rf.cfg.Diffusion.UseMCDD {
		mode = EnthalpyMode
	}
	typical, err := TypicalValues(rf.cfg.Typical, s, rf.layout, mode)
	if err != nil {
		return 0, err
	}
	rf.mcdd, err = NewMCDD(rf.cfg, rf.geom, rf.thermo, rf.transport, rf.mesh, typical, rf.log)
	if err != nil {
		return 0, err
	}
	rf.sdc = NewSDC(rf.cfg, rf.thermo, rf.mcdd, rf.reactor, rf.velocity, rf.mesh, rf.log)
	divu, err := rf.sdc.DivU(s, 0)
	if err != nil {
		return 0, err
	}
	rf.sdc.SetDivU(divu)
	rf.state = s

	umac, err := rf.velocity.EdgeVelocities(s, 0, 0)
	if err != nil {
		return 0, err
	}
	dt, err := EstTimeStep(rf.cfg.TimeStep, s, umac, divu, rf.mcdd.MaxDiffusivity(s))
	if err != nil {
		return 0, err
	}
	rf.log.WithFields(logrus.Fields{
		"species":  rf.thermo.SpeciesNames(),
		"grid":     fmt.Sprintf("%d×%d", rf.geom.Nx, rf.geom.Ny),
		"levels":   rf.mcdd.NumLevels(),
		"typical":  typical,
		"dt":       dt,
		"coupled":  rf.cfg.Diffusion.UseMCDD,
		"heatMode": mode,
	}).Info("initialized reacting flow")
	return dt, nil
}

// Advance implements PhysicsModel.
func (rf *ReactingFlow) Advance(time, dt float64) (float64, error) {
	res, err := rf.sdc.Step(rf.state, dt, time)
	if err != nil {
		return 0, err
	}
	for i, d := range res.Diffusion {
		if d.Status != Solved {
			rf.log.WithFields(logrus.Fields{
				"sweep":  i,
				"cycles": d.Cycles,
				"status": d.Status,
				"maxRes": d.MaxRes,
			}).Warn("diffusion solve did not converge")
		}
	}
	rf.state = res.State
	rf.last = res
	return res.DtEst, nil
}

// PostTimestep implements PhysicsModel.
func (rf *ReactingFlow) PostTimestep(step int, time, dt float64) error {
	if rf.cfg.FloorSpecies {
		FloorSpecies(rf.state, rf.layout)
	}
	stats := TemperatureStats(rf.state, rf.layout, rf.thermo)
	fields := logrus.Fields{
		"step": step,
		"time": time,
		"dt":   dt,
		"Tmin": stats.TMin,
		"Tmax": stats.TMax,
	}
	if len(stats.NegativeSpecies) > 0 {
		fields["negative"] = stats.NegativeSpecies
	}
	rf.log.WithFields(fields).Info("step complete")
	return nil
}

// Totals returns the domain integral of each conserved quantity, per unit
// depth.
func (rf *ReactingFlow) Totals() []float64 {
	o := make([]float64, rf.layout.NEq())
	v := rf.geom.Volume()
	for eq := range o {
		o[eq] = rf.state.Sum(rf.layout.EqComp(eq)) * v
	}
	return o
}
