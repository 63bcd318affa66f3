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

// Version is the version of this software.
const Version = "0.1.0"

// Config holds the parameters of a reacting flow simulation. It is
// filled once at startup, checked by Validate and not changed afterwards.
type Config struct {
	// Nx and Ny are the number of cells in each direction. Ny == 1
	// gives a one-dimensional problem.
	Nx, Ny int

	// Dx and Dy are the cell widths [m].
	Dx, Dy float64

	// Periodic selects periodic boundaries in each direction. Other
	// boundaries are zero-gradient.
	Periodic [2]bool

	// Pressure is the thermodynamic pressure [Pa] used to set the initial
	// density from temperature and composition.
	Pressure float64

	// PatchSize is the largest number of cells per direction in a patch.
	// Patches are processed concurrently.
	PatchSize int

	SDC       SDCConfig
	Diffusion DiffusionConfig
	MCDD      MCDDConfig
	TimeStep  TimeStepConfig
	Typical   TypicalConfig

	// ClipNegativeRhoY sets negative species partial densities to zero
	// before the density is recomputed from their sum.
	ClipNegativeRhoY bool

	// FloorSpecies sets negative species partial densities to zero after
	// every step.
	FloorSpecies bool
}

// SDCConfig configures the deferred correction time advance.
type SDCConfig struct {
	// Sweeps is the number of corrector sweeps after the predictor.
	Sweeps int
}

// DiffusionConfig selects the diffusion update.
type DiffusionConfig struct {
	// UseMCDD selects the coupled multigrid solve. Otherwise species and
	// enthalpy are solved one after the other on a single level.
	UseMCDD bool

	// ImplicitEnthalpy solves the enthalpy implicitly in the split
	// update; otherwise it is updated explicitly.
	ImplicitEnthalpy bool
}

// MCDDConfig configures the multigrid diffusion solver.
type MCDDConfig struct {
	Mode DDMode

	// Nu1 and Nu2 are the relaxation sweeps before and after the coarse
	// solve on each level, finest first. The last entry applies to every
	// deeper level.
	Nu1, Nu2 []int

	Nub   int // sweeps on the coarsest level; 0 uses Nu1 and Nu2
	Gamma int // coarse cycles per visit

	NumCycles int // V-cycles per solve
	MaxLevels int

	AbsTol, ReduxTol, StallTol float64

	// SpeciesRelax and TempRelax are the relaxation factors of the
	// species and heat equations.
	SpeciesRelax, TempRelax float64

	// Verbose > 0 logs a summary of every cycle.
	Verbose int
}

// TimeStepConfig configures time step selection and the run length.
type TimeStepConfig struct {
	CFL float64

	// FixedDt, if positive, is used for every step.
	FixedDt float64

	// MaxDt, if positive, bounds every step.
	MaxDt float64

	// InitShrink scales the first estimated step.
	InitShrink float64

	// ChangeMax bounds the growth of the step from one step to the next.
	ChangeMax float64

	// DivuCeiling limits the step so that the divergence constraint
	// cannot drive the density below MinRhoDivuCeiling.
	DivuCeiling       bool
	DivuDtFactor      float64
	MinRhoDivuCeiling float64

	StopTime float64
	MaxSteps int

	// StepRetries is the number of times a failed step is retried with
	// half the time step. Zero disables retries.
	StepRetries int
}

// TypicalConfig holds the reference magnitudes used to normalize
// residuals. Values that are not positive are computed from the initial
// state.
type TypicalConfig struct {
	Density float64 // [kg/m³]
	RhoH    float64 // [J/m³]
	Temp    float64 // [K]

	// Species holds one mass fraction per species, or nil.
	Species []float64
}

// DefaultConfig returns a configuration with the default solver
// parameters and no grid.
func DefaultConfig() *Config {
	return &Config{
		Pressure:  101325,
		PatchSize: 32,
		SDC:       SDCConfig{Sweeps: 1},
		Diffusion: DiffusionConfig{UseMCDD: true, ImplicitEnthalpy: true},
		MCDD: MCDDConfig{
			Mode:         EnthalpyMode,
			Nu1:          []int{4},
			Nu2:          []int{4},
			Nub:          50,
			Gamma:        1,
			NumCycles:    10,
			MaxLevels:    20,
			AbsTol:       1.e-8,
			ReduxTol:     1.e-6,
			StallTol:     1.e-20,
			SpeciesRelax: 1,
			TempRelax:    1,
		},
		TimeStep: TimeStepConfig{
			CFL:          0.5,
			InitShrink:   1,
			ChangeMax:    1.1,
			DivuDtFactor: 0.5,
			MaxSteps:     10,
		},
	}
}

// Geometry returns the grid described by the configuration.
func (c *Config) Geometry() Geometry {
	g := Geometry{Nx: c.Nx, Ny: c.Ny, Dx: c.Dx, Dy: c.Dy}
	if g.Ny == 1 && g.Dy == 0 {
		g.Dy = 1
	}
	return g
}

// Mesh returns the boundary conditions described by the configuration.
func (c *Config) Mesh() UniformMesh {
	var m UniformMesh
	for d, p := range c.Periodic {
		if p {
			m.Lo[d], m.Hi[d] = Periodic, Periodic
		}
	}
	return m
}

// Validate checks the configuration for a problem with nspec species.
func (c *Config) Validate(nspec int) error {
	switch {
	case nspec < 1:
		return configErrorf("there must be at least one species")
	case c.Nx < 1 || c.Ny < 1:
		return configErrorf("grid size %d×%d must be positive", c.Nx, c.Ny)
	case c.Dx <= 0 || (c.Ny > 1 && c.Dy <= 0):
		return configErrorf("cell widths (%g, %g) must be positive", c.Dx, c.Dy)
	case c.Pressure <= 0:
		return configErrorf("pressure %g must be positive", c.Pressure)
	case c.SDC.Sweeps < 0:
		return configErrorf("SDC sweeps %d must not be negative", c.SDC.Sweeps)
	case c.TimeStep.StepRetries < 0:
		return configErrorf("step retries %d must not be negative", c.TimeStep.StepRetries)
	case c.TimeStep.MaxSteps < 0 && c.TimeStep.StopTime <= 0:
		return configErrorf("either a step limit or a stop time is required")
	case c.TimeStep.FixedDt <= 0 && c.TimeStep.CFL <= 0:
		return configErrorf("either a fixed time step or a positive CFL number is required")
	case c.Typical.Species != nil && len(c.Typical.Species) != nspec:
		return configErrorf("%d typical species values for %d species", len(c.Typical.Species), nspec)
	}
	m := c.MCDD
	switch {
	case m.Mode != TempMode && m.Mode != EnthalpyMode:
		return configErrorf("invalid diffusion mode %v", m.Mode)
	case len(m.Nu1) == 0 || len(m.Nu2) == 0:
		return configErrorf("at least one pre- and one post-relaxation count is required")
	case m.Nub < 0:
		return configErrorf("bottom relaxation count %d must not be negative", m.Nub)
	case m.Gamma < 1:
		return configErrorf("coarse cycle count %d must be at least 1", m.Gamma)
	case m.NumCycles < 1:
		return configErrorf("multigrid cycle count %d must be at least 1", m.NumCycles)
	case m.MaxLevels < 1:
		return configErrorf("multigrid level count %d must be at least 1", m.MaxLevels)
	case m.AbsTol <= 0 || m.ReduxTol <= 0:
		return configErrorf("tolerances (%g, %g) must be positive", m.AbsTol, m.ReduxTol)
	case m.SpeciesRelax <= 0 || m.TempRelax <= 0:
		return configErrorf("relaxation factors (%g, %g) must be positive", m.SpeciesRelax, m.TempRelax)
	}
	for l, nu := range m.Nu1 {
		if nu < 0 {
			return configErrorf("pre-relaxation count %d on level %d must not be negative", nu, l)
		}
	}
	for l, nu := range m.Nu2 {
		if nu < 0 {
			return configErrorf("post-relaxation count %d on level %d must not be negative", nu, l)
		}
	}
	if c.Periodic[1] && c.Ny == 1 {
		return configErrorf("a one-dimensional grid cannot be periodic in y")
	}
	return nil
}
