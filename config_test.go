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
	"testing"
)

func TestConfigValidate(t *testing.T) {
	if err := testConfig(8, 1).Validate(2); err != nil {
		t.Fatalf("valid configuration: %v", err)
	}
	tests := []struct {
		name  string
		nspec int
		mod   func(c *Config)
	}{
		{name: "no species", nspec: 0, mod: func(c *Config) {}},
		{name: "grid", nspec: 2, mod: func(c *Config) { c.Nx = 0 }},
		{name: "width", nspec: 2, mod: func(c *Config) { c.Dx = 0 }},
		{name: "pressure", nspec: 2, mod: func(c *Config) { c.Pressure = -1 }},
		{name: "sweeps", nspec: 2, mod: func(c *Config) { c.SDC.Sweeps = -1 }},
		{name: "retries", nspec: 2, mod: func(c *Config) { c.TimeStep.StepRetries = -1 }},
		{name: "endless", nspec: 2, mod: func(c *Config) { c.TimeStep.MaxSteps, c.TimeStep.StopTime = -1, 0 }},
		{name: "time step", nspec: 2, mod: func(c *Config) { c.TimeStep.FixedDt, c.TimeStep.CFL = 0, 0 }},
		{name: "typical", nspec: 2, mod: func(c *Config) { c.Typical.Species = []float64{1} }},
		{name: "mode", nspec: 2, mod: func(c *Config) { c.MCDD.Mode = DDMode(7) }},
		{name: "no pre-sweeps", nspec: 2, mod: func(c *Config) { c.MCDD.Nu1 = nil }},
		{name: "negative post-sweeps", nspec: 2, mod: func(c *Config) { c.MCDD.Nu2 = []int{2, -1} }},
		{name: "bottom sweeps", nspec: 2, mod: func(c *Config) { c.MCDD.Nub = -1 }},
		{name: "gamma", nspec: 2, mod: func(c *Config) { c.MCDD.Gamma = 0 }},
		{name: "cycles", nspec: 2, mod: func(c *Config) { c.MCDD.NumCycles = 0 }},
		{name: "levels", nspec: 2, mod: func(c *Config) { c.MCDD.MaxLevels = 0 }},
		{name: "tolerance", nspec: 2, mod: func(c *Config) { c.MCDD.AbsTol = 0 }},
		{name: "relaxation", nspec: 2, mod: func(c *Config) { c.MCDD.TempRelax = 0 }},
		{name: "periodic", nspec: 2, mod: func(c *Config) { c.Periodic[1] = true }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := testConfig(8, 1)
			test.mod(c)
			if err := c.Validate(test.nspec); !errors.Is(err, ErrConfig) {
				t.Errorf("error %v; want a configuration error", err)
			}
		})
	}
}

func TestConfigGeometry(t *testing.T) {
	g := testConfig(8, 1).Geometry()
	if g.Dim() != 1 || g.Dy != 1 {
		t.Errorf("one-dimensional geometry %+v", g)
	}
	c := testConfig(8, 4)
	c.Periodic = [2]bool{true, false}
	m := c.Mesh()
	if m.Lo[0] != Periodic || m.Hi[0] != Periodic || m.Lo[1] == Periodic {
		t.Errorf("mesh boundaries %+v", m)
	}
}
