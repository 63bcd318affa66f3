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
	"math"
	"testing"

	"github.com/pinebai/lmc/science/mix/idealgas"
	"github.com/sirupsen/logrus"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// testMixture is a light and a heavy species with different Lewis
// numbers, so that differential diffusion matters.
func testMixture(t testing.TB) *idealgas.Mixture {
	m := &idealgas.Mixture{
		Species: []idealgas.Species{
			{Name: "H2", MolecularWeight: 2, CpA: 14000, CpB: 0.5, H0: 0, Lewis: 0.3},
			{Name: "N2", MolecularWeight: 28, CpA: 1000, CpB: 0.2, H0: 1.e5, Lewis: 1},
		},
		Lambda0: 0.05,
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	return m
}

// testConfig returns a configuration for an nx × ny grid of 0.1 mm cells.
func testConfig(nx, ny int) *Config {
	c := DefaultConfig()
	c.Nx, c.Ny = nx, ny
	c.Dx = 1.e-4
	if ny > 1 {
		c.Dy = 1.e-4
	}
	c.MCDD.NumCycles = 50
	c.TimeStep.FixedDt = 1.e-4
	return c
}

// stepProfile is hydrogen rich and hot in the left half of the domain.
func stepProfile(lx float64) InitialCondition {
	return func(x, y float64) ([]float64, float64, [2]float64, error) {
		if x < lx/2 {
			return []float64{0.2, 0.8}, 600, [2]float64{}, nil
		}
		return []float64{0.02, 0.98}, 300, [2]float64{}, nil
	}
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Level = logrus.WarnLevel
	return l
}

// newTestFlow returns an initialized non-reacting flow with the step
// profile.
func newTestFlow(t testing.TB, cfg *Config) *ReactingFlow {
	th := testMixture(t)
	rf, err := NewReactingFlow(cfg, th, th, nil, nil, stepProfile(float64(cfg.Nx)*cfg.Dx), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rf.InitData(); err != nil {
		t.Fatal(err)
	}
	return rf
}

// totals returns the domain sum of each conserved quantity of s.
func totals(s *Field, l StateLayout) []float64 {
	o := make([]float64, l.NEq())
	for eq := range o {
		o[eq] = s.Sum(l.EqComp(eq))
	}
	return o
}

func checkConserved(t *testing.T, before, after []float64, tol float64) {
	t.Helper()
	for eq := range before {
		if different(before[eq], after[eq], tol) {
			t.Errorf("equation %d: total changed from %g to %g", eq, before[eq], after[eq])
		}
	}
}
