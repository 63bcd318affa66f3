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

package idealgas

import (
	"math"
	"testing"
)

func testMixture(t *testing.T) *Mixture {
	m := &Mixture{
		Species: []Species{
			{Name: "F", MolecularWeight: 16, CpA: 2200, CpB: 0.5, Lewis: 0.9},
			{Name: "P", MolecularWeight: 16, CpA: 1200, CpB: 0.3, H0: -2.e6, Lewis: 1.2},
			{Name: "N2", MolecularWeight: 28, CpA: 1000, CpB: 0.2, Lewis: 1},
		},
		Lambda0: 0.026,
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestValidateDefaults(t *testing.T) {
	m := testMixture(t)
	if m.TRef != 298.15 || m.T0 != m.TRef || m.TMin != 100 || m.TMax != 6000 {
		t.Errorf("defaults not set: %+v", m)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		m    Mixture
	}{
		{name: "empty", m: Mixture{Lambda0: 1}},
		{name: "conductivity", m: Mixture{Species: []Species{{Name: "A", MolecularWeight: 1, CpA: 1, Lewis: 1}}}},
		{name: "duplicate", m: Mixture{Lambda0: 1, Species: []Species{
			{Name: "A", MolecularWeight: 1, CpA: 1, Lewis: 1},
			{Name: "A", MolecularWeight: 1, CpA: 1, Lewis: 1},
		}}},
		{name: "molecular weight", m: Mixture{Lambda0: 1, Species: []Species{{Name: "A", CpA: 1, Lewis: 1}}}},
		{name: "lewis", m: Mixture{Lambda0: 1, Species: []Species{{Name: "A", MolecularWeight: 1, CpA: 1}}}},
		{name: "cp", m: Mixture{Lambda0: 1, Species: []Species{{Name: "A", MolecularWeight: 1, CpA: 1, CpB: -1, Lewis: 1}}}},
		{name: "range", m: Mixture{Lambda0: 1, TMin: 500, TMax: 400, Species: []Species{{Name: "A", MolecularWeight: 1, CpA: 1, Lewis: 1}}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := test.m.Validate(); err == nil {
				t.Error("invalid mixture accepted")
			}
		})
	}
}

func TestTFromHY(t *testing.T) {
	m := testMixture(t)
	Y := []float64{0.05, 0.1, 0.85}
	for _, T := range []float64{150, 300, 1234.5, 2500, 5000} {
		H := m.HFromTY(T, Y)
		got, err := m.TFromHY(H, Y, 1000)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-T) > 1.e-8*T {
			t.Errorf("T = %g; want %g", got, T)
		}
	}
}

func TestTFromHYOutOfRange(t *testing.T) {
	m := testMixture(t)
	Y := []float64{0, 0, 1}
	for _, H := range []float64{m.HFromTY(7000, Y), m.HFromTY(50, Y), math.NaN()} {
		if _, err := m.TFromHY(H, Y, 300); err == nil {
			t.Errorf("h = %g: no error", H)
		}
	}
}

func TestCoefficients(t *testing.T) {
	m := testMixture(t)
	Y := []float64{0.2, 0.3, 0.5}
	rhoD := make([]float64, 3)
	lambda := m.Coefficients(m.T0, 1, Y, rhoD)
	if lambda != m.Lambda0 {
		t.Errorf("conductivity at the reference temperature is %g; want %g", lambda, m.Lambda0)
	}
	cp := m.CpMix(m.T0, Y)
	for i, s := range m.Species {
		if want := lambda / (cp * s.Lewis); math.Abs(rhoD[i]-want) > 1.e-14*want {
			t.Errorf("%s: ρD = %g; want %g", s.Name, rhoD[i], want)
		}
	}
	if hot := m.Coefficients(2*m.T0, 1, Y, rhoD); hot <= lambda {
		t.Errorf("conductivity does not increase with temperature: %g ≤ %g", hot, lambda)
	}
}

func TestIndex(t *testing.T) {
	m := testMixture(t)
	if m.Index("P") != 1 || m.Index("O2") != -1 {
		t.Error("wrong species index")
	}
}
