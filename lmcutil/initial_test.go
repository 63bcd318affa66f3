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

package lmcutil

import (
	"math"
	"testing"
)

func TestInitialConditions(t *testing.T) {
	m, err := LoadMechanism("testdata/mechanism.toml")
	if err != nil {
		t.Fatal(err)
	}
	ics := InitialConditions{
		Y: map[string]string{
			"F":  "0.1",
			"N2": "0.9",
		},
		T: "300 + 1000*exp(-pow((x - Lx/2)/0.1, 2))",
		U: "max(y, 0.5)",
	}
	ic, err := ics.Compile(&m.Mixture, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	Y, T, u, err := ic(0.5, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.1, 0, 0.9}
	for i := range want {
		if math.Abs(Y[i]-want[i]) > 1.e-14 {
			t.Errorf("Y[%d] = %g; want %g", i, Y[i], want[i])
		}
	}
	if math.Abs(T-1300) > 1.e-10 {
		t.Errorf("T = %g; want 1300", T)
	}
	if u != [2]float64{0.5, 0} {
		t.Errorf("u = %v", u)
	}
}

func TestInitialConditionsNormalize(t *testing.T) {
	m, err := LoadMechanism("testdata/mechanism.toml")
	if err != nil {
		t.Fatal(err)
	}
	ic, err := InitialConditions{
		Y: map[string]string{"F": "1", "P": "1", "N2": "2"},
		T: "300",
	}.Compile(&m.Mixture, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	Y, _, _, err := ic(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if Y[0] != 0.25 || Y[1] != 0.25 || Y[2] != 0.5 {
		t.Errorf("Y = %v", Y)
	}
}

func TestInitialConditionsErrors(t *testing.T) {
	m, err := LoadMechanism("testdata/mechanism.toml")
	if err != nil {
		t.Fatal(err)
	}
	for name, ics := range map[string]InitialConditions{
		"no species":       {T: "300"},
		"unknown species":  {Y: map[string]string{"O2": "1"}, T: "300"},
		"unknown variable": {Y: map[string]string{"F": "z"}, T: "300"},
		"syntax":           {Y: map[string]string{"F": "1"}, T: "300 +"},
	} {
		if _, err := ics.Compile(&m.Mixture, 1, 1); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
	for name, ics := range map[string]InitialConditions{
		"negative": {Y: map[string]string{"F": "-1", "N2": "2"}, T: "300"},
		"zero sum": {Y: map[string]string{"F": "0"}, T: "300"},
		"function": {Y: map[string]string{"F": "sqrt(1, 2)"}, T: "300"},
	} {
		ic, err := ics.Compile(&m.Mixture, 1, 1)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, _, _, err := ic(0, 0); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
