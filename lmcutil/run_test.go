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
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pinebai/lmc"
)

func TestVersion(t *testing.T) {
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "lmc v" + lmc.Version; !strings.Contains(buf.String(), want) {
		t.Errorf("output %q should contain %q", buf.String(), want)
	}
}

func TestRunCommand(t *testing.T) {
	dir, err := os.MkdirTemp("", "lmcutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	logFile := filepath.Join(dir, "run.log")

	Cfg.Set("config", "testdata/config.toml")
	Cfg.Set("LogFile", logFile)
	defer Cfg.Set("LogFile", "")
	Root.SetOutput(new(bytes.Buffer))
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"fingerprint", "Step 2", "simulation complete"} {
		if !bytes.Contains(b, []byte(want)) {
			t.Errorf("log file should contain %q", want)
		}
	}
}

func TestRunConservation(t *testing.T) {
	Cfg.Set("config", "testdata/config.toml")
	if err := setConfig(); err != nil {
		t.Fatal(err)
	}
	mech, err := LoadMechanism("testdata/mechanism.toml")
	if err != nil {
		t.Fatal(err)
	}
	c, err := BuildConfig(Cfg, &mech.Mixture)
	if err != nil {
		t.Fatal(err)
	}
	c.TimeStep.MaxSteps = 0
	ic, err := InitialConditions{
		Y: map[string]string{"F": "0.05", "N2": "0.95"},
		T: "300 + 1200*exp(-pow((x - Lx/2)/4.0e-4, 2))",
	}.Compile(&mech.Mixture, float64(c.Nx)*c.Dx, 1)
	if err != nil {
		t.Fatal(err)
	}
	kin, err := mech.Kinetics()
	if err != nil {
		t.Fatal(err)
	}
	rf, err := lmc.NewReactingFlow(c, &mech.Mixture, &mech.Mixture, kin, nil, ic, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rf.InitData(); err != nil {
		t.Fatal(err)
	}
	before := rf.Totals()

	var out bytes.Buffer
	rf2, err := Run(Cfg, &out)
	if err != nil {
		t.Fatal(err)
	}
	after := rf2.Totals()

	var massBefore, massAfter float64
	n := len(before) - 1
	for k := 0; k < n; k++ {
		massBefore += before[k]
		massAfter += after[k]
	}
	if math.Abs(massAfter-massBefore) > 1.e-8*massBefore {
		t.Errorf("mass changed from %g to %g", massBefore, massAfter)
	}
	if math.Abs(after[n]-before[n]) > 1.e-8*math.Abs(before[n]) {
		t.Errorf("enthalpy changed from %g to %g", before[n], after[n])
	}
	if math.Abs(after[2]-before[2]) > 1.e-8*before[2] {
		t.Errorf("inert species changed from %g to %g", before[2], after[2])
	}
	if !(after[1] > 0) {
		t.Errorf("no product formed: %g", after[1])
	}
}
