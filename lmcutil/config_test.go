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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/lnashier/viper"
	"github.com/pinebai/lmc"
)

func TestLoadMechanism(t *testing.T) {
	m, err := LoadMechanism("testdata/mechanism.toml")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.Mixture.SpeciesNames(), []string{"F", "P", "N2"}; len(pretty.Diff(got, want)) != 0 {
		t.Errorf("species: %v", pretty.Diff(got, want))
	}
	if m.Mixture.TMax != 6000 {
		t.Errorf("default TMax = %g", m.Mixture.TMax)
	}
	if m.Reaction == nil || m.Reaction.Reactants["F"] != 1 || m.Reaction.Products["P"] != 1 {
		t.Fatalf("reaction: %# v", pretty.Formatter(m.Reaction))
	}
	k, err := m.Kinetics()
	if err != nil {
		t.Fatal(err)
	}
	if k == nil {
		t.Error("reacting mechanism has no kinetics")
	}
}

func TestLoadMechanismErrors(t *testing.T) {
	dir, err := os.MkdirTemp("", "lmcutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	for _, test := range []struct {
		name, contents, want string
	}{
		{
			name:     "unknown key",
			contents: "[mixture]\nlambda0 = 0.02\nviscosity = 1.0\n[[mixture.species]]\nname = \"A\"\nmolecular_weight = 2.0\ncp_a = 1000.0\nlewis = 1.0\n",
			want:     "unknown keys",
		},
		{
			name:     "no species",
			contents: "[mixture]\nlambda0 = 0.02\n",
			want:     "no species",
		},
		{
			name:     "unbalanced",
			contents: "[mixture]\nlambda0 = 0.02\n[[mixture.species]]\nname = \"A\"\nmolecular_weight = 2.0\ncp_a = 1000.0\nlewis = 1.0\n[[mixture.species]]\nname = \"B\"\nmolecular_weight = 3.0\ncp_a = 1000.0\nlewis = 1.0\n[reaction]\na = 1.0\n[reaction.reactants]\nA = 1.0\n[reaction.products]\nB = 1.0\n",
			want:     "conserve mass",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.Replace(test.name, " ", "_", -1)+".toml")
			if err := os.WriteFile(path, []byte(test.contents), 0644); err != nil {
				t.Fatal(err)
			}
			m, err := LoadMechanism(path)
			if err == nil {
				_, err = m.Kinetics()
			}
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %v should contain %q", err, test.want)
			}
		})
	}
	if _, err := LoadMechanism(""); err == nil {
		t.Error("missing mechanism path should be an error")
	}
}

// newCfg returns a configuration holding the defaults of every option.
func newCfg() *viper.Viper {
	cfg := viper.New()
	for _, o := range options {
		if o.name == "config" {
			continue
		}
		cfg.SetDefault(o.name, o.defaultVal)
	}
	return cfg
}

func TestBuildConfig(t *testing.T) {
	m, err := LoadMechanism("testdata/mechanism.toml")
	if err != nil {
		t.Fatal(err)
	}
	cfg := newCfg()
	cfg.Set("Grid.Nx", 16)
	cfg.Set("Grid.Dx", 2.e-4)
	cfg.Set("MCDD.Mode", "temperature")
	cfg.Set("TimeStep.StepRetries", 3)
	cfg.Set("MCDD.Nu1", "[6,2]")
	cfg.Set("Typical.Species", `{"F": "0.1", "N2": "0.9"}`)
	c, err := BuildConfig(cfg, &m.Mixture)
	if err != nil {
		t.Fatal(err)
	}
	want := lmc.DefaultConfig()
	want.Nx, want.Ny, want.Dx = 16, 1, 2.e-4
	want.MCDD.Mode = lmc.TempMode
	want.TimeStep.StepRetries = 3
	want.MCDD.Nu1 = []int{6, 2}
	want.Typical.Species = []float64{0.1, 0, 0.9}
	if diff := pretty.Diff(c, want); len(diff) != 0 {
		t.Errorf("configuration differs from expected:\n%s", strings.Join(diff, "\n"))
	}
}

func TestBuildConfigErrors(t *testing.T) {
	m, err := LoadMechanism("testdata/mechanism.toml")
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name  string
		value interface{}
	}{
		{"MCDD.Mode", "pressure"},
		{"Grid.Nx", 0},
		{"MCDD.Gamma", 0},
		{"Typical.Species", `{"O2": "0.2"}`},
		{"Typical.Species", `{"F": "lots"}`},
		{"Typical.Species", `not json`},
		{"MCDD.Nu1", "[4,x]"},
		{"MCDD.Nu2", "[]"},
		{"MCDD.Nu2", "[3,-1]"},
	} {
		cfg := newCfg()
		cfg.Set(test.name, test.value)
		if _, err := BuildConfig(cfg, &m.Mixture); err == nil {
			t.Errorf("%s = %v should be an error", test.name, test.value)
		}
	}
}

func TestGetStringMapString(t *testing.T) {
	cfg := viper.New()
	cfg.Set("a", map[string]interface{}{"F": 0.5, "N2": "x"})
	cfg.Set("b", `{"F": "1"}`)
	cfg.Set("c", "")
	for name, want := range map[string]map[string]string{
		"a": {"F": "0.5", "N2": "x"},
		"b": {"F": "1"},
		"c": {},
	} {
		got, err := getStringMapString(name, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if diff := pretty.Diff(got, want); len(diff) != 0 {
			t.Errorf("%s: %v", name, diff)
		}
	}
	cfg.Set("d", 3)
	if _, err := getStringMapString("d", cfg); err == nil {
		t.Error("an integer should not convert to a map")
	}
}

func TestGetIntSlice(t *testing.T) {
	cfg := viper.New()
	cfg.Set("a", []interface{}{int64(4), int64(2)})
	cfg.Set("b", "[3, 1]")
	cfg.Set("c", 5)
	cfg.Set("d", []int{7})
	for name, want := range map[string][]int{
		"a": {4, 2},
		"b": {3, 1},
		"c": {5},
		"d": {7},
	} {
		got, err := getIntSlice(name, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if diff := pretty.Diff(got, want); len(diff) != 0 {
			t.Errorf("%s: %v", name, diff)
		}
	}
	cfg.Set("e", 1.5)
	if _, err := getIntSlice("e", cfg); err == nil {
		t.Error("a float should not convert to a slice")
	}
}
