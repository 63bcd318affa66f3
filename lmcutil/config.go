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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/pinebai/lmc"
	"github.com/pinebai/lmc/science/chem/onestep"
	"github.com/pinebai/lmc/science/mix/idealgas"
	"github.com/spf13/cast"
)

// Mechanism holds the contents of a mechanism file.
type Mechanism struct {
	Mixture idealgas.Mixture `toml:"mixture"`

	// Reaction is nil for a non-reacting mixture.
	Reaction *onestep.Reaction `toml:"reaction"`
}

// LoadMechanism reads and checks a mechanism file.
func LoadMechanism(path string) (*Mechanism, error) {
	if path == "" {
		return nil, fmt.Errorf("lmcutil: you need to specify a mechanism file in the 'Mechanism' configuration variable")
	}
	m := new(Mechanism)
	md, err := toml.DecodeFile(path, m)
	if err != nil {
		return nil, fmt.Errorf("lmcutil: reading mechanism file %s: %v", path, err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		return nil, fmt.Errorf("lmcutil: unknown keys %v in mechanism file %s", u, path)
	}
	if err := m.Mixture.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Kinetics returns the reaction kinetics of the mechanism, or nil if it
// does not react.
func (m *Mechanism) Kinetics() (lmc.Kinetics, error) {
	if m.Reaction == nil {
		return nil, nil
	}
	k, err := onestep.New(*m.Reaction, &m.Mixture)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// BuildConfig creates a solver configuration from cfg. The species names
// of th are used to interpret per-species settings.
func BuildConfig(cfg *viper.Viper, th lmc.Thermo) (*lmc.Config, error) {
	mode, err := lmc.ParseDDMode(cfg.GetString("MCDD.Mode"))
	if err != nil {
		return nil, err
	}
	nu1, err := getIntSlice("MCDD.Nu1", cfg)
	if err != nil {
		return nil, err
	}
	nu2, err := getIntSlice("MCDD.Nu2", cfg)
	if err != nil {
		return nil, err
	}
	c := &lmc.Config{
		Nx:        cfg.GetInt("Grid.Nx"),
		Ny:        cfg.GetInt("Grid.Ny"),
		Dx:        cfg.GetFloat64("Grid.Dx"),
		Dy:        cfg.GetFloat64("Grid.Dy"),
		Periodic:  [2]bool{cfg.GetBool("Grid.PeriodicX"), cfg.GetBool("Grid.PeriodicY")},
		Pressure:  cfg.GetFloat64("Pressure"),
		PatchSize: cfg.GetInt("PatchSize"),
		SDC:       lmc.SDCConfig{Sweeps: cfg.GetInt("SDC.Sweeps")},
		Diffusion: lmc.DiffusionConfig{
			UseMCDD:          cfg.GetBool("Diffusion.UseMCDD"),
			ImplicitEnthalpy: cfg.GetBool("Diffusion.ImplicitEnthalpy"),
		},
		MCDD: lmc.MCDDConfig{
			Mode:         mode,
			Nu1:          nu1,
			Nu2:          nu2,
			Nub:          cfg.GetInt("MCDD.Nub"),
			Gamma:        cfg.GetInt("MCDD.Gamma"),
			NumCycles:    cfg.GetInt("MCDD.NumCycles"),
			MaxLevels:    cfg.GetInt("MCDD.MaxLevels"),
			AbsTol:       cfg.GetFloat64("MCDD.AbsTol"),
			ReduxTol:     cfg.GetFloat64("MCDD.ReduxTol"),
			StallTol:     cfg.GetFloat64("MCDD.StallTol"),
			SpeciesRelax: cfg.GetFloat64("MCDD.SpeciesRelax"),
			TempRelax:    cfg.GetFloat64("MCDD.TempRelax"),
			Verbose:      cfg.GetInt("MCDD.Verbose"),
		},
		TimeStep: lmc.TimeStepConfig{
			CFL:               cfg.GetFloat64("TimeStep.CFL"),
			FixedDt:           cfg.GetFloat64("TimeStep.FixedDt"),
			MaxDt:             cfg.GetFloat64("TimeStep.MaxDt"),
			InitShrink:        cfg.GetFloat64("TimeStep.InitShrink"),
			ChangeMax:         cfg.GetFloat64("TimeStep.ChangeMax"),
			DivuCeiling:       cfg.GetBool("TimeStep.DivuCeiling"),
			DivuDtFactor:      cfg.GetFloat64("TimeStep.DivuDtFactor"),
			MinRhoDivuCeiling: cfg.GetFloat64("TimeStep.MinRhoDivuCeiling"),
			StopTime:          cfg.GetFloat64("TimeStep.StopTime"),
			MaxSteps:          cfg.GetInt("TimeStep.MaxSteps"),
			StepRetries:       cfg.GetInt("TimeStep.StepRetries"),
		},
		Typical: lmc.TypicalConfig{
			Density: cfg.GetFloat64("Typical.Density"),
			RhoH:    cfg.GetFloat64("Typical.RhoH"),
			Temp:    cfg.GetFloat64("Typical.Temp"),
		},
		ClipNegativeRhoY: cfg.GetBool("ClipNegativeRhoY"),
		FloorSpecies:     cfg.GetBool("FloorSpecies"),
	}
	typical, err := getStringMapString("Typical.Species", cfg)
	if err != nil {
		return nil, err
	}
	if len(typical) > 0 {
		c.Typical.Species, err = speciesValues(typical, th.SpeciesNames())
		if err != nil {
			return nil, fmt.Errorf("lmcutil: Typical.Species: %v", err)
		}
	}
	if err := c.Validate(th.NumSpecies()); err != nil {
		return nil, err
	}
	return c, nil
}

// speciesValues converts a map of species names to numbers into a slice
// in species order. Species that are not in m are zero.
func speciesValues(m map[string]string, names []string) ([]float64, error) {
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	o := make([]float64, len(names))
	for name, s := range m {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("unknown species %q", name)
		}
		v, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("species %q: %v", name, err)
		}
		o[i] = v
	}
	return o, nil
}

// getStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func getStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if v == "" {
			return o, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("lmcutil: parsing configuration variable %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("lmcutil: invalid type for configuration variable %s: %#v", varName, i)
	}
}

// getIntSlice returns an []int from a viper configuration, accounting for
// the fact that it is a string like "[4,2]" if it was set from a command
// line argument.
func getIntSlice(varName string, cfg *viper.Viper) ([]int, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case []int:
		return v, nil
	case int, int64:
		n, err := cast.ToIntE(v)
		return []int{n}, err
	case []interface{}:
		o, err := cast.ToIntSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("lmcutil: configuration variable %s: %v", varName, err)
		}
		return o, nil
	case string:
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(v), "["), "]"))
		if v == "" {
			return []int{}, nil
		}
		var o []int
		for _, f := range strings.Split(v, ",") {
			n, err := cast.ToIntE(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("lmcutil: configuration variable %s: %v", varName, err)
			}
			o = append(o, n)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("lmcutil: invalid type for configuration variable %s: %#v", varName, i)
	}
}

// expand expands environment variables in the values of m.
func expand(m map[string]string) map[string]string {
	for k, v := range m {
		m[k] = os.ExpandEnv(v)
	}
	return m
}
