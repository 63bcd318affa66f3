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
	"fmt"
	"io"
	"os"

	"github.com/lnashier/viper"
	"github.com/pinebai/lmc"
	"github.com/pinebai/lmc/internal/hash"
	"github.com/sirupsen/logrus"
)

// Run sets up and runs the simulation described by cfg, writing progress
// messages to out and, if the LogFile configuration variable is set, to
// that file. It returns the final state of the flow.
func Run(cfg *viper.Viper, out io.Writer) (*lmc.ReactingFlow, error) {
	mech, err := LoadMechanism(os.ExpandEnv(cfg.GetString("Mechanism")))
	if err != nil {
		return nil, err
	}
	c, err := BuildConfig(cfg, &mech.Mixture)
	if err != nil {
		return nil, err
	}
	icY, err := getStringMapString("IC.Y", cfg)
	if err != nil {
		return nil, err
	}
	ics := InitialConditions{
		Y: expand(icY),
		T: os.ExpandEnv(cfg.GetString("IC.T")),
		U: os.ExpandEnv(cfg.GetString("IC.U")),
		V: os.ExpandEnv(cfg.GetString("IC.V")),
	}
	g := c.Geometry()
	ic, err := ics.Compile(&mech.Mixture, float64(g.Nx)*g.Dx, float64(g.Ny)*g.Dy)
	if err != nil {
		return nil, err
	}
	kin, err := mech.Kinetics()
	if err != nil {
		return nil, err
	}

	w := out
	if logFile := os.ExpandEnv(cfg.GetString("LogFile")); logFile != "" {
		f, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("lmcutil: problem creating log file: %v", err)
		}
		defer f.Close()
		w = io.MultiWriter(out, f)
	}
	log := logrus.New()
	log.Out = w

	log.WithFields(logrus.Fields{
		"version":     lmc.Version,
		"fingerprint": hash.Fingerprint(c, mech, ics),
		"mechanism":   cfg.GetString("Mechanism"),
	}).Info("starting simulation")

	rf, err := lmc.NewReactingFlow(c, &mech.Mixture, &mech.Mixture, kin, nil, ic, log)
	if err != nil {
		return nil, err
	}
	var initial []float64
	sim := &lmc.Simulation{
		Model:    rf,
		TimeStep: c.TimeStep,
		InitFuncs: []lmc.DomainManipulator{
			func(*lmc.Simulation) error {
				initial = rf.Totals()
				return nil
			},
		},
		RunFuncs: []lmc.DomainManipulator{
			lmc.Log(w),
			lmc.StopCheck(c.TimeStep.MaxSteps, c.TimeStep.StopTime),
		},
		CleanupFuncs: []lmc.DomainManipulator{
			logTotals(rf, &initial, log),
		},
	}
	if err := sim.Init(); err != nil {
		return nil, err
	}
	if err := sim.Run(); err != nil {
		return nil, err
	}
	return rf, nil
}

// logTotals logs the change in the domain totals of the conserved
// quantities over the run. Boundary fluxes account for any change.
func logTotals(rf *lmc.ReactingFlow, initial *[]float64, log logrus.FieldLogger) lmc.DomainManipulator {
	return func(s *lmc.Simulation) error {
		final := rf.Totals()
		names := append(rf.SpeciesNames(), "rhoH")
		fields := make(logrus.Fields, len(final))
		for i, v := range final {
			fields[names[i]] = fmt.Sprintf("%.6g → %.6g", (*initial)[i], v)
		}
		log.WithFields(fields).WithField("steps", s.Step).Info("simulation complete")
		return nil
	}
}
