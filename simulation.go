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

// Package lmc advances a low Mach number reacting flow with spectral
// deferred corrections and solves its multicomponent diffusion with a
// nonlinear multigrid method.
package lmc

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// PhysicsModel is the physics advanced by a Simulation.
type PhysicsModel interface {
	// InitData sets up the initial state and returns the estimated
	// stable time step for the first step.
	InitData() (dtEst float64, err error)

	// Advance advances the state from time over dt and returns the
	// estimated stable time step for the next step. If it returns an
	// error the state must be left as it was before the call.
	Advance(time, dt float64) (dtEst float64, err error)

	// PostTimestep is called after every successful step.
	PostTimestep(step int, time, dt float64) error
}

// Simulation drives a PhysicsModel through time.
type Simulation struct {
	Model PhysicsModel

	// InitFuncs are run once after the model is initialized.
	InitFuncs []DomainManipulator

	// RunFuncs are run after every time step.
	RunFuncs []DomainManipulator

	// CleanupFuncs are run once after the last time step.
	CleanupFuncs []DomainManipulator

	// TimeStep controls the step size, run length and retries.
	TimeStep TimeStepConfig

	Time  float64 // current simulation time [s]
	Dt    float64 // size of the latest step [s]
	DtEst float64 // estimated stable size of the next step [s]
	Step  int     // number of completed steps

	// Done is set by a RunFunc to end the simulation.
	Done bool
}

// DomainManipulator is a function that inspects or changes a simulation.
type DomainManipulator func(s *Simulation) error

// Init initializes the model and runs the InitFuncs.
func (s *Simulation) Init() error {
	dt, err := s.Model.InitData()
	if err != nil {
		return err
	}
	s.DtEst = dt
	for _, f := range s.InitFuncs {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// Run advances the model until a RunFunc sets Done, then runs the
// CleanupFuncs. A step that fails is retried from the same state with
// half the time step, up to TimeStep.StepRetries times.
func (s *Simulation) Run() error {
	for !s.Done {
		dt := s.nextDt()
		var dtEst float64
		err := backoff.RetryNotify(
			func() error {
				var err error
				dtEst, err = s.Model.Advance(s.Time, dt)
				if err != nil {
					dt /= 2
				}
				return err
			},
			backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(s.TimeStep.StepRetries)),
			func(err error, _ time.Duration) {
				logrus.WithFields(logrus.Fields{
					"step": s.Step + 1,
					"dt":   dt,
				}).Warnf("retrying step with a smaller time step: %v", err)
			},
		)
		if err != nil {
			return &StepError{Step: s.Step + 1, Time: s.Time, Err: err}
		}
		s.Time += dt
		s.Dt = dt
		s.DtEst = dtEst
		s.Step++
		if err := s.Model.PostTimestep(s.Step, s.Time, dt); err != nil {
			return &StepError{Step: s.Step, Time: s.Time, Err: err}
		}
		for _, f := range s.RunFuncs {
			if err := f(s); err != nil {
				return err
			}
		}
	}
	for _, f := range s.CleanupFuncs {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// nextDt returns the size of the next step: the estimate, shrunk on the
// first step, limited in growth and cut to end exactly at StopTime.
func (s *Simulation) nextDt() float64 {
	c := s.TimeStep
	dt := s.DtEst
	if s.Step == 0 && c.InitShrink > 0 {
		dt *= c.InitShrink
	}
	if s.Step > 0 && c.ChangeMax > 0 {
		dt = math.Min(dt, c.ChangeMax*s.Dt)
	}
	if c.StopTime > 0 && s.Time+dt > c.StopTime {
		dt = c.StopTime - s.Time
	}
	return dt
}

// StopCheck sets the Done flag once maxSteps steps have been taken, if
// maxSteps >= 0, or once the simulation reaches stopTime, if
// stopTime > 0.
func StopCheck(maxSteps int, stopTime float64) DomainManipulator {
	const eps = 1.e-12
	return func(s *Simulation) error {
		if maxSteps >= 0 && s.Step >= maxSteps {
			s.Done = true
		}
		if stopTime > 0 && s.Time >= stopTime*(1-eps) {
			s.Done = true
		}
		return nil
	}
}

// Log writes simulation status messages to w.
func Log(w io.Writer) DomainManipulator {
	startTime := time.Now()
	timeStepTime := time.Now()
	return func(s *Simulation) error {
		fmt.Fprintf(w, "Step %-5d  walltime=%6.3gh  Δwalltime=%4.2gs  "+
			"dt=%.4gs  time=%.6gs\n",
			s.Step, time.Since(startTime).Hours(),
			time.Since(timeStepTime).Seconds(), s.Dt, s.Time)
		timeStepTime = time.Now()
		return nil
	}
}
