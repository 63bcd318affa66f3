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
	"strings"
	"testing"
)

type fakeModel struct {
	dtEst float64
	fails int
	dts   []float64
	posts int
}

func (m *fakeModel) InitData() (float64, error) { return m.dtEst, nil }

func (m *fakeModel) Advance(time, dt float64) (float64, error) {
	m.dts = append(m.dts, dt)
	if m.fails > 0 {
		m.fails--
		return 0, errors.New("step failed")
	}
	return m.dtEst, nil
}

func (m *fakeModel) PostTimestep(step int, time, dt float64) error {
	m.posts++
	return nil
}

func TestSimulationStopTime(t *testing.T) {
	m := &fakeModel{dtEst: 0.3}
	s := &Simulation{
		Model:    m,
		TimeStep: TimeStepConfig{StopTime: 1, MaxSteps: -1},
		RunFuncs: []DomainManipulator{StopCheck(-1, 1)},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if s.Step != 4 || m.posts != 4 {
		t.Errorf("%d steps and %d post-step calls; want 4", s.Step, m.posts)
	}
	if different(s.Time, 1, 1.e-14) {
		t.Errorf("simulation ended at %g; want 1", s.Time)
	}
	if different(m.dts[3], 0.1, 1.e-12) {
		t.Errorf("last step %g; want 0.1", m.dts[3])
	}
}

func TestSimulationMaxSteps(t *testing.T) {
	m := &fakeModel{dtEst: 1}
	var cleaned bool
	s := &Simulation{
		Model:    m,
		TimeStep: TimeStepConfig{InitShrink: 0.1, ChangeMax: 2},
		RunFuncs: []DomainManipulator{StopCheck(4, 0)},
		CleanupFuncs: []DomainManipulator{func(*Simulation) error {
			cleaned = true
			return nil
		}},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	want := []float64{0.1, 0.2, 0.4, 0.8}
	if len(m.dts) != len(want) {
		t.Fatalf("time steps %v; want %v", m.dts, want)
	}
	for i, dt := range want {
		if different(m.dts[i], dt, 1.e-14) {
			t.Errorf("step %d: dt = %g; want %g", i, m.dts[i], dt)
		}
	}
	if !cleaned {
		t.Error("cleanup functions were not run")
	}
}

func TestSimulationRetry(t *testing.T) {
	m := &fakeModel{dtEst: 1, fails: 2}
	s := &Simulation{
		Model:    m,
		TimeStep: TimeStepConfig{StepRetries: 3},
		RunFuncs: []DomainManipulator{StopCheck(1, 0)},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 0.5, 0.25}
	if len(m.dts) != len(want) {
		t.Fatalf("attempted time steps %v; want %v", m.dts, want)
	}
	for i, dt := range want {
		if m.dts[i] != dt {
			t.Errorf("attempt %d: dt = %g; want %g", i, m.dts[i], dt)
		}
	}
	if s.Time != 0.25 || s.Dt != 0.25 || s.Step != 1 {
		t.Errorf("time %g, dt %g, step %d", s.Time, s.Dt, s.Step)
	}
}

func TestSimulationRetriesExhausted(t *testing.T) {
	m := &fakeModel{dtEst: 1, fails: 5}
	s := &Simulation{
		Model:    m,
		TimeStep: TimeStepConfig{StepRetries: 2},
		RunFuncs: []DomainManipulator{StopCheck(1, 0)},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	err := s.Run()
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a StepError", err)
	}
	if se.Step != 1 || len(m.dts) != 3 {
		t.Errorf("failed at step %d after %d attempts; want step 1 after 3", se.Step, len(m.dts))
	}
}

func TestSimulationLog(t *testing.T) {
	var b strings.Builder
	s := &Simulation{
		Model:    &fakeModel{dtEst: 0.5},
		RunFuncs: []DomainManipulator{Log(&b), StopCheck(2, 0)},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "Step 2") {
		t.Errorf("log %q does not mention step 2", b.String())
	}
}

func TestReactingFlowRun(t *testing.T) {
	cfg := testConfig(16, 1)
	cfg.TimeStep.FixedDt = 2.e-5
	cfg.TimeStep.MaxSteps = 3
	rf := newTestFlow(t, cfg)
	before := rf.Totals()
	s := &Simulation{
		Model:    rf,
		TimeStep: cfg.TimeStep,
		RunFuncs: []DomainManipulator{StopCheck(cfg.TimeStep.MaxSteps, cfg.TimeStep.StopTime)},
	}
	s.DtEst = cfg.TimeStep.FixedDt
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if s.Step != 3 || different(s.Time, 6.e-5, 1.e-12) {
		t.Errorf("step %d at time %g", s.Step, s.Time)
	}
	checkConserved(t, before, rf.Totals(), 1.e-10)
	if rf.LastStep() == nil || rf.SDC().Rate() == nil {
		t.Error("the flow did not record its latest step")
	}
}
