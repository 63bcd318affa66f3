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
)

func newTestSDC(t *testing.T, cfg *Config, rf *ReactingFlow, v VelocityPredictor) *SDC {
	th := testMixture(t)
	m := newTestMCDD(t, cfg, rf)
	l := rf.Layout()
	r := &NullReactor{Layout: l, Thermo: th, Patches: cfg.Geometry().Patches(cfg.PatchSize)}
	if v == nil {
		v = AveragedVelocity{Layout: l, Mesh: cfg.Mesh()}
	}
	return NewSDC(cfg, th, m, r, v, cfg.Mesh(), testLogger())
}

func TestSDCPredictorOnly(t *testing.T) {
	cfg := testConfig(32, 1)
	cfg.SDC.Sweeps = 0
	rf := newTestFlow(t, cfg)
	s := newTestSDC(t, cfg, rf, nil)
	old := rf.State()
	l := rf.Layout()
	dt := 5.e-5
	res, err := s.Step(old, dt, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Diffusion) != 1 {
		t.Fatalf("%d diffusion solves; want 1", len(res.Diffusion))
	}
	if n := s.FluxRegister().Increments(); n != 1 {
		t.Errorf("flux register incremented %d times; want 1", n)
	}
	pred := res.Diffusion[0]
	// Without reactions or advection the predictor is Crank-Nicolson.
	for eq := 0; eq < l.NEq(); eq++ {
		c := l.EqComp(eq)
		for i := 0; i < cfg.Nx; i++ {
			want := old.At(c, i, 0) + dt*0.5*(pred.DOld.At(eq, i, 0)+pred.D.At(eq, i, 0))
			if absDifferent(res.State.At(c, i, 0), want, 1.e-12*math.Abs(want)) {
				t.Errorf("equation %d cell %d: %g; want %g", eq, i, res.State.At(c, i, 0), want)
			}
		}
	}
	checkConserved(t, totals(old, l), totals(res.State, l), 1.e-13)
	if res.DsDt != nil {
		t.Error("the first step without a stored constraint has no dS/dt")
	}
	if !(res.DtEst > 0) {
		t.Errorf("estimated time step %g", res.DtEst)
	}
}

func TestSDCCorrector(t *testing.T) {
	cfg := testConfig(32, 1)
	rf := newTestFlow(t, cfg)
	l := rf.Layout()
	old := rf.State()
	dt := 5.e-5

	cfg0 := *cfg
	cfg0.SDC.Sweeps = 0
	s0 := newTestSDC(t, &cfg0, rf, nil)
	r0, err := s0.Step(old, dt, 0)
	if err != nil {
		t.Fatal(err)
	}

	cfg.SDC.Sweeps = 2
	s := newTestSDC(t, cfg, rf, nil)
	divu, err := s.DivU(old, 0)
	if err != nil {
		t.Fatal(err)
	}
	s.SetDivU(divu)
	res, err := s.Step(old, dt, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Diffusion) != 3 {
		t.Fatalf("%d diffusion solves; want 3", len(res.Diffusion))
	}
	for i, d := range res.Diffusion {
		if d.Status != Solved {
			t.Errorf("solve %d: status %v", i, d.Status)
		}
	}
	if n := s.FluxRegister().Increments(); n != 1 {
		t.Errorf("flux register incremented %d times; want 1", n)
	}
	if res.DsDt == nil {
		t.Error("missing dS/dt")
	}
	checkConserved(t, totals(old, l), totals(res.State, l), 1.e-13)

	// Without reactions the Crank-Nicolson predictor is already the fixed
	// point of the corrector sweeps.
	c := l.Spec(0)
	var change, correction float64
	for i := 0; i < cfg.Nx; i++ {
		change = math.Max(change, math.Abs(r0.State.At(c, i, 0)-old.At(c, i, 0)))
		correction = math.Max(correction, math.Abs(res.State.At(c, i, 0)-r0.State.At(c, i, 0)))
	}
	if correction > 1.e-2*change {
		t.Errorf("correction %g is not small compared to the change %g", correction, change)
	}
}

// TestSDCSingleCorrection checks that one corrector sweep is the
// backward Euler correction
// U = U0 + Δt(A + R + ½(Dⁿ - D(U_pred)) + D(U)).
func TestSDCSingleCorrection(t *testing.T) {
	cfg := testConfig(32, 1)
	rf := newTestFlow(t, cfg)
	l := rf.Layout()
	old := rf.State()
	dt := 5.e-5

	cfg0 := *cfg
	cfg0.SDC.Sweeps = 0
	s0 := newTestSDC(t, &cfg0, rf, nil)
	pred, err := s0.Step(old, dt, 0)
	if err != nil {
		t.Fatal(err)
	}
	tp, err := s0.mcdd.DiffusionTerms(pred.State, dt)
	if err != nil {
		t.Fatal(err)
	}

	cfg.SDC.Sweeps = 1
	s := newTestSDC(t, cfg, rf, nil)
	res, err := s.Step(old, dt, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Diffusion) != 2 {
		t.Fatalf("%d diffusion solves; want 2", len(res.Diffusion))
	}
	Dn, Dhat := res.Diffusion[0].DOld, res.Diffusion[1].D
	// No advection and no reactions: A = R = 0.
	for eq := 0; eq < l.NEq(); eq++ {
		c := l.EqComp(eq)
		for i := 0; i < cfg.Nx; i++ {
			want := old.At(c, i, 0) + dt*(0.5*(Dn.At(eq, i, 0)-tp.D.At(eq, i, 0))+Dhat.At(eq, i, 0))
			if absDifferent(res.State.At(c, i, 0), want, 1.e-10*math.Abs(want)) {
				t.Errorf("equation %d cell %d: %g; want %g", eq, i, res.State.At(c, i, 0), want)
			}
		}
	}
	checkConserved(t, totals(old, l), totals(res.State, l), 1.e-13)
}

func TestSDCAdvectionConservation(t *testing.T) {
	cfg := testConfig(32, 1)
	cfg.Periodic[0] = true
	rf := newTestFlow(t, cfg)
	l := rf.Layout()
	s := newTestSDC(t, cfg, rf, ConstantVelocity{2, 0})
	old := rf.State()
	dt := 1.e-5
	res, err := s.Step(old, dt, 0)
	if err != nil {
		t.Fatal(err)
	}
	checkConserved(t, totals(old, l), totals(res.State, l), 1.e-12)
	for eq := 0; eq < l.NEq(); eq++ {
		if net := s.FluxRegister().Net(eq); absDifferent(net, 0, 1.e-12*old.MaxAbs(l.EqComp(eq))) {
			t.Errorf("equation %d: net boundary transport %g through periodic boundaries", eq, net)
		}
	}
	// The hydrogen-rich region moves to the right.
	c := l.Spec(0)
	if !(res.State.At(c, 16, 0) > old.At(c, 16, 0)) {
		t.Error("advection did not carry hydrogen downstream")
	}
}

func TestSDCRetryLeavesControllerUnchanged(t *testing.T) {
	cfg := testConfig(16, 1)
	rf := newTestFlow(t, cfg)
	s := newTestSDC(t, cfg, rf, nil)
	if _, err := s.Step(rf.State(), 1.e-5, 0); err != nil {
		t.Fatal(err)
	}
	rate, divu := s.Rate(), s.divu
	bad := rf.State().Copy()
	for i := 0; i < cfg.Nx; i++ {
		bad.Set(RhoH, i, 0, -1.e12)
	}
	if _, err := s.Step(bad, 1.e-5, 0); err == nil {
		t.Fatal("a state without a valid temperature should fail")
	}
	if s.Rate() != rate || s.divu != divu {
		t.Error("a failed step changed the controller")
	}
}
