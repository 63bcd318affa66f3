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

// Package onestep implements a single irreversible Arrhenius reaction,
// integrated cell by cell with backward Euler substeps.
package onestep

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Thermo is the thermodynamic information the kinetics needs.
type Thermo interface {
	SpeciesNames() []string
	MolecularWeights() []float64
	TFromHY(H float64, Y []float64, Tguess float64) (float64, error)
}

// Reaction describes Σ ν'_k X_k → Σ ν''_k X_k with rate
// q = A·T^Beta·exp(-Ta/T)·Π [X_k]^{o_k}, where [X_k] is the molar
// concentration [kmol/m³] and o_k defaults to ν'_k.
type Reaction struct {
	Reactants map[string]float64 `toml:"reactants"`
	Products  map[string]float64 `toml:"products"`
	Orders    map[string]float64 `toml:"orders"`

	A    float64 `toml:"a"`
	Beta float64 `toml:"beta"`
	Ta   float64 `toml:"ta"` // activation temperature [K]

	// Substeps is the number of backward Euler steps per call to Advance.
	Substeps int `toml:"substeps"`

	MaxIter int     `toml:"max_iter"`
	Tol     float64 `toml:"tol"`
}

// Kinetics advances the reaction in a single cell. It is safe for
// concurrent use.
type Kinetics struct {
	thermo Thermo
	mw     []float64
	nu     []float64 // net stoichiometric coefficients ν'' - ν'
	order  []float64

	a, beta, ta float64

	substeps, maxIter int
	tol               float64
}

// New returns the kinetics of r for the species of th.
func New(r Reaction, th Thermo) (*Kinetics, error) {
	names := th.SpeciesNames()
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	k := &Kinetics{
		thermo:   th,
		mw:       th.MolecularWeights(),
		nu:       make([]float64, len(names)),
		order:    make([]float64, len(names)),
		a:        r.A,
		beta:     r.Beta,
		ta:       r.Ta,
		substeps: r.Substeps,
		maxIter:  r.MaxIter,
		tol:      r.Tol,
	}
	lookup := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("onestep: unknown species %q", name)
		}
		return i, nil
	}
	for name, v := range r.Reactants {
		i, err := lookup(name)
		if err != nil {
			return nil, err
		}
		k.nu[i] -= v
		k.order[i] = v
	}
	for name, v := range r.Products {
		i, err := lookup(name)
		if err != nil {
			return nil, err
		}
		k.nu[i] += v
	}
	for name, v := range r.Orders {
		i, err := lookup(name)
		if err != nil {
			return nil, err
		}
		k.order[i] = v
	}
	var massBalance, scale float64
	for i, v := range k.nu {
		massBalance += v * k.mw[i]
		scale += math.Abs(v * k.mw[i])
	}
	if math.Abs(massBalance) > 1.e-6*scale {
		return nil, fmt.Errorf("onestep: reaction does not conserve mass (imbalance %g g/mol)", massBalance)
	}
	if k.a < 0 {
		return nil, fmt.Errorf("onestep: pre-exponential factor %g must not be negative", k.a)
	}
	if k.substeps <= 0 {
		k.substeps = 1
	}
	if k.maxIter <= 0 {
		k.maxIter = 50
	}
	if k.tol <= 0 {
		k.tol = 1.e-10
	}
	return k, nil
}

// rate returns the molar rate of progress [kmol/m³/s].
func (k *Kinetics) rate(rhoY []float64, T float64) float64 {
	if k.a == 0 || T <= 0 {
		return 0
	}
	q := k.a * math.Pow(T, k.beta) * math.Exp(-k.ta/T)
	for i, o := range k.order {
		if o == 0 {
			continue
		}
		c := math.Max(rhoY[i], 0) / k.mw[i]
		q *= math.Pow(c, o)
	}
	return q
}

// ProductionRates fills wdot with the species production rates
// [kg/m³/s].
func (k *Kinetics) ProductionRates(rhoY []float64, T float64, wdot []float64) {
	q := k.rate(rhoY, T)
	for i, v := range k.nu {
		wdot[i] = v * k.mw[i] * q
	}
}

// Advance integrates d(ρY)/dt = ω̇ + fY and d(ρh)/dt = fH over dt,
// updating rhoY in place and returning the new ρh and temperature.
func (k *Kinetics) Advance(rhoY []float64, rhoH, T float64, fY []float64, fH, dt float64) (float64, float64, error) {
	n := len(rhoY)
	h := dt / float64(k.substeps)
	old := make([]float64, n)
	for s := 0; s < k.substeps; s++ {
		copy(old, rhoY)
		rhoH += h * fH
		var err error
		T, err = k.substep(rhoY, old, rhoH, T, fY, h)
		if err != nil {
			return 0, 0, err
		}
	}
	return rhoH, T, nil
}

// temperature returns the temperature of partial densities rhoY with
// enthalpy density rhoH.
func (k *Kinetics) temperature(rhoY []float64, rhoH, Tguess float64, Y []float64) (float64, error) {
	var rho float64
	for _, v := range rhoY {
		rho += v
	}
	if rho <= 0 {
		return 0, fmt.Errorf("onestep: density %g is not positive", rho)
	}
	for i, v := range rhoY {
		Y[i] = v / rho
	}
	return k.thermo.TFromHY(rhoH/rho, Y, Tguess)
}

// substep solves the backward Euler system
// G(c) = c - old - h·(ω̇(c, T(c)) + fY) = 0 with Newton's method and a
// finite-difference Jacobian.
func (k *Kinetics) substep(c, old []float64, rhoH, T float64, fY []float64, h float64) (float64, error) {
	n := len(c)
	Y := make([]float64, n)
	wdot := make([]float64, n)
	G := make([]float64, n)
	residual := func(c []float64, Tguess float64, G []float64) (float64, error) {
		T, err := k.temperature(c, rhoH, Tguess, Y)
		if err != nil {
			return 0, err
		}
		k.ProductionRates(c, T, wdot)
		for i := range c {
			G[i] = c[i] - old[i] - h*(wdot[i]+fY[i])
		}
		return T, nil
	}
	var rho float64
	for _, v := range old {
		rho += math.Abs(v)
	}
	J := mat.NewDense(n, n, nil)
	Gp := make([]float64, n)
	cp := make([]float64, n)
	for iter := 0; iter < k.maxIter; iter++ {
		var err error
		T, err = residual(c, T, G)
		if err != nil {
			return 0, err
		}
		for j := 0; j < n; j++ {
			copy(cp, c)
			eps := 1.e-7 * math.Max(math.Abs(c[j]), 1.e-6*rho)
			cp[j] += eps
			if _, err := residual(cp, T, Gp); err != nil {
				return 0, err
			}
			for i := 0; i < n; i++ {
				J.Set(i, j, (Gp[i]-G[i])/eps)
			}
		}
		var dc mat.VecDense
		if err := dc.SolveVec(J, mat.NewVecDense(n, G)); err != nil {
			return 0, fmt.Errorf("onestep: singular Newton system: %v", err)
		}
		var norm float64
		for i := range c {
			c[i] -= dc.AtVec(i)
			norm = math.Max(norm, math.Abs(dc.AtVec(i)))
		}
		if norm <= k.tol*rho {
			return k.temperature(c, rhoH, T, Y)
		}
	}
	return 0, fmt.Errorf("onestep: Newton iteration did not converge in %d iterations", k.maxIter)
}
