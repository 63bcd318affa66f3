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

// Package idealgas provides thermodynamic and transport properties of a
// mixture of ideal gases whose specific heats vary linearly with
// temperature.
package idealgas

import (
	"fmt"
	"math"
)

// Species holds the properties of one gas.
type Species struct {
	Name string `toml:"name"`

	// MolecularWeight is the molar mass [g/mol].
	MolecularWeight float64 `toml:"molecular_weight"`

	// CpA and CpB give the specific heat c_p = CpA + CpB·T [J/kg/K].
	CpA float64 `toml:"cp_a"`
	CpB float64 `toml:"cp_b"`

	// H0 is the specific enthalpy at the reference temperature,
	// including the enthalpy of formation [J/kg].
	H0 float64 `toml:"h0"`

	// Lewis is the ratio of thermal diffusivity to the diffusivity of
	// this species in the mixture.
	Lewis float64 `toml:"lewis"`
}

// Mixture is a mixture of ideal gases. Its thermal conductivity is
// λ = Lambda0·(T/T0)^LambdaExp and the density-weighted diffusivity of
// species k is ρD_k = λ/(c_p·Le_k).
type Mixture struct {
	Species []Species `toml:"species"`

	TRef float64 `toml:"t_ref"` // reference temperature [K]

	Lambda0   float64 `toml:"lambda0"` // conductivity at T0 [W/m/K]
	T0        float64 `toml:"t0"`
	LambdaExp float64 `toml:"lambda_exp"`

	// TMin and TMax bound the temperatures returned by TFromHY.
	TMin float64 `toml:"t_min"`
	TMax float64 `toml:"t_max"`

	MaxIter int     `toml:"max_iter"`
	Tol     float64 `toml:"tol"` // relative temperature tolerance
}

// Validate checks the mixture and fills unset parameters with defaults.
func (m *Mixture) Validate() error {
	if len(m.Species) == 0 {
		return fmt.Errorf("idealgas: mixture has no species")
	}
	if m.TRef == 0 {
		m.TRef = 298.15
	}
	if m.T0 == 0 {
		m.T0 = m.TRef
	}
	if m.LambdaExp == 0 {
		m.LambdaExp = 0.7
	}
	if m.TMin == 0 {
		m.TMin = 100
	}
	if m.TMax == 0 {
		m.TMax = 6000
	}
	if m.MaxIter == 0 {
		m.MaxIter = 100
	}
	if m.Tol == 0 {
		m.Tol = 1.e-12
	}
	if m.Lambda0 <= 0 {
		return fmt.Errorf("idealgas: conductivity %g must be positive", m.Lambda0)
	}
	if m.TMin <= 0 || m.TMax <= m.TMin {
		return fmt.Errorf("idealgas: invalid temperature range [%g, %g]", m.TMin, m.TMax)
	}
	names := make(map[string]bool)
	for _, s := range m.Species {
		switch {
		case names[s.Name]:
			return fmt.Errorf("idealgas: duplicate species %q", s.Name)
		case s.MolecularWeight <= 0:
			return fmt.Errorf("idealgas: species %q: molecular weight %g must be positive", s.Name, s.MolecularWeight)
		case s.Lewis <= 0:
			return fmt.Errorf("idealgas: species %q: Lewis number %g must be positive", s.Name, s.Lewis)
		case s.CpA+s.CpB*m.TMin <= 0 || s.CpA+s.CpB*m.TMax <= 0:
			return fmt.Errorf("idealgas: species %q: specific heat is not positive over [%g, %g] K", s.Name, m.TMin, m.TMax)
		}
		names[s.Name] = true
	}
	return nil
}

// NumSpecies returns the number of species.
func (m *Mixture) NumSpecies() int { return len(m.Species) }

// SpeciesNames returns the species names.
func (m *Mixture) SpeciesNames() []string {
	o := make([]string, len(m.Species))
	for i, s := range m.Species {
		o[i] = s.Name
	}
	return o
}

// Index returns the index of the named species, or -1.
func (m *Mixture) Index(name string) int {
	for i, s := range m.Species {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// MolecularWeights returns the species molar masses [g/mol].
func (m *Mixture) MolecularWeights() []float64 {
	o := make([]float64, len(m.Species))
	for i, s := range m.Species {
		o[i] = s.MolecularWeight
	}
	return o
}

// SpeciesCp fills cp with the species specific heats [J/kg/K].
func (m *Mixture) SpeciesCp(T float64, cp []float64) {
	for i, s := range m.Species {
		cp[i] = s.CpA + s.CpB*T
	}
}

// SpeciesEnthalpies fills h with the species specific enthalpies [J/kg].
func (m *Mixture) SpeciesEnthalpies(T float64, h []float64) {
	for i, s := range m.Species {
		h[i] = s.enthalpy(T, m.TRef)
	}
}

func (s Species) enthalpy(T, TRef float64) float64 {
	return s.H0 + s.CpA*(T-TRef) + 0.5*s.CpB*(T*T-TRef*TRef)
}

// CpMix returns the mixture specific heat [J/kg/K].
func (m *Mixture) CpMix(T float64, Y []float64) float64 {
	var cp float64
	for i, s := range m.Species {
		cp += Y[i] * (s.CpA + s.CpB*T)
	}
	return cp
}

// HFromTY returns the mixture specific enthalpy [J/kg].
func (m *Mixture) HFromTY(T float64, Y []float64) float64 {
	var h float64
	for i, s := range m.Species {
		h += Y[i] * s.enthalpy(T, m.TRef)
	}
	return h
}

// TFromHY returns the temperature in [TMin, TMax] at which the mixture
// has specific enthalpy H. It uses Newton iteration safeguarded by
// bisection, starting from Tguess.
func (m *Mixture) TFromHY(H float64, Y []float64, Tguess float64) (float64, error) {
	if math.IsNaN(H) {
		return 0, fmt.Errorf("idealgas: enthalpy is NaN")
	}
	lo, hi := m.TMin, m.TMax
	flo := m.HFromTY(lo, Y) - H
	fhi := m.HFromTY(hi, Y) - H
	if flo > 0 || fhi < 0 {
		return 0, fmt.Errorf("idealgas: no temperature in [%g, %g] K gives h = %g J/kg", lo, hi, H)
	}
	T := Tguess
	if !(T > lo && T < hi) {
		T = 0.5 * (lo + hi)
	}
	for iter := 0; iter < m.MaxIter; iter++ {
		f := m.HFromTY(T, Y) - H
		if f > 0 {
			hi = T
		} else {
			lo = T
		}
		cp := m.CpMix(T, Y)
		Tnew := T - f/cp
		if !(cp > 0) || Tnew <= lo || Tnew >= hi {
			Tnew = 0.5 * (lo + hi)
		}
		if math.Abs(Tnew-T) <= m.Tol*T {
			return Tnew, nil
		}
		T = Tnew
	}
	return 0, fmt.Errorf("idealgas: temperature for h = %g J/kg did not converge in %d iterations", H, m.MaxIter)
}

// Coefficients fills rhoD with the density-weighted species
// diffusivities [kg/m/s] and returns the thermal conductivity [W/m/K].
func (m *Mixture) Coefficients(T, rho float64, Y []float64, rhoD []float64) float64 {
	lambda := m.Lambda0 * math.Pow(T/m.T0, m.LambdaExp)
	cp := m.CpMix(T, Y)
	for i, s := range m.Species {
		rhoD[i] = lambda / (cp * s.Lewis)
	}
	return lambda
}
