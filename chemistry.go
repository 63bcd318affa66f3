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

// Thermo provides species thermodynamic properties and the inversion
// between temperature and specific enthalpy.
type Thermo interface {
	// NumSpecies returns the number of chemical species.
	NumSpecies() int

	// SpeciesNames returns the species names in array order.
	SpeciesNames() []string

	// MolecularWeights returns the species molar masses [g/mol].
	MolecularWeights() []float64

	// CpMix returns the mixture specific heat [J/kg/K].
	CpMix(T float64, Y []float64) float64

	// SpeciesCp fills cp with the species specific heats [J/kg/K].
	SpeciesCp(T float64, cp []float64)

	// SpeciesEnthalpies fills h with the species specific enthalpies [J/kg].
	SpeciesEnthalpies(T float64, h []float64)

	// HFromTY returns the mixture specific enthalpy [J/kg].
	HFromTY(T float64, Y []float64) float64

	// TFromHY returns the temperature at which the mixture has specific
	// enthalpy H, starting the search from Tguess. It returns an error
	// if there is no physically valid temperature.
	TFromHY(H float64, Y []float64, Tguess float64) (float64, error)
}

// Transport provides mixture-averaged transport coefficients.
type Transport interface {
	// Coefficients fills rhoD with the product of density and the
	// species mixture-averaged diffusivity [kg/m/s] and returns the
	// thermal conductivity [W/m/K].
	Coefficients(T, rho float64, Y []float64, rhoD []float64) (lambda float64)
}

// Kinetics advances the chemistry of a single cell.
type Kinetics interface {
	// Advance integrates d(ρY)/dt = ω̇(ρY, T) + fY and d(ρh)/dt = fH over
	// dt. rhoY is updated in place; the new ρh and temperature are
	// returned. T is the temperature at the start of the interval.
	Advance(rhoY []float64, rhoH, T float64, fY []float64, fH, dt float64) (rhoHNew, TNew float64, err error)

	// ProductionRates fills wdot with the instantaneous species
	// production rates [kg/m³/s].
	ProductionRates(rhoY []float64, T float64, wdot []float64)
}
