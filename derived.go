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
	"fmt"
	"math"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/unit"
)

// typicalYMin is the smallest typical mass fraction, so that species
// absent from the initial state still have a usable scale.
const typicalYMin = 1.e-10

// TypicalValues returns the reference magnitude of each diffusion
// equation: mass fraction for the species, then temperature in TempMode
// or specific enthalpy in EnthalpyMode. Configured values that are not
// positive are replaced by the maximum magnitude over the valid region
// of state.
func TypicalValues(c TypicalConfig, state *Field, l StateLayout, mode DDMode) ([]float64, error) {
	n := l.NSpecies
	if c.Species != nil && len(c.Species) != n {
		return nil, configErrorf("%d typical species values for %d species", len(c.Species), n)
	}
	pick := func(v float64, comp int) float64 {
		if v > 0 {
			return v
		}
		return state.MaxAbs(comp)
	}
	rho := pick(c.Density, Density)
	o := make([]float64, n+1)
	for k := 0; k < n; k++ {
		var v float64
		if c.Species != nil {
			v = c.Species[k]
		}
		if v <= 0 {
			v = math.Max(state.MaxAbs(l.Spec(k))/rho, typicalYMin)
		}
		o[k] = v
	}
	if mode == TempMode {
		o[n] = pick(c.Temp, Temp)
	} else {
		o[n] = pick(c.RhoH, RhoH) / rho
	}
	for eq, v := range o {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, configErrorf("typical value for equation %d is %g; it must be positive", eq, v)
		}
	}
	return o, nil
}

// CalcDivU returns the divergence constraint of the low Mach number
// equations,
//
//	S = D_T/(ρ c_p T) - Σ h_k ω̇_k/(ρ c_p T) + Σ (W̄/W_k)(D_k + ω̇_k)/ρ,
//
// where D_T and D_k are the temperature and species diffusion terms and
// ω̇_k the species production rates.
func CalcDivU(state *Field, terms *Terms, wdot *Field, l StateLayout, th Thermo) *Field {
	n := l.NSpecies
	g := state.Geom
	S := NewField(g, 1, 0)
	mw := th.MolecularWeights()
	Y := make([]float64, n)
	h := make([]float64, n)
	for j := 0; j < g.Ny; j++ {
		for i := 0; i < g.Nx; i++ {
			l.massFractions(state, i, j, Y)
			rho := state.At(Density, i, j)
			T := state.At(Temp, i, j)
			rhoCpT := rho * th.CpMix(T, Y) * T
			th.SpeciesEnthalpies(T, h)
			wbar := meanMolecularWeight(Y, mw)
			s := terms.DT.At(0, i, j) / rhoCpT
			for k := 0; k < n; k++ {
				w := wdot.At(k, i, j)
				s -= h[k] * w / rhoCpT
				s += wbar / mw[k] * (terms.D.At(k, i, j) + w) / rho
			}
			S.Set(0, i, j, s)
		}
	}
	return S
}

// CalcDsDt returns (sNew - sOld)/dt.
func CalcDsDt(sOld, sNew *Field, dt float64) *Field {
	o := sNew.Copy()
	o.AddScaled(-1, sOld)
	o.Scale(1 / dt)
	return o
}

// Stats summarizes the thermodynamic state of a field.
type Stats struct {
	TMin, TMax, TMean    *unit.Unit
	RhoMin, RhoMax       *unit.Unit
	RhoHMin, RhoHMax     *unit.Unit
	RhoRTMin, RhoRTMax   *unit.Unit
	NegativeSpecies      []string
	MinMassFraction      float64
	MinMassFractionIndex int
}

// TemperatureStats returns the extremes of temperature, density,
// enthalpy and thermodynamic pressure over the valid region of state,
// along with the species whose mass fraction is negative somewhere.
func TemperatureStats(state *Field, l StateLayout, th Thermo) *Stats {
	T := state.ValidValues(Temp)
	rho := state.ValidValues(Density)
	rhoH := state.ValidValues(RhoH)
	rhoRT := state.ValidValues(RhoRT)
	s := &Stats{
		TMin:     unit.New(stats.StatsMin(T), unit.Kelvin),
		TMax:     unit.New(stats.StatsMax(T), unit.Kelvin),
		TMean:    unit.New(stats.StatsMean(T), unit.Kelvin),
		RhoMin:   unit.New(stats.StatsMin(rho), unit.KilogramPerMeter3),
		RhoMax:   unit.New(stats.StatsMax(rho), unit.KilogramPerMeter3),
		RhoHMin:  unit.New(stats.StatsMin(rhoH), unit.Pascal),
		RhoHMax:  unit.New(stats.StatsMax(rhoH), unit.Pascal),
		RhoRTMin: unit.New(stats.StatsMin(rhoRT), unit.Pascal),
		RhoRTMax: unit.New(stats.StatsMax(rhoRT), unit.Pascal),
	}
	names := th.SpeciesNames()
	s.MinMassFraction = math.Inf(1)
	for k := 0; k < l.NSpecies; k++ {
		rhoY := state.ValidValues(l.Spec(k))
		minY := math.Inf(1)
		for c, v := range rhoY {
			minY = math.Min(minY, v/rho[c])
		}
		if minY < s.MinMassFraction {
			s.MinMassFraction, s.MinMassFractionIndex = minY, k
		}
		if minY < 0 {
			s.NegativeSpecies = append(s.NegativeSpecies, names[k])
		}
	}
	return s
}

func (s *Stats) String() string {
	return fmt.Sprintf("T: [%v, %v]; ρ: [%v, %v]; ρh: [%v, %v]; negative species: %v",
		s.TMin, s.TMax, s.RhoMin, s.RhoMax, s.RhoHMin, s.RhoHMax, s.NegativeSpecies)
}
