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

import "fmt"

// Reactor advances the chemistry of a whole state field.
type Reactor interface {
	// AdvanceReaction integrates the chemistry over dt starting from old,
	// with the constant forcing given for each conserved equation. It
	// returns the new state and the reaction rate for each conserved
	// equation, defined as (U_new - U_old)/dt - forcing.
	AdvanceReaction(old, forcing *Field, dt float64) (state, rate *Field, err error)

	// ProductionRates fills wdot, one component per species, with the
	// instantaneous species production rates of state.
	ProductionRates(state, wdot *Field)
}

// KineticsReactor is a Reactor that advances every cell independently
// with Kinetics. Kinetics must be safe for concurrent use.
type KineticsReactor struct {
	Kinetics Kinetics
	Layout   StateLayout
	Patches  []Patch
}

// AdvanceReaction implements Reactor.
func (r *KineticsReactor) AdvanceReaction(old, forcing *Field, dt float64) (*Field, *Field, error) {
	n := r.Layout.NSpecies
	if forcing.NComp != r.Layout.NEq() {
		return nil, nil, configErrorf("reaction forcing has %d components; want %d", forcing.NComp, r.Layout.NEq())
	}
	state := old.Copy()
	rate := NewField(old.Geom, r.Layout.NEq(), 0)
	errs := make([]error, len(r.Patches))
	runPatches(r.Patches, func(ip int, p Patch) {
		rhoY := make([]float64, n)
		fY := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				for k := range rhoY {
					rhoY[k] = old.At(r.Layout.Spec(k), i, j)
					fY[k] = forcing.At(k, i, j)
				}
				fH := forcing.At(n, i, j)
				rhoH := old.At(RhoH, i, j)
				rhoHNew, T, err := r.Kinetics.Advance(rhoY, rhoH, old.At(Temp, i, j), fY, fH, dt)
				if err != nil {
					errs[ip] = fmt.Errorf("%w: cell (%d,%d): %v", ErrKinetics, i, j, err)
					return
				}
				var rho float64
				for k, v := range rhoY {
					rate.Set(k, i, j, (v-old.At(r.Layout.Spec(k), i, j))/dt-fY[k])
					state.Set(r.Layout.Spec(k), i, j, v)
					rho += v
				}
				rate.Set(n, i, j, (rhoHNew-rhoH)/dt-fH)
				state.Set(RhoH, i, j, rhoHNew)
				state.Set(Density, i, j, rho)
				state.Set(Temp, i, j, T)
			}
		}
	})
	if err := firstError(errs); err != nil {
		return nil, nil, err
	}
	return state, rate, nil
}

// ProductionRates implements Reactor.
func (r *KineticsReactor) ProductionRates(state, wdot *Field) {
	n := r.Layout.NSpecies
	runPatches(r.Patches, func(_ int, p Patch) {
		rhoY := make([]float64, n)
		w := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				for k := range rhoY {
					rhoY[k] = state.At(r.Layout.Spec(k), i, j)
				}
				r.Kinetics.ProductionRates(rhoY, state.At(Temp, i, j), w)
				for k, v := range w {
					wdot.Set(k, i, j, v)
				}
			}
		}
	})
}

// NullReactor is a Reactor for non-reacting flows. It applies the forcing
// over dt and recovers the temperature from the new enthalpy.
type NullReactor struct {
	Layout  StateLayout
	Thermo  Thermo
	Patches []Patch
}

// AdvanceReaction implements Reactor. The returned rate is zero.
func (r *NullReactor) AdvanceReaction(old, forcing *Field, dt float64) (*Field, *Field, error) {
	if forcing.NComp != r.Layout.NEq() {
		return nil, nil, configErrorf("reaction forcing has %d components; want %d", forcing.NComp, r.Layout.NEq())
	}
	state := old.Copy()
	for eq := 0; eq < r.Layout.NEq(); eq++ {
		c := r.Layout.EqComp(eq)
		for j := 0; j < old.Geom.Ny; j++ {
			for i := 0; i < old.Geom.Nx; i++ {
				state.Add(c, i, j, dt*forcing.At(eq, i, j))
			}
		}
	}
	SetRhoToSpeciesSum(state, r.Layout, false)
	if err := ComputeTemperature(state, r.Layout, r.Thermo, r.Patches); err != nil {
		return nil, nil, err
	}
	return state, NewField(old.Geom, r.Layout.NEq(), 0), nil
}

// ProductionRates implements Reactor.
func (r *NullReactor) ProductionRates(_, wdot *Field) { wdot.Zero() }
