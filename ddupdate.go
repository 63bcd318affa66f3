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

// SplitUpdate solves the diffusion system one block at a time on the
// finest level only. The species are relaxed first with uncorrected
// fluxes and enthalpy held fixed. The species are then reset from the
// corrected fluxes so that mass is conserved. Finally enthalpy is solved
// implicitly with the composition held fixed, or updated explicitly if
// Diffusion.ImplicitEnthalpy is false. With theta == 0 the update is
// fully explicit.
func (m *MCDD) SplitUpdate(state, rhs *Field, theta, dt, time float64) (*DiffusionResult, error) {
	if theta == 0 {
		return m.explicit(state, rhs, time)
	}
	n := m.layout.NSpecies
	S := m.mg.State()
	m.load(S, state, rhs)
	if err := m.loadRhs(S, rhs, EnthalpyMode); err != nil {
		return nil, err
	}
	if err := m.op.UpdateCoefficients(S, time); err != nil {
		return nil, err
	}

	skip := make([]bool, n+1)
	skip[n] = true
	ps := m.params(theta, dt, time, EnthalpyMode, skip)
	ps.Uncorrected = true
	cycles, err := m.iterate(&ps, time)
	if err != nil {
		return nil, err
	}
	m.report(&ps, cycles)
	if err := m.conserveSpecies(S, rhs, theta*dt, time); err != nil {
		return nil, err
	}

	status, maxRes := ps.Status, ps.MaxRes
	if m.cfg.Diffusion.ImplicitEnthalpy {
		skip = make([]bool, n+1)
		for k := 0; k < n; k++ {
			skip[k] = true
		}
		if err := m.op.UpdateCoefficients(S, time); err != nil {
			return nil, err
		}
		ph := m.params(theta, dt, time, EnthalpyMode, skip)
		c, err := m.iterate(&ph, time)
		if err != nil {
			return nil, err
		}
		m.report(&ph, c)
		cycles += c
		status = worseStatus(ps.Status, ph.Status)
		if maxRes != nil && ph.MaxRes != nil {
			maxRes[n] = ph.MaxRes[n]
		}
	}

	res, err := m.store(state, rhs, S, theta, dt, time)
	if err != nil {
		return nil, err
	}
	res.Status, res.Cycles, res.MaxRes = status, cycles, maxRes
	return res, nil
}

// conserveSpecies replaces the species in S by rhs + θΔt·(-∇·F) with the
// corrected fluxes of S and resets the density to their sum.
func (m *MCDD) conserveSpecies(S, rhs *Field, thetaDt, time float64) error {
	n := m.layout.NSpecies
	if err := m.op.UpdateCoefficients(S, time); err != nil {
		return err
	}
	L := NewField(m.geom, n+1, 0)
	if err := m.op.Apply(L, S, ApplyOptions{Mode: EnthalpyMode, Time: time}); err != nil {
		return err
	}
	runPatches(m.patches, func(_ int, p Patch) {
		rhoY := make([]float64, n)
		for j := p.JLo; j < p.JHi; j++ {
			for i := p.ILo; i < p.IHi; i++ {
				var rho float64
				for k := range rhoY {
					rhoY[k] = rhs.At(k, i, j) + thetaDt*L.At(k, i, j)
					rho += rhoY[k]
				}
				for k, v := range rhoY {
					S.Set(k, i, j, v/rho)
				}
				S.Set(compRho(n), i, j, rho)
			}
		}
	})
	return syncCompositeTemperature(S, n, m.thermo, m.patches)
}

// worseStatus returns InProgress if either solve is unfinished, then
// Stalled if either stalled.
func worseStatus(a, b Status) Status {
	switch {
	case a == InProgress || b == InProgress:
		return InProgress
	case a == Stalled || b == Stalled:
		return Stalled
	}
	return Solved
}
