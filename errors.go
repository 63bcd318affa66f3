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
	"fmt"
)

// Errors that abort a time step or a run. Numerical non-convergence of
// the diffusion solve is not among them: it is reported through Status.
var (
	// ErrKinetics indicates that the reaction oracle could not find a
	// valid state.
	ErrKinetics = errors.New("lmc: kinetics failure")

	// ErrThermo indicates that no temperature satisfies a given
	// enthalpy and composition.
	ErrThermo = errors.New("lmc: no valid temperature for enthalpy and composition")

	// ErrConfig indicates inconsistent configuration, detected at setup.
	ErrConfig = errors.New("lmc: configuration inconsistency")
)

// StepError records the time step during which a fatal error occurred.
type StepError struct {
	Step int
	Time float64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("lmc: step %d (t=%g s): %v", e.Step, e.Time, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConfig}, args...)...)
}
