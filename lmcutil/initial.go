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

package lmcutil

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/pinebai/lmc"
)

// expressionFunctions are the functions available in initial condition
// expressions.
var expressionFunctions = map[string]govaluate.ExpressionFunction{
	"exp":  unary("exp", math.Exp),
	"tanh": unary("tanh", math.Tanh),
	"sin":  unary("sin", math.Sin),
	"cos":  unary("cos", math.Cos),
	"sqrt": unary("sqrt", math.Sqrt),
	"abs":  unary("abs", math.Abs),
	"pow":  binary("pow", math.Pow),
	"min":  binary("min", math.Min),
	"max":  binary("max", math.Max),
}

func unary(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		x, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("argument of function '%s' is not a number", name)
		}
		return f(x), nil
	}
}

func binary(name string, f func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 2 {
			return nil, fmt.Errorf("got %d arguments for function '%s', but needs 2", len(arg), name)
		}
		x, ok1 := arg[0].(float64)
		y, ok2 := arg[1].(float64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("arguments of function '%s' are not numbers", name)
		}
		return f(x, y), nil
	}
}

// InitialConditions holds the expressions that define the initial state.
type InitialConditions struct {
	// Y maps species names to mass fraction expressions.
	Y map[string]string

	// T, U and V are the temperature and velocity expressions.
	T, U, V string
}

// Compile returns an initial condition function for the species of th on
// a domain of size lx × ly [m]. Expressions may use the cell center
// coordinates x and y and the domain size Lx and Ly. Mass fractions are
// normalized to sum to one.
func (ic InitialConditions) Compile(th lmc.Thermo, lx, ly float64) (lmc.InitialCondition, error) {
	if len(ic.Y) == 0 {
		return nil, fmt.Errorf("lmcutil: IC.Y must give the initial mass fraction of at least one species")
	}
	parse := func(name, expr string) (*govaluate.EvaluableExpression, error) {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, expressionFunctions)
		if err != nil {
			return nil, fmt.Errorf("lmcutil: parsing initial condition %s = %q: %v", name, expr, err)
		}
		for _, v := range e.Vars() {
			switch v {
			case "x", "y", "Lx", "Ly":
			default:
				return nil, fmt.Errorf("lmcutil: initial condition %s uses unknown variable %q", name, v)
			}
		}
		return e, nil
	}
	names := th.SpeciesNames()
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	yExpr := make([]*govaluate.EvaluableExpression, len(names))
	for name, expr := range ic.Y {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("lmcutil: initial condition for unknown species %q", name)
		}
		e, err := parse("IC.Y."+name, expr)
		if err != nil {
			return nil, err
		}
		yExpr[i] = e
	}
	tExpr, err := parse("IC.T", ic.T)
	if err != nil {
		return nil, err
	}
	vExpr := make([]*govaluate.EvaluableExpression, 2)
	for d, expr := range []string{ic.U, ic.V} {
		if expr == "" {
			expr = "0"
		}
		if vExpr[d], err = parse([]string{"IC.U", "IC.V"}[d], expr); err != nil {
			return nil, err
		}
	}

	return func(x, y float64) ([]float64, float64, [2]float64, error) {
		params := map[string]interface{}{"x": x, "y": y, "Lx": lx, "Ly": ly}
		Y := make([]float64, len(names))
		var sum float64
		for i, e := range yExpr {
			if e == nil {
				continue
			}
			v, err := evaluate(e, params)
			if err != nil {
				return nil, 0, [2]float64{}, fmt.Errorf("species %s: %v", names[i], err)
			}
			if v < 0 {
				return nil, 0, [2]float64{}, fmt.Errorf("species %s: negative mass fraction %g", names[i], v)
			}
			Y[i] = v
			sum += v
		}
		if !(sum > 0) {
			return nil, 0, [2]float64{}, fmt.Errorf("mass fractions sum to %g", sum)
		}
		for i := range Y {
			Y[i] /= sum
		}
		T, err := evaluate(tExpr, params)
		if err != nil {
			return nil, 0, [2]float64{}, fmt.Errorf("temperature: %v", err)
		}
		var u [2]float64
		for d, e := range vExpr {
			if u[d], err = evaluate(e, params); err != nil {
				return nil, 0, [2]float64{}, fmt.Errorf("velocity: %v", err)
			}
		}
		return Y, T, u, nil
	}, nil
}

func evaluate(e *govaluate.EvaluableExpression, params map[string]interface{}) (float64, error) {
	r, err := e.Evaluate(params)
	if err != nil {
		return 0, err
	}
	v, ok := r.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q gives %v, which is not a number", e.String(), r)
	}
	return v, nil
}
