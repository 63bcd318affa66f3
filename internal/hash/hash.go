/*
Copyright © 2019 the InMAP authors.
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
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.*/

// Package hash computes fingerprints of run configurations, so that
// log files of runs with identical settings can be matched up.
package hash

import (
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// printer writes map entries in sorted order, so that the output does not
// depend on map iteration order.
var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Fingerprint returns a hexadecimal key identifying the contents of
// objects. Equal contents give equal keys.
func Fingerprint(objects ...interface{}) string {
	h := fnv.New64a()
	for _, o := range objects {
		printer.Fprintf(h, "%#v\n", o)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
