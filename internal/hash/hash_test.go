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

package hash

import "testing"

type run struct {
	Name    string
	Species map[string]float64
	Next    *run
}

func TestFingerprint(t *testing.T) {
	a := run{Name: "a", Species: map[string]float64{"F": 1, "P": 2, "N2": 3, "O2": 4}, Next: &run{Name: "b"}}
	b := run{Name: "a", Species: map[string]float64{"O2": 4, "N2": 3, "P": 2, "F": 1}, Next: &run{Name: "b"}}
	ka := Fingerprint(a)
	for i := 0; i < 10; i++ {
		if kb := Fingerprint(b); kb != ka {
			t.Fatalf("equal contents give keys %s and %s", ka, kb)
		}
	}
	if len(ka) != 16 {
		t.Errorf("key %q is not 16 hexadecimal digits", ka)
	}
	b.Next.Name = "c"
	if Fingerprint(b) == ka {
		t.Error("different contents give the same key")
	}
	if Fingerprint(a, 1) == ka {
		t.Error("an extra object does not change the key")
	}
}
