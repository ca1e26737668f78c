// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wal

import "testing"

func TestAnchorCompare(t *testing.T) {
	for _, c := range []struct {
		a, b Anchor
		want int
	}{
		{Anchor{1, 12, 0}, Anchor{1, 12, 0}, 0},
		{Anchor{1, 12, 5}, Anchor{1, 12, 9}, 0}, // LSN takes no part in ordering
		{Anchor{1, 12, 0}, Anchor{1, 13, 0}, -1},
		{Anchor{1, 999, 0}, Anchor{2, 12, 0}, -1},
		{Anchor{3, 12, 0}, Anchor{2, 999, 0}, 1},
		{Anchor{2, 40, 0}, Anchor{2, 12, 0}, 1},
	} {
		if got, want := c.a.Compare(c.b), c.want; got != want {
			t.Errorf("%v vs %v: got %v, want %v", c.a, c.b, got, want)
		}
		if got, want := c.b.Compare(c.a), -c.want; got != want {
			t.Errorf("%v vs %v: got %v, want %v", c.b, c.a, got, want)
		}
	}
}
