// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import "testing"

type testOutputter struct {
	level    Level
	messages map[Level][]string
}

func (t *testOutputter) Level() Level { return t.level }

func (t *testOutputter) Output(calldepth int, level Level, s string) error {
	if t.messages == nil {
		t.messages = make(map[Level][]string)
	}
	t.messages[level] = append(t.messages[level], s)
	return nil
}

func TestAt(t *testing.T) {
	save := SetOutputter(&testOutputter{level: Info})
	defer SetOutputter(save)
	for _, c := range []struct {
		level Level
		want  bool
	}{
		{Error, true},
		{Info, true},
		{Debug, false},
	} {
		if got, want := At(c.level), c.want; got != want {
			t.Errorf("level %s: got %v, want %v", c.level, got, want)
		}
	}
}

func TestLevels(t *testing.T) {
	outputter := &testOutputter{level: Info}
	save := SetOutputter(outputter)
	defer SetOutputter(save)

	Printf("hello %s", "world")
	Debug.Printf("dropped")
	Error.Print("oops")

	if got, want := len(outputter.messages[Info]), 1; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := outputter.messages[Info][0], "hello world"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := len(outputter.messages[Debug]), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := outputter.messages[Error][0], "oops"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
