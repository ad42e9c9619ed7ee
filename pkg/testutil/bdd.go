package testutil

import "testing"

// Scenario groups Given/When/Then steps under one named subtest. Steps nest,
// so a failing Then reports the full path that led to it.
func Scenario(t *testing.T, name string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Scenario: ", name, fn)
}

func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given ", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When ", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then ", desc, fn)
}

// And continues the previous step at the same depth.
func And(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "And ", desc, fn)
}

// step stops the enclosing scenario once a step fails, since later steps
// depend on the state the failed one was meant to set up.
func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	if !t.Run(keyword+desc, fn) {
		t.FailNow()
	}
}
