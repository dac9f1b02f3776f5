package testutil

import "testing"

// Step runs fn as a subtest named "<keyword> <desc>".
type Step func(t *testing.T, desc string, fn func(t *testing.T)) bool

func step(keyword string) Step {
	return func(t *testing.T, desc string, fn func(t *testing.T)) bool {
		t.Helper()
		return t.Run(keyword+" "+desc, fn)
	}
}

// Given, When and Then label the phases of a scenario test.
var (
	Given = step("Given")
	When  = step("When")
	Then  = step("Then")
)
