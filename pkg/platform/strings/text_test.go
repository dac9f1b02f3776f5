package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseSpace(t *testing.T) {
	tests := map[string]string{
		"  New\t\tYork ":  "New York",
		" \n ":            "",
		"Λευκωσία   1010": "Λευκωσία 1010",
		"a  b":            "a b",
	}
	for in, want := range tests {
		assert.Equal(t, want, CollapseSpace(in), "input %q", in)
	}
}

func TestSameText(t *testing.T) {
	assert.True(t, SameText("BSc  Physics", " BSc Physics"))
	assert.False(t, SameText("BSc Physics", "bsc physics"))
}

func TestUniqueFields(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nothing in", input: nil, want: nil},
		{name: "only blanks", input: []string{"", " \t"}, want: nil},
		{name: "first seen order", input: []string{"title", "year", "title"}, want: []string{"title", "year"}},
		{name: "padding does not make a new field", input: []string{" year", "year\n"}, want: []string{"year"}},
		{name: "case is significant", input: []string{"Title", "title"}, want: []string{"Title", "title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UniqueFields(tt.input))
		})
	}
}
