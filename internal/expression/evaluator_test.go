package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	t.Run("joins nested keys with dots", func(t *testing.T) {
		obj := map[string]any{
			"site": map[string]any{
				"inputData": map[string]any{
					"index": map[string]any{
						"formData": map[string]any{"flag": "yes"},
					},
				},
			},
			"top": 1,
		}

		flat := Flatten(obj, "")
		assert.Equal(t, "yes", flat["site.inputData.index.formData.flag"])
		assert.Equal(t, 1, flat["top"])
		assert.Len(t, flat, 2)
	})

	t.Run("applies prefix", func(t *testing.T) {
		flat := Flatten(map[string]any{"a": map[string]any{"b": true}}, "root")
		assert.Equal(t, true, flat["root.a.b"])
	})

	t.Run("keeps arrays as terminal values", func(t *testing.T) {
		items := []any{map[string]any{"title": "BSc"}}
		flat := Flatten(map[string]any{"page": map[string]any{"items": items}}, "")
		assert.Equal(t, items, flat["page.items"])
		_, descended := flat["page.items.0.title"]
		assert.False(t, descended)
	})

	t.Run("empty nested objects contribute nothing", func(t *testing.T) {
		flat := Flatten(map[string]any{"a": map[string]any{}}, "")
		assert.Empty(t, flat)
	})

	t.Run("flatten then lookup returns the original leaf", func(t *testing.T) {
		leaves := map[string]any{
			"x.y.z": "leaf",
			"x.n":   42.0,
			"b":     false,
		}
		obj := map[string]any{
			"x": map[string]any{"y": map[string]any{"z": "leaf"}, "n": 42.0},
			"b": false,
		}
		flat := Flatten(obj, "")
		for path, want := range leaves {
			got, err := Evaluate(`dataLayer["`+path+`"]`, flat)
			require.NoError(t, err)
			assert.Equal(t, want, got, path)
		}
	})
}

func TestEvaluateComparisons(t *testing.T) {
	ctx := map[string]any{
		"site.flag": "yes",
		"age":       "20",
		"count":     3,
		"empty":     "",
		"items":     []any{"a", "b"},
		"nested":    map[string]any{"inner": "v"},
	}

	cases := []struct {
		name string
		expr string
		want any
	}{
		{"bracket lookup equality", `dataLayer["site.flag"]=="yes"`, true},
		{"bracket lookup inequality", `dataLayer["site.flag"] != "yes"`, false},
		{"single quotes", `dataLayer['site.flag'] === 'yes'`, true},
		{"dot lookup", `dataLayer.count === 3`, true},
		{"loose number string", `dataLayer.age == 20`, true},
		{"strict number string", `dataLayer.age === 20`, false},
		{"relational coerces numeric strings", `dataLayer.age >= 18`, true},
		{"relational on strings is lexical", `"b" > "a"`, true},
		{"relational with NaN is false", `dataLayer["site.flag"] > 1`, false},
		{"missing key is null-ish", `dataLayer.missing == null`, true},
		{"missing key strictly undefined", `dataLayer.missing === undefined`, true},
		{"missing key not strictly null", `dataLayer.missing === null`, false},
		{"and returns right operand", `dataLayer.count && dataLayer["site.flag"]`, "yes"},
		{"and short circuits on falsy", `dataLayer.empty && dataLayer.count`, ""},
		{"or returns first truthy", `dataLayer.empty || "fallback"`, "fallback"},
		{"not", `!dataLayer.empty`, true},
		{"parentheses", `!(dataLayer.count == 3 && dataLayer.age < 10)`, true},
		{"array length", `dataLayer.items.length == 2`, true},
		{"array index", `dataLayer.items[1]`, "b"},
		{"nested member", `dataLayer.nested.inner`, "v"},
		{"negative numbers", `-1 < dataLayer.count`, true},
		{"bool vs string is not equal", `true == "true"`, false},
		{"missing lookup yields nil", `dataLayer.nope`, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.expr, ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateRejectsUnsafeOrInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		expr string
	}{
		{"empty", ``},
		{"loop", `while(true){}`},
		{"function call", `dataLayer.toString()`},
		{"global access", `process.exit(1)`},
		{"dynamic code", `eval("1")`},
		{"timers", `setTimeout(dataLayer, 1)`},
		{"assignment", `dataLayer.x = 1`},
		{"unterminated string", `dataLayer["x]`},
		{"dangling operator", `dataLayer.x ==`},
		{"missing bracket", `dataLayer["x"`},
		{"bitwise operator", `dataLayer.x & 1`},
		{"member of undefined", `dataLayer.missing.deeper`},
		{"trailing tokens", `"a" "b"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.expr, map[string]any{})
			assert.Error(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestEvaluateCannotReachHostValues(t *testing.T) {
	for _, expr := range []string{
		`dataLayer.constructor`,
		`dataLayer["__proto__"]`,
		`dataLayer.prototype`,
	} {
		got, err := Evaluate(expr, map[string]any{"a": 1})
		require.NoError(t, err, expr)
		assert.Nil(t, got, expr)
	}
}

func TestEvaluateWithFlattening(t *testing.T) {
	obj := map[string]any{"site": map[string]any{"flag": "no"}}

	got, err := EvaluateWithFlattening(`dataLayer["site.flag"] == "yes"`, obj, "")
	require.NoError(t, err)
	assert.Equal(t, false, got)

	got, err = EvaluateWithFlattening(`dataLayer["s.site.flag"] == "no"`, obj, "s")
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestCompileIsReusable(t *testing.T) {
	program, err := Compile(`  dataLayer.n > 1  `)
	require.NoError(t, err)
	assert.Equal(t, "dataLayer.n > 1", program.Source())

	first, err := program.Eval(map[string]any{"n": 2})
	require.NoError(t, err)
	second, err := program.Eval(map[string]any{"n": 0})
	require.NoError(t, err)
	assert.Equal(t, true, first)
	assert.Equal(t, false, second)
}

func TestNestingLimit(t *testing.T) {
	expr := ""
	for i := 0; i < maxDepth+1; i++ {
		expr += "!"
	}
	_, err := Evaluate(expr+"true", nil)
	assert.Error(t, err)
}
