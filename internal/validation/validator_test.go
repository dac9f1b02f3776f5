package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
)

func rule(check string, value any, msg string) site.Validation {
	return site.Validation{Check: check, Params: site.ValidationParams{
		CheckValue: value,
		Message:    site.LocalizedText{"en": msg},
	}}
}

func input(name string, rules ...site.Validation) site.Element {
	return site.Element{Element: "textInput", Params: site.Params{ID: name, Name: name}, Validations: rules}
}

func TestValidateFormElements(t *testing.T) {
	elements := []site.Element{
		input("fullName", rule(CheckRequired, nil, "name required"), rule(CheckRegCheck, "name", "bad name")),
		input("email", rule(CheckRequired, nil, "email required"), rule(CheckRegCheck, "email", "bad email")),
		input("notes", rule(CheckLength, 5, "too long")),
		input("phone", rule(CheckRegCheck, "phoneCY", "bad phone")),
	}

	t.Run("valid data has no errors", func(t *testing.T) {
		errs := ValidateFormElements(elements, map[string]any{
			"fullName": "Μαρία O'Neil",
			"email":    "a@b.cy",
			"notes":    "short",
			"phone":    "99 123456",
		})
		assert.Empty(t, errs)
	})

	t.Run("first failing rule wins and order is kept", func(t *testing.T) {
		errs := ValidateFormElements(elements, map[string]any{
			"email": "not-an-email",
			"notes": "far too long",
			"phone": "12345678",
		})
		require.Len(t, errs, 4)
		assert.Equal(t, "name required", errs["fullName"].Message["en"])
		assert.Equal(t, "bad email", errs["email"].Message["en"])

		summary := errs.Summary()
		ids := make([]string, 0, len(summary))
		for _, fe := range summary {
			ids = append(ids, fe.ID)
		}
		assert.Equal(t, []string{"fullName", "email", "notes", "phone"}, ids)
	})

	t.Run("optional empty fields skip format rules", func(t *testing.T) {
		errs := ValidateFormElements(elements, map[string]any{"fullName": "Ann", "email": "a@b.cy", "phone": "  "})
		assert.Empty(t, errs)
	})
}

func TestConditionalElements(t *testing.T) {
	radios := site.Element{
		Element: "radios",
		Params: site.Params{
			Name: "hasCert",
			Items: []site.Item{
				{Value: "yes", ConditionalElements: []site.Element{input("certNumber", rule(CheckRequired, nil, "cert required"))}},
				{Value: "no"},
			},
		},
		Validations: []site.Validation{rule(CheckRequired, nil, "choose"), rule(CheckValid, nil, "invalid choice")},
	}

	assert.Empty(t, ValidateFormElements([]site.Element{radios}, map[string]any{"hasCert": "no"}))

	errs := ValidateFormElements([]site.Element{radios}, map[string]any{"hasCert": "yes"})
	assert.Contains(t, errs, "certNumber")

	errs = ValidateFormElements([]site.Element{radios}, map[string]any{"hasCert": "maybe"})
	assert.Equal(t, "invalid choice", errs["hasCert"].Message["en"])
	assert.NotContains(t, errs, "certNumber")
}

func TestCheckboxValues(t *testing.T) {
	boxes := site.Element{
		Element:     "checkboxes",
		Params:      site.Params{Name: "langs", Items: []site.Item{{Value: "el"}, {Value: "en"}}},
		Validations: []site.Validation{rule(CheckRequired, nil, "pick one"), rule(CheckValid, nil, "unknown")},
	}
	assert.Empty(t, ValidateFormElements([]site.Element{boxes}, map[string]any{"langs": []any{"el", "en"}}))
	assert.Contains(t, ValidateFormElements([]site.Element{boxes}, map[string]any{"langs": []string{}}), "langs")
	assert.Contains(t, ValidateFormElements([]site.Element{boxes}, map[string]any{"langs": []string{"el", "fr"}}), "langs")
}

func TestRegCheckPresets(t *testing.T) {
	tests := []struct {
		preset string
		value  string
		ok     bool
	}{
		{"numeric", "0123", true},
		{"numeric", "12a", false},
		{"numDecimal", "12,50", true},
		{"numDecimal", "12.", false},
		{"alpha", "Λεμεσός", true},
		{"alpha", "abc1", false},
		{"alphaNum", "Flat 4", true},
		{"noSpecialChars", "Main St. 12/3", true},
		{"noSpecialChars", "<script>", false},
		{"postalCode", "3036", true},
		{"postalCode", "30366", false},
		{"phoneCY", "+35722123456", true},
		{"phoneCY", "32123456", false},
		{"iban", "CY17 0020 0128 0000 0012 0052 7600", true},
		{"iban", "CY17 0020 0128 0000 0012 0052 7601", false},
		{`^[A-Z]{2}\d+$`, "AB12", true},
	}
	for _, tt := range tests {
		t.Run(tt.preset+"/"+tt.value, func(t *testing.T) {
			errs := ValidateFormElements([]site.Element{input("f", rule(CheckRegCheck, tt.preset, "x"))}, map[string]any{"f": tt.value})
			assert.Equal(t, tt.ok, len(errs) == 0)
		})
	}
}

func TestWithPage(t *testing.T) {
	errs := Errors{"a": {ID: "a", Order: 1}}.WithPage("details", 10)
	require.Contains(t, errs, "details.a")
	assert.Equal(t, "details", errs["details.a"].PageURL)
	assert.Equal(t, 11, errs["details.a"].Order)
}
