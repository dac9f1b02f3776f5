// Package validation checks posted form data against the rules configured on
// each input element.
package validation

import (
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
)

// Rule names understood in element validations.
const (
	CheckRequired = "required"
	CheckLength   = "length"
	CheckRegCheck = "regCheck"
	CheckValid    = "valid"
)

// FieldError is the first failed rule for one input.
type FieldError struct {
	ID      string             `json:"id"`
	Message site.LocalizedText `json:"message"`
	PageURL string             `json:"pageUrl,omitempty"`
	// Order is the position of the input on its page, used for summaries.
	Order int `json:"order"`
}

// Errors maps an input name (or item key) to its error.
type Errors map[string]FieldError

// Summary returns the errors in declaration order. Order carries the page
// offset from WithPage, so pages sort by their position in the site and not
// by URL. Equal orders fall back to the key.
func (e Errors) Summary() []FieldError {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, oj := e[keys[i]].Order, e[keys[j]].Order
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
	out := make([]FieldError, 0, len(keys))
	for _, k := range keys {
		out = append(out, e[k])
	}
	return out
}

// WithPage returns a copy of e with every error tagged with pageURL and
// keyed as pageURL.name so several pages can share one map.
func (e Errors) WithPage(pageURL string, order int) Errors {
	out := make(Errors, len(e))
	for name, fe := range e {
		fe.PageURL = pageURL
		fe.Order += order
		out[pageURL+"."+name] = fe
	}
	return out
}

var presets = map[string]*regexp.Regexp{
	"numeric":        regexp.MustCompile(`^\d+$`),
	"numDecimal":     regexp.MustCompile(`^\d+([.,]\d+)?$`),
	"email":          regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`),
	"phoneCY":        regexp.MustCompile(`^(?:\+357|00357)?[29]\d{7}$`),
	"name":           regexp.MustCompile(`^[\p{L}][\p{L}\s'.\-]*$`),
	"alpha":          regexp.MustCompile(`^[\p{L}\s]+$`),
	"alphaNum":       regexp.MustCompile(`^[\p{L}\p{N}\s]+$`),
	"noSpecialChars": regexp.MustCompile(`^[\p{L}\p{N}\s.,'()/\-]+$`),
	"postalCode":     regexp.MustCompile(`^\d{4}$`),
}

// ValidateFormElements validates formData against the inputs in elements.
// Inputs nested under a radio or checkbox option are validated only when that
// option is selected. The first failing rule of each input wins.
func ValidateFormElements(elements []site.Element, formData map[string]any) Errors {
	errs := make(Errors)
	order := 0
	validateInto(errs, elements, formData, &order)
	return errs
}

func validateInto(errs Errors, elements []site.Element, formData map[string]any, order *int) {
	for _, el := range elements {
		name := el.Params.Name
		if name == "" {
			continue
		}
		*order++
		values := Values(formData[name])

		for _, rule := range el.Validations {
			if !passes(rule, el, values) {
				id := el.Params.ID
				if id == "" {
					id = name
				}
				errs[name] = FieldError{ID: id, Message: rule.Params.Message, Order: *order}
				break
			}
		}

		for _, item := range el.Params.Items {
			if len(item.ConditionalElements) == 0 || !contains(values, item.Value) {
				continue
			}
			validateInto(errs, item.ConditionalElements, formData, order)
		}
	}
}

func passes(rule site.Validation, el site.Element, values []string) bool {
	empty := isEmpty(values)
	switch rule.Check {
	case CheckRequired:
		return !empty
	case CheckLength:
		if empty {
			return true
		}
		max, ok := intValue(rule.Params.CheckValue)
		if !ok {
			return true
		}
		for _, v := range values {
			if utf8.RuneCountInString(v) > max {
				return false
			}
		}
		return true
	case CheckRegCheck:
		if empty {
			return true
		}
		return matchesPreset(fmt.Sprint(rule.Params.CheckValue), values)
	case CheckValid:
		if empty || len(el.Params.Items) == 0 {
			return true
		}
		for _, v := range values {
			if !hasItem(el.Params.Items, v) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func matchesPreset(preset string, values []string) bool {
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		switch preset {
		case "iban":
			if !ValidIBAN(v) {
				return false
			}
			continue
		case "phoneCY":
			v = strings.NewReplacer(" ", "", "-", "").Replace(v)
		}
		re, ok := presets[preset]
		if !ok {
			compiled, err := regexp.Compile(preset)
			if err != nil {
				return true
			}
			re = compiled
		}
		if !re.MatchString(v) {
			return false
		}
	}
	return true
}

// ValidIBAN checks IBAN structure and the ISO 7064 mod-97 checksum.
func ValidIBAN(raw string) bool {
	iban := strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			digits.WriteString(strconv.Itoa(int(r-'A') + 10))
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

// Values normalizes a posted value to a list of strings.
func Values(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			out = append(out, fmt.Sprint(x))
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

func isEmpty(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func hasItem(items []site.Item, value string) bool {
	for _, item := range items {
		if item.Value == value {
			return true
		}
	}
	return false
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}
