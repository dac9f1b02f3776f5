package site

import (
	"encoding/json"
	"strings"
)

// DefaultLang is used when a request carries no language preference.
const DefaultLang = "el"

// LocalizedText maps a language code to text.
type LocalizedText map[string]string

// Resolve returns the text for lang, falling back to the default language,
// then English, then any non-empty entry.
func (t LocalizedText) Resolve(lang string) string {
	if len(t) == 0 {
		return ""
	}
	for _, candidate := range []string{lang, DefaultLang, "en"} {
		if v := strings.TrimSpace(t[candidate]); v != "" {
			return v
		}
	}
	for _, v := range t {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Site is one configured digital service: settings plus its ordered pages.
type Site struct {
	Site  Settings `json:"site" yaml:"site"`
	Pages []Page   `json:"pages" yaml:"pages"`
}

// ID returns the service id.
func (s *Site) ID() string {
	return s.Site.ID
}

// Settings carries service-wide configuration.
type Settings struct {
	ID                      string        `json:"id" yaml:"id"`
	Lang                    string        `json:"lang" yaml:"lang"`
	Languages               []string      `json:"languages,omitempty" yaml:"languages"`
	Title                   LocalizedText `json:"title,omitempty" yaml:"title"`
	SubmissionAPIEndpoint   *Endpoint     `json:"submissionAPIEndpoint,omitempty" yaml:"submissionAPIEndpoint"`
	EligibilityAPIEndpoints []Endpoint    `json:"eligibilityAPIEndpoints,omitempty" yaml:"eligibilityAPIEndpoints"`
	NotificationAPIEndpoint *Endpoint     `json:"notificationAPIEndpoint,omitempty" yaml:"notificationAPIEndpoint"`
	SubmissionDataVersion   string        `json:"submission_data_version,omitempty" yaml:"submission_data_version"`
	RendererVersion         string        `json:"renderer_version,omitempty" yaml:"renderer_version"`
	DesignSystemsVersion    string        `json:"design_systems_version,omitempty" yaml:"design_systems_version"`
}

// DefaultLang returns the configured language or the package default.
func (s Settings) DefaultLang() string {
	if s.Lang != "" {
		return s.Lang
	}
	return DefaultLang
}

// Page is one wizard step.
type Page struct {
	PageData       PageData        `json:"pageData" yaml:"pageData"`
	PageTemplate   PageTemplate    `json:"pageTemplate" yaml:"pageTemplate"`
	MultipleThings *MultipleThings `json:"multipleThings,omitempty" yaml:"multipleThings"`
}

// PageData holds routing metadata for a page.
type PageData struct {
	URL        string        `json:"url" yaml:"url"`
	Title      LocalizedText `json:"title,omitempty" yaml:"title"`
	Layout     string        `json:"layout,omitempty" yaml:"layout"`
	MainLayout string        `json:"mainLayout,omitempty" yaml:"mainLayout"`
	NextPage   string        `json:"nextPage,omitempty" yaml:"nextPage"`
	Conditions []Condition   `json:"conditions,omitempty" yaml:"conditions"`
}

// Condition redirects away from a page when Expression evaluates to true.
type Condition struct {
	Expression string `json:"expression" yaml:"expression"`
	Redirect   string `json:"redirect" yaml:"redirect"`
}

// PageTemplate is the renderable body of a page.
type PageTemplate struct {
	Sections []Section `json:"sections" yaml:"sections"`
}

// Section groups elements under a layout slot.
type Section struct {
	Name     string    `json:"name" yaml:"name"`
	Elements []Element `json:"elements" yaml:"elements"`
}

// Element is a renderable component. Form elements carry their inputs in Params.Elements.
type Element struct {
	Element     string       `json:"element" yaml:"element"`
	Params      Params       `json:"params" yaml:"params"`
	Validations []Validation `json:"validations,omitempty" yaml:"validations"`
}

// Params are the element parameters the engine understands; everything else is
// carried through to the renderer untouched in Extra.
type Params struct {
	ID       string         `json:"-" yaml:"id"`
	Name     string         `json:"-" yaml:"name"`
	Label    LocalizedText  `json:"-" yaml:"label"`
	Legend   LocalizedText  `json:"-" yaml:"legend"`
	Value    any            `json:"-" yaml:"value"`
	Items    []Item         `json:"-" yaml:"items"`
	Elements []Element      `json:"-" yaml:"elements"`
	Extra    map[string]any `json:"-" yaml:",inline"`
}

type paramsKnown struct {
	ID       string        `json:"id,omitempty"`
	Name     string        `json:"name,omitempty"`
	Label    LocalizedText `json:"label,omitempty"`
	Legend   LocalizedText `json:"legend,omitempty"`
	Value    any           `json:"value,omitempty"`
	Items    []Item        `json:"items,omitempty"`
	Elements []Element     `json:"elements,omitempty"`
}

var knownParamKeys = map[string]struct{}{
	"id": {}, "name": {}, "label": {}, "legend": {}, "value": {}, "items": {}, "elements": {},
}

// MarshalJSON merges Extra with the typed fields so renderers see one flat object.
func (p Params) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(paramsKnown{
		ID: p.ID, Name: p.Name, Label: p.Label, Legend: p.Legend,
		Value: p.Value, Items: p.Items, Elements: p.Elements,
	})
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]any, len(p.Extra)+7)
	for k, v := range p.Extra {
		merged[k] = v
	}
	var knownMap map[string]any
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON splits known keys from passthrough keys.
func (p *Params) UnmarshalJSON(data []byte) error {
	var known paramsKnown
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*p = Params{
		ID: known.ID, Name: known.Name, Label: known.Label, Legend: known.Legend,
		Value: known.Value, Items: known.Items, Elements: known.Elements,
	}
	for k, v := range all {
		if _, ok := knownParamKeys[k]; ok {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}
	return nil
}

// Item is one option of a radios/checkboxes/select element.
type Item struct {
	Value               string        `json:"value" yaml:"value"`
	Text                LocalizedText `json:"text,omitempty" yaml:"text"`
	ConditionalElements []Element     `json:"conditionalElements,omitempty" yaml:"conditionalElements"`
}

// Validation is one rule attached to an input element.
type Validation struct {
	Check  string           `json:"check" yaml:"check"`
	Params ValidationParams `json:"params" yaml:"params"`
}

// ValidationParams configures a validation rule.
type ValidationParams struct {
	CheckValue any           `json:"checkValue,omitempty" yaml:"checkValue"`
	Message    LocalizedText `json:"message" yaml:"message"`
}

// MultipleThings configures a repeatable item collection on a page.
// Min and Max are pointers so that a missing bound is distinguishable from zero.
type MultipleThings struct {
	ItemTitleTemplate string   `json:"itemTitleTemplate" yaml:"itemTitleTemplate"`
	Min               *int     `json:"min" yaml:"min"`
	Max               *int     `json:"max" yaml:"max"`
	Dedupe            bool     `json:"dedupe,omitempty" yaml:"dedupe"`
	ListPage          ListPage `json:"listPage" yaml:"listPage"`
}

// ListPage configures the hub view of a multipleThings page.
type ListPage struct {
	Title              LocalizedText `json:"title" yaml:"title"`
	AddButtonPlacement string        `json:"addButtonPlacement,omitempty" yaml:"addButtonPlacement"`
	AddButtonText      LocalizedText `json:"addButtonText,omitempty" yaml:"addButtonText"`
	ContinueButtonText LocalizedText `json:"continueButtonText,omitempty" yaml:"continueButtonText"`
	EmptyState         LocalizedText `json:"emptyState,omitempty" yaml:"emptyState"`
	TopElements        []Element     `json:"topElements,omitempty" yaml:"topElements"`
	HasBackLink        bool          `json:"hasBackLink,omitempty" yaml:"hasBackLink"`
}
