package site

import (
	"maps"
	"strings"

	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/sentinel"
)

// PageConfigData returns a deep copy of the page whose url matches pageURL, so
// callers may mutate the result without affecting the loaded configuration.
// Pages declaring multipleThings are checked for the required hub settings.
func (s *Site) PageConfigData(pageURL string) (*Page, error) {
	for i := range s.Pages {
		if s.Pages[i].PageData.URL != pageURL {
			continue
		}
		page := s.Pages[i].Clone()
		if page.MultipleThings != nil {
			if err := page.MultipleThings.Check(); err != nil {
				return nil, err
			}
		}
		return &page, nil
	}
	return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "page not found: "+pageURL)
}

// PageURLs returns page urls in configuration order.
func (s *Site) PageURLs() []string {
	urls := make([]string, 0, len(s.Pages))
	for _, p := range s.Pages {
		urls = append(urls, p.PageData.URL)
	}
	return urls
}

// Check reports a configuration error when a required hub setting is missing.
func (m *MultipleThings) Check() error {
	var missing []string
	if len(m.ListPage.Title) == 0 {
		missing = append(missing, "listPage.title")
	}
	if strings.TrimSpace(m.ItemTitleTemplate) == "" {
		missing = append(missing, "itemTitleTemplate")
	}
	if m.Min == nil {
		missing = append(missing, "min")
	}
	if m.Max == nil {
		missing = append(missing, "max")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeConfiguration, "multipleThings missing "+strings.Join(missing, ", "))
	}
	if *m.Min < 0 || *m.Max < *m.Min {
		return dErrors.Newf(dErrors.CodeConfiguration, "multipleThings bounds invalid: min=%d max=%d", *m.Min, *m.Max)
	}
	return nil
}

// FormElements returns the input elements nested in the page's form elements.
func (p *Page) FormElements() []Element {
	var out []Element
	for _, section := range p.PageTemplate.Sections {
		for _, el := range section.Elements {
			if el.Element == "form" {
				out = append(out, el.Params.Elements...)
			}
		}
	}
	return out
}

// InputNames lists the names of every input on the page, including inputs
// revealed by conditional radio items.
func (p *Page) InputNames() []string {
	var names []string
	var walk func([]Element)
	walk = func(els []Element) {
		for _, el := range els {
			if el.Params.Name != "" {
				names = append(names, el.Params.Name)
			}
			for _, item := range el.Params.Items {
				walk(item.ConditionalElements)
			}
		}
	}
	walk(p.FormElements())
	return names
}

// Clone returns a deep copy of the page.
func (p Page) Clone() Page {
	out := p
	out.PageData.Title = maps.Clone(p.PageData.Title)
	if p.PageData.Conditions != nil {
		out.PageData.Conditions = append([]Condition(nil), p.PageData.Conditions...)
	}
	if p.PageTemplate.Sections != nil {
		out.PageTemplate.Sections = make([]Section, len(p.PageTemplate.Sections))
		for i, s := range p.PageTemplate.Sections {
			out.PageTemplate.Sections[i] = Section{Name: s.Name, Elements: cloneElements(s.Elements)}
		}
	}
	if p.MultipleThings != nil {
		mt := *p.MultipleThings
		if mt.Min != nil {
			v := *mt.Min
			mt.Min = &v
		}
		if mt.Max != nil {
			v := *mt.Max
			mt.Max = &v
		}
		mt.ListPage.Title = maps.Clone(mt.ListPage.Title)
		mt.ListPage.AddButtonText = maps.Clone(mt.ListPage.AddButtonText)
		mt.ListPage.ContinueButtonText = maps.Clone(mt.ListPage.ContinueButtonText)
		mt.ListPage.EmptyState = maps.Clone(mt.ListPage.EmptyState)
		mt.ListPage.TopElements = cloneElements(mt.ListPage.TopElements)
		out.MultipleThings = &mt
	}
	return out
}

func cloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i, el := range in {
		out[i] = el.clone()
	}
	return out
}

func (e Element) clone() Element {
	out := e
	out.Params.Label = maps.Clone(e.Params.Label)
	out.Params.Legend = maps.Clone(e.Params.Legend)
	out.Params.Extra = cloneAny(e.Params.Extra)
	out.Params.Value = cloneValue(e.Params.Value)
	out.Params.Elements = cloneElements(e.Params.Elements)
	if e.Params.Items != nil {
		out.Params.Items = make([]Item, len(e.Params.Items))
		for i, item := range e.Params.Items {
			out.Params.Items[i] = Item{
				Value:               item.Value,
				Text:                maps.Clone(item.Text),
				ConditionalElements: cloneElements(item.ConditionalElements),
			}
		}
	}
	if e.Validations != nil {
		out.Validations = make([]Validation, len(e.Validations))
		for i, v := range e.Validations {
			out.Validations[i] = Validation{
				Check: v.Check,
				Params: ValidationParams{
					CheckValue: cloneValue(v.Params.CheckValue),
					Message:    maps.Clone(v.Params.Message),
				},
			}
		}
	}
	return out
}

func cloneAny(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAny(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
