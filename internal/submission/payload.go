package submission

import (
	"context"
	"strings"

	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/internal/validation"
)

// Payload is the body posted to a site's submission endpoint.
type Payload struct {
	SubmissionUsername    string         `json:"submissionUsername"`
	SubmissionEmail       string         `json:"submissionEmail"`
	SubmissionData        map[string]any `json:"submissionData"`
	SubmissionDataVersion string         `json:"submissionDataVersion"`
	PrintFriendlyData     []PrintPage    `json:"printFriendlyData"`
	RendererData          map[string]any `json:"rendererData"`
	RendererVersion       string         `json:"rendererVersion"`
	DesignSystemsVersion  string         `json:"designSystemsVersion"`
	Service               Service        `json:"service"`
}

// Service identifies the submitting site.
type Service struct {
	ID    string             `json:"id"`
	Title site.LocalizedText `json:"title,omitempty"`
}

// PrintPage is one page of answers with labels resolved.
// List pages carry Items, other pages Fields.
type PrintPage struct {
	PageURL   string       `json:"pageUrl"`
	PageTitle string       `json:"pageTitle"`
	Fields    []PrintField `json:"fields,omitempty"`
	Items     []PrintItem  `json:"items,omitempty"`
}

// PrintItem is one multipleThings item.
type PrintItem struct {
	Title  string       `json:"itemTitle"`
	Fields []PrintField `json:"fields"`
}

// PrintField is one answer. ValueLabel is the option text for choice inputs
// and the raw value otherwise.
type PrintField struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Label      string `json:"label"`
	Value      any    `json:"value"`
	ValueLabel string `json:"valueLabel"`
}

// titler renders item titles for list pages.
type titler interface {
	ItemTitle(ctx context.Context, page *site.Page, item map[string]any) string
}

func buildPayload(ctx context.Context, sess *session.Session, s *site.Site, pages []*site.Page, lang string, titles titler) Payload {
	siteID := s.ID()
	p := Payload{
		SubmissionData:        make(map[string]any, len(pages)),
		SubmissionDataVersion: s.Site.SubmissionDataVersion,
		PrintFriendlyData:     make([]PrintPage, 0, len(pages)),
		RendererVersion:       s.Site.RendererVersion,
		DesignSystemsVersion:  s.Site.DesignSystemsVersion,
		Service:               Service{ID: siteID, Title: s.Site.Title},
	}
	if user := sess.GetUser(); user != nil {
		p.SubmissionUsername = user.Name
		p.SubmissionEmail = user.Email
	}

	for _, page := range pages {
		pageURL := page.PageData.URL
		out := PrintPage{PageURL: pageURL, PageTitle: page.PageData.Title.Resolve(lang)}
		if page.MultipleThings != nil {
			items := sess.PageItems(siteID, pageURL)
			p.SubmissionData[pageURL] = items
			for _, item := range items {
				out.Items = append(out.Items, PrintItem{
					Title:  titles.ItemTitle(ctx, page, item),
					Fields: printFields(page.FormElements(), item, lang),
				})
			}
		} else {
			formData := sess.PageData(siteID, pageURL)
			if formData == nil {
				formData = map[string]any{}
			}
			p.SubmissionData[pageURL] = formData
			out.Fields = printFields(page.FormElements(), formData, lang)
		}
		p.PrintFriendlyData = append(p.PrintFriendlyData, out)
	}
	p.RendererData = rendererData(p.PrintFriendlyData, lang)
	return p
}

func printFields(elements []site.Element, formData map[string]any, lang string) []PrintField {
	var out []PrintField
	for _, el := range elements {
		name := el.Params.Name
		if name == "" || el.Element == "button" {
			continue
		}
		value := formData[name]
		if value == nil {
			value = ""
		}
		label := el.Params.Label.Resolve(lang)
		if label == "" {
			label = el.Params.Legend.Resolve(lang)
		}
		id := el.Params.ID
		if id == "" {
			id = name
		}
		out = append(out, PrintField{
			ID:         id,
			Name:       name,
			Label:      label,
			Value:      value,
			ValueLabel: valueLabel(el, value, lang),
		})

		selected := validation.Values(value)
		for _, item := range el.Params.Items {
			if len(item.ConditionalElements) > 0 && contains(selected, item.Value) {
				out = append(out, printFields(item.ConditionalElements, formData, lang)...)
			}
		}
	}
	return out
}

func valueLabel(el site.Element, value any, lang string) string {
	values := validation.Values(value)
	if len(el.Params.Items) == 0 {
		return strings.Join(values, ", ")
	}
	labels := make([]string, 0, len(values))
	for _, v := range values {
		label := v
		for _, item := range el.Params.Items {
			if item.Value == v {
				if text := item.Text.Resolve(lang); text != "" {
					label = text
				}
				break
			}
		}
		labels = append(labels, label)
	}
	return strings.Join(labels, ", ")
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// rendererData nests the print-friendly answers as summary lists, the
// structure design-system renderers draw a check-your-answers page from.
func rendererData(pages []PrintPage, lang string) map[string]any {
	rows := make([]any, 0, len(pages))
	for _, page := range pages {
		var inner []any
		if page.Items != nil {
			for _, item := range page.Items {
				inner = append(inner, summaryRow(lang, item.Title, summaryList(fieldRows(lang, item.Fields))))
			}
		} else {
			inner = fieldRows(lang, page.Fields)
		}
		rows = append(rows, summaryRow(lang, page.PageTitle, summaryList(inner)))
	}
	return summaryList(rows)
}

func fieldRows(lang string, fields []PrintField) []any {
	rows := make([]any, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, summaryRow(lang, f.Label, map[string]any{
			"element": "textElement",
			"params": map[string]any{
				"type": "span",
				"text": map[string]any{lang: f.ValueLabel},
			},
		}))
	}
	return rows
}

func summaryRow(lang, key string, value map[string]any) map[string]any {
	return map[string]any{
		"key":   map[string]any{lang: key},
		"value": []any{value},
	}
}

func summaryList(items []any) map[string]any {
	if items == nil {
		items = []any{}
	}
	return map[string]any{
		"element": "summaryList",
		"params":  map[string]any{"items": items},
	}
}
