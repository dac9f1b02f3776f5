// Package multiplethings runs the hub/add/edit/delete flow for pages that
// collect a repeatable list of items.
package multiplethings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/internal/validation"
	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
	textutil "github.com/gov-cy/govcy-express-services-sub001/pkg/platform/strings"
)

const (
	// ContextDelete keys validation errors of the delete confirmation.
	ContextDelete = "delete"
	// ChoiceField is the posted yes/no field of the delete confirmation.
	ChoiceField = "deleteItem"
	// ItemsErrorKey keys list-level errors (cardinality, duplicates).
	ItemsErrorKey = "multipleThings"

	errorFlag = "?hasError=1"
)

var (
	msgMaxReached = func(n int) site.LocalizedText {
		return site.LocalizedText{
			"en": fmt.Sprintf("You can add up to %d items", n),
			"el": fmt.Sprintf("Μπορείτε να προσθέσετε μέχρι %d καταχωρήσεις", n),
		}
	}
	msgMinRequired = func(n int) site.LocalizedText {
		return site.LocalizedText{
			"en": fmt.Sprintf("You must add at least %d items", n),
			"el": fmt.Sprintf("Πρέπει να προσθέσετε τουλάχιστον %d καταχωρήσεις", n),
		}
	}
	msgDuplicate = site.LocalizedText{
		"en": "You have already added this item",
		"el": "Έχετε ήδη προσθέσει αυτή την καταχώρηση",
	}
	msgChooseYesNo = site.LocalizedText{
		"en": "Select yes or no",
		"el": "Επιλέξτε ναι ή όχι",
	}
)

// Manager implements the multipleThings state machine over session data.
// Page conditions are evaluated by the caller before any operation.
type Manager struct {
	logger *slog.Logger
	titles *titleRenderer
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		logger: slog.Default(),
		titles: newTitleRenderer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PagePath is the route of any page of a site.
func PagePath(siteID, pageURL string) string {
	return "/" + siteID + "/" + pageURL
}

// HubPath is the list view of a multipleThings page.
func HubPath(siteID, pageURL string) string {
	return PagePath(siteID, pageURL)
}

// AddPath is the form for a new item.
func AddPath(siteID, pageURL string) string {
	return HubPath(siteID, pageURL) + "/multiple/add"
}

// EditPath is the form for item index.
func EditPath(siteID, pageURL string, index int) string {
	return HubPath(siteID, pageURL) + "/multiple/edit/" + strconv.Itoa(index)
}

// DeletePath is the confirmation for removing item index.
func DeletePath(siteID, pageURL string, index int) string {
	return HubPath(siteID, pageURL) + "/multiple/delete/" + strconv.Itoa(index)
}

// HubView is what the renderer needs for the list page.
type HubView struct {
	Title              string               `json:"title"`
	Items              []HubItem            `json:"items"`
	EmptyState         string               `json:"emptyState,omitempty"`
	CanAdd             bool                 `json:"canAdd"`
	MaxReached         bool                 `json:"maxReached"`
	AddURL             string               `json:"addUrl"`
	AddButtonText      string               `json:"addButtonText,omitempty"`
	AddButtonPlacement string               `json:"addButtonPlacement,omitempty"`
	ContinueButtonText string               `json:"continueButtonText,omitempty"`
	HasBackLink        bool                 `json:"hasBackLink"`
	TopElements        []site.Element       `json:"topElements,omitempty"`
	Errors             *session.ErrorBundle `json:"errors,omitempty"`
}

// HubItem is one row of the hub.
type HubItem struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	EditURL   string `json:"editUrl"`
	DeleteURL string `json:"deleteUrl"`
}

// FormView prefills the add or edit form.
type FormView struct {
	Mode     string               `json:"mode"`
	Index    int                  `json:"index"`
	Action   string               `json:"action"`
	FormData map[string]any       `json:"formData"`
	Errors   *session.ErrorBundle `json:"errors,omitempty"`
}

// DeleteView is the yes/no confirmation naming the item.
type DeleteView struct {
	Index     int                  `json:"index"`
	ItemTitle string               `json:"itemTitle"`
	Action    string               `json:"action"`
	Errors    *session.ErrorBundle `json:"errors,omitempty"`
}

func settings(page *site.Page) (*site.MultipleThings, error) {
	if page == nil || page.MultipleThings == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "page has no multipleThings configuration")
	}
	if err := page.MultipleThings.Check(); err != nil {
		return nil, err
	}
	return page.MultipleThings, nil
}

func outOfRange(index, n int) error {
	return dErrors.Newf(dErrors.CodeNotFound, "item %d not found (have %d)", index, n)
}

// Hub builds the list view. Errors stored under the hub context are taken.
func (m *Manager) Hub(ctx context.Context, sess *session.Session, siteID string, page *site.Page, lang string) (*HubView, error) {
	cfg, err := settings(page)
	if err != nil {
		return nil, err
	}
	pageURL := page.PageData.URL
	sess.InitializeSiteData(siteID, pageURL)
	items := sess.PageItems(siteID, pageURL)

	view := &HubView{
		Title:              cfg.ListPage.Title.Resolve(lang),
		Items:              make([]HubItem, 0, len(items)),
		AddURL:             AddPath(siteID, pageURL),
		AddButtonText:      cfg.ListPage.AddButtonText.Resolve(lang),
		AddButtonPlacement: cfg.ListPage.AddButtonPlacement,
		ContinueButtonText: cfg.ListPage.ContinueButtonText.Resolve(lang),
		HasBackLink:        cfg.ListPage.HasBackLink,
		TopElements:        cfg.ListPage.TopElements,
		Errors:             sess.TakePageValidationErrors(siteID, pageURL, session.ContextHub),
	}
	if len(items) == 0 {
		view.EmptyState = cfg.ListPage.EmptyState.Resolve(lang)
	}
	for i, item := range items {
		view.Items = append(view.Items, HubItem{
			Index:     i,
			Title:     m.itemTitle(ctx, cfg, item),
			EditURL:   EditPath(siteID, pageURL, i),
			DeleteURL: DeletePath(siteID, pageURL, i),
		})
	}
	view.MaxReached = len(items) >= *cfg.Max
	view.CanAdd = !view.MaxReached
	return view, nil
}

// ItemTitle renders the page's itemTitleTemplate for item.
func (m *Manager) ItemTitle(ctx context.Context, page *site.Page, item map[string]any) string {
	if page == nil || page.MultipleThings == nil {
		return ""
	}
	return m.itemTitle(ctx, page.MultipleThings, item)
}

func (m *Manager) itemTitle(ctx context.Context, cfg *site.MultipleThings, item map[string]any) string {
	title, err := m.titles.Render(cfg.ItemTitleTemplate, item)
	if err != nil {
		m.logger.WarnContext(ctx, "item title template failed", "template", cfg.ItemTitleTemplate, "error", err)
		return ""
	}
	return strings.TrimSpace(title)
}

// Continue is the hub's POST: the list must hold at least min items.
// It returns where to send the user next.
func (m *Manager) Continue(_ context.Context, sess *session.Session, siteID string, page *site.Page) (string, error) {
	cfg, err := settings(page)
	if err != nil {
		return "", err
	}
	pageURL := page.PageData.URL
	if n := len(sess.PageItems(siteID, pageURL)); n < *cfg.Min {
		sess.StorePageValidationErrors(siteID, pageURL, session.ContextHub, listError(msgMinRequired(*cfg.Min)), nil)
		return HubPath(siteID, pageURL) + errorFlag, nil
	}
	return PagePath(siteID, page.PageData.NextPage), nil
}

// AddForm prefills the add form from rejected input, else from the draft.
func (m *Manager) AddForm(sess *session.Session, siteID string, page *site.Page) (*FormView, error) {
	if _, err := settings(page); err != nil {
		return nil, err
	}
	pageURL := page.PageData.URL
	view := &FormView{
		Mode:     session.ContextAdd,
		Index:    -1,
		Action:   AddPath(siteID, pageURL),
		Errors:   sess.TakePageValidationErrors(siteID, pageURL, session.ContextAdd),
		FormData: sess.PageDraft(siteID, pageURL),
	}
	if view.Errors != nil && view.Errors.FormData != nil {
		view.FormData = view.Errors.FormData
	}
	return view, nil
}

// Add validates formData and appends it. Rejected input is kept as the draft
// and the user is sent back to the add form with an error flag.
func (m *Manager) Add(_ context.Context, sess *session.Session, siteID string, page *site.Page, formData map[string]any) (string, error) {
	cfg, err := settings(page)
	if err != nil {
		return "", err
	}
	pageURL := page.PageData.URL
	item := fields(page, formData)
	items := sess.PageItems(siteID, pageURL)

	reject := func(errs validation.Errors) (string, error) {
		sess.StorePageDraft(siteID, pageURL, item)
		sess.StorePageValidationErrors(siteID, pageURL, session.ContextAdd, errs, item)
		return AddPath(siteID, pageURL) + errorFlag, nil
	}

	if len(items) >= *cfg.Max {
		return reject(listError(msgMaxReached(*cfg.Max)))
	}
	if errs := validation.ValidateFormElements(page.FormElements(), item); len(errs) > 0 {
		return reject(errs)
	}
	if cfg.Dedupe && duplicateOf(page, item, items, -1) {
		return reject(listError(msgDuplicate))
	}

	sess.StorePageItems(siteID, pageURL, append(items, item))
	sess.StorePageDraft(siteID, pageURL, nil)
	return HubPath(siteID, pageURL), nil
}

// EditForm prefills the edit form for item index.
func (m *Manager) EditForm(sess *session.Session, siteID string, page *site.Page, index int) (*FormView, error) {
	if _, err := settings(page); err != nil {
		return nil, err
	}
	pageURL := page.PageData.URL
	items := sess.PageItems(siteID, pageURL)
	if index < 0 || index >= len(items) {
		return nil, outOfRange(index, len(items))
	}
	view := &FormView{
		Mode:     "edit",
		Index:    index,
		Action:   EditPath(siteID, pageURL, index),
		FormData: items[index],
		Errors:   sess.TakePageValidationErrors(siteID, pageURL, strconv.Itoa(index)),
	}
	if view.Errors != nil && view.Errors.FormData != nil {
		view.FormData = view.Errors.FormData
	}
	return view, nil
}

// Edit replaces item index in place.
func (m *Manager) Edit(_ context.Context, sess *session.Session, siteID string, page *site.Page, index int, formData map[string]any) (string, error) {
	cfg, err := settings(page)
	if err != nil {
		return "", err
	}
	pageURL := page.PageData.URL
	items := sess.PageItems(siteID, pageURL)
	if index < 0 || index >= len(items) {
		return "", outOfRange(index, len(items))
	}
	item := fields(page, formData)

	errs := validation.ValidateFormElements(page.FormElements(), item)
	if len(errs) == 0 && cfg.Dedupe && duplicateOf(page, item, items, index) {
		errs = listError(msgDuplicate)
	}
	if len(errs) > 0 {
		sess.StorePageValidationErrors(siteID, pageURL, strconv.Itoa(index), errs, item)
		return EditPath(siteID, pageURL, index) + errorFlag, nil
	}

	updated := append([]map[string]any(nil), items...)
	updated[index] = item
	sess.StorePageItems(siteID, pageURL, updated)
	return HubPath(siteID, pageURL), nil
}

// DeleteForm builds the confirmation for item index.
func (m *Manager) DeleteForm(ctx context.Context, sess *session.Session, siteID string, page *site.Page, index int) (*DeleteView, error) {
	cfg, err := settings(page)
	if err != nil {
		return nil, err
	}
	pageURL := page.PageData.URL
	items := sess.PageItems(siteID, pageURL)
	if index < 0 || index >= len(items) {
		return nil, outOfRange(index, len(items))
	}
	return &DeleteView{
		Index:     index,
		ItemTitle: m.itemTitle(ctx, cfg, items[index]),
		Action:    DeletePath(siteID, pageURL, index),
		Errors:    sess.TakePageValidationErrors(siteID, pageURL, ContextDelete),
	}, nil
}

// Delete applies the confirmation answer. Only "yes" and "no" are accepted;
// anything else is a validation error. Deleting below min is allowed.
func (m *Manager) Delete(_ context.Context, sess *session.Session, siteID string, page *site.Page, index int, choice string) (string, error) {
	if _, err := settings(page); err != nil {
		return "", err
	}
	pageURL := page.PageData.URL
	items := sess.PageItems(siteID, pageURL)
	if index < 0 || index >= len(items) {
		return "", outOfRange(index, len(items))
	}

	switch strings.TrimSpace(choice) {
	case "yes":
		remaining := make([]map[string]any, 0, len(items)-1)
		remaining = append(remaining, items[:index]...)
		remaining = append(remaining, items[index+1:]...)
		sess.StorePageItems(siteID, pageURL, remaining)
		return HubPath(siteID, pageURL), nil
	case "no":
		return HubPath(siteID, pageURL), nil
	default:
		errs := validation.Errors{ChoiceField: {ID: ChoiceField, Message: msgChooseYesNo, Order: 1}}
		sess.StorePageValidationErrors(siteID, pageURL, ContextDelete, errs, nil)
		return DeletePath(siteID, pageURL, index) + errorFlag, nil
	}
}

func listError(msg site.LocalizedText) validation.Errors {
	return validation.Errors{ItemsErrorKey: {ID: ItemsErrorKey, Message: msg}}
}

// fields keeps only the page's inputs from posted data.
func fields(page *site.Page, formData map[string]any) map[string]any {
	names := textutil.UniqueFields(page.InputNames())
	item := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := formData[name]; ok {
			item[name] = v
		}
	}
	return item
}

// duplicateOf reports whether item matches any other item on every input.
func duplicateOf(page *site.Page, item map[string]any, items []map[string]any, skip int) bool {
	names := textutil.UniqueFields(page.InputNames())
	for i, existing := range items {
		if i == skip {
			continue
		}
		same := true
		for _, name := range names {
			if !textutil.SameText(text(item[name]), text(existing[name])) {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func text(v any) string {
	return strings.Join(validation.Values(v), "\x1f")
}

// ValidateItems checks a stored list against the page's cardinality bounds
// and every item against the page's input rules. Item errors are keyed
// index.name.
func ValidateItems(page *site.Page, items []map[string]any) (validation.Errors, error) {
	cfg, err := settings(page)
	if err != nil {
		return nil, err
	}
	errs := make(validation.Errors)
	switch {
	case len(items) < *cfg.Min:
		errs[ItemsErrorKey] = validation.FieldError{ID: ItemsErrorKey, Message: msgMinRequired(*cfg.Min)}
	case len(items) > *cfg.Max:
		errs[ItemsErrorKey] = validation.FieldError{ID: ItemsErrorKey, Message: msgMaxReached(*cfg.Max)}
	}
	elements := page.FormElements()
	for i, item := range items {
		for name, fe := range validation.ValidateFormElements(elements, item) {
			fe.Order += (i + 1) * 1000
			errs[strconv.Itoa(i)+"."+name] = fe
		}
	}
	return errs, nil
}
