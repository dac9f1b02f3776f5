package multiplethings

import (
	"regexp"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// titleRenderer interpolates itemTitleTemplate against an item. Compiled
// templates are cached by source since every hub render reuses them.
// Output is plain text: the page renderer escapes it once on display.
type titleRenderer struct {
	mu    sync.RWMutex
	cache map[string]*pongo2.Template
}

func newTitleRenderer() *titleRenderer {
	return &titleRenderer{cache: make(map[string]*pongo2.Template)}
}

func (r *titleRenderer) compile(source string) (*pongo2.Template, error) {
	r.mu.RLock()
	tpl, ok := r.cache[source]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}
	tpl, err := pongo2.FromString("{% autoescape off %}" + source + "{% endautoescape %}")
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[source] = tpl
	r.mu.Unlock()
	return tpl, nil
}

// Render returns the title for item. Missing fields render empty.
func (r *titleRenderer) Render(source string, item map[string]any) (string, error) {
	tpl, err := r.compile(source)
	if err != nil {
		return "", err
	}
	return tpl.Execute(templateContext(item))
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// templateContext drops keys pongo2 refuses as identifiers, such as hyphenated field names.
func templateContext(item map[string]any) pongo2.Context {
	ctx := make(pongo2.Context, len(item))
	for k, v := range item {
		if identifier.MatchString(k) {
			ctx[k] = v
		}
	}
	return ctx
}
