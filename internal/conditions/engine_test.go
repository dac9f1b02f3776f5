package conditions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/requestcontext"
)

type EngineSuite struct {
	suite.Suite
	engine *Engine
	ctx    context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = New()
	s.ctx = requestcontext.WithRedirectCounter(context.Background())
}

func pageWith(conds ...site.Condition) *site.Page {
	return &site.Page{PageData: site.PageData{URL: "index", Conditions: conds}}
}

func (s *EngineSuite) TestFlagScenario() {
	page := pageWith(site.Condition{Expression: `dataLayer["site.flag"]=="yes"`, Redirect: "skip"})

	s.Run("flag yes redirects", func() {
		out := s.engine.Evaluate(s.ctx, "site", page, map[string]any{"site": map[string]any{"flag": "yes"}})
		s.Equal(Outcome{Result: false, Redirect: "skip"}, out)
	})

	s.Run("flag no renders", func() {
		out := s.engine.Evaluate(s.ctx, "site", page, map[string]any{"site": map[string]any{"flag": "no"}})
		s.Equal(Outcome{Result: true}, out)
	})
}

func (s *EngineSuite) TestNoConditionsRenders() {
	s.Equal(Render, s.engine.Evaluate(s.ctx, "site", pageWith(), nil))
	s.Equal(Render, s.engine.Evaluate(s.ctx, "site", nil, nil))
	s.Equal(0, requestcontext.RedirectDepth(s.ctx))
}

func (s *EngineSuite) TestFirstTrueConditionWins() {
	page := pageWith(
		site.Condition{Expression: `dataLayer.a == 2`, Redirect: "first"},
		site.Condition{Expression: `dataLayer.a == 1`, Redirect: "second"},
		site.Condition{Expression: `dataLayer.a >= 1`, Redirect: "third"},
	)
	out := s.engine.Evaluate(s.ctx, "site", page, map[string]any{"a": 1})
	s.Equal("second", out.Redirect)
	s.Equal(1, requestcontext.RedirectDepth(s.ctx))
}

func (s *EngineSuite) TestInvalidConditionsAreSkipped() {
	page := pageWith(
		site.Condition{Expression: "", Redirect: "empty-expression"},
		site.Condition{Expression: "true", Redirect: ""},
		site.Condition{Expression: "dataLayer.a ==", Redirect: "syntax-error"},
		site.Condition{Expression: "dataLayer.missing.deeper", Redirect: "runtime-error"},
		site.Condition{Expression: `dataLayer.a`, Redirect: "non-boolean"},
		site.Condition{Expression: `process.exit(1)`, Redirect: "unsafe"},
	)
	out := s.engine.Evaluate(s.ctx, "site", page, map[string]any{"a": "truthy string"})
	s.Equal(Render, out)
	s.Equal(0, requestcontext.RedirectDepth(s.ctx))
}

func (s *EngineSuite) TestRedirectLimit() {
	page := pageWith(site.Condition{Expression: "true", Redirect: "loop"})

	for i := 1; i <= MaxRedirects; i++ {
		out := s.engine.Evaluate(s.ctx, "site", page, nil)
		s.Require().Equal("loop", out.Redirect, "redirect %d", i)
	}
	s.Equal(MaxRedirects, requestcontext.RedirectDepth(s.ctx))

	for range 3 {
		s.Equal(Render, s.engine.Evaluate(s.ctx, "site", page, nil))
	}
	s.Equal(MaxRedirects, requestcontext.RedirectDepth(s.ctx))
}

func (s *EngineSuite) TestCounterIsPerRequest() {
	page := pageWith(site.Condition{Expression: "true", Redirect: "loop"})
	for range MaxRedirects {
		s.engine.Evaluate(s.ctx, "site", page, nil)
	}
	fresh := requestcontext.WithRedirectCounter(context.Background())
	s.Equal("loop", s.engine.Evaluate(fresh, "site", page, nil).Redirect)
}
