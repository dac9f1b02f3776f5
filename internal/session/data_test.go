package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/gov-cy/govcy-express-services-sub001/internal/expression"
	"github.com/gov-cy/govcy-express-services-sub001/internal/gateway"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/internal/validation"
)

type DataSuite struct {
	suite.Suite
	sess *Session
	now  time.Time
}

func TestDataSuite(t *testing.T) {
	suite.Run(t, new(DataSuite))
}

func (s *DataSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.sess = New("sess-1", s.now)
}

func sampleErrors() validation.Errors {
	return validation.Errors{"email": {ID: "email", Message: site.LocalizedText{"en": "Enter email"}, Order: 1}}
}

func (s *DataSuite) TestInitializeDoesNotOverwrite() {
	s.sess.StorePageData("svc", "index", map[string]any{"a": "1"})
	s.sess.InitializeSiteData("svc", "index")
	s.sess.InitializeSiteData("svc", "other")

	s.Equal(map[string]any{"a": "1"}, s.sess.PageData("svc", "index"))
	s.Contains(s.sess.Sites["svc"].InputData, "other")
}

func (s *DataSuite) TestPageValidationErrorsAreConsumedOnRead() {
	s.sess.StorePageValidationErrors("svc", "index", ContextAdd, sampleErrors(), map[string]any{"email": "x"})
	s.sess.StorePageValidationErrors("svc", "index", "2", sampleErrors(), nil)

	bundle := s.sess.TakePageValidationErrors("svc", "index", ContextAdd)
	s.Require().NotNil(bundle)
	s.Equal("x", bundle.FormData["email"])
	s.Len(bundle.ErrorSummary, 1)

	s.Nil(s.sess.TakePageValidationErrors("svc", "index", ContextAdd))
	s.NotNil(s.sess.TakePageValidationErrors("svc", "index", "2"), "other context keys are untouched")
	s.Nil(s.sess.TakePageValidationErrors("svc", "missing", ContextHub))
}

func (s *DataSuite) TestSiteSubmissionErrorsAreConsumedOnRead() {
	s.Nil(s.sess.TakeSiteSubmissionErrors("svc"))
	s.sess.StoreSiteValidationErrors("svc", sampleErrors())
	s.NotNil(s.sess.TakeSiteSubmissionErrors("svc"))
	s.Nil(s.sess.TakeSiteSubmissionErrors("svc"))
}

func (s *DataSuite) TestFormDataValuePriority() {
	one := 1
	s.sess.StorePageItems("svc", "quals", []map[string]any{{"title": "BSc"}, {"title": "MSc", "year": "2020"}})

	s.Equal("MSc", s.sess.FormDataValue("svc", "quals", "title", &one))

	s.sess.StorePageDraft("svc", "quals", map[string]any{"title": "PhD"})
	s.Equal("PhD", s.sess.FormDataValue("svc", "quals", "title", &one), "draft beats indexed item")
	s.Equal("2020", s.sess.FormDataValue("svc", "quals", "year", &one))

	s.sess.StorePageData("svc", "quals", map[string]any{"title": "single"})
	s.Equal("single", s.sess.FormDataValue("svc", "quals", "title", &one), "single-instance data wins")

	outOfRange := 5
	s.Equal("", s.sess.FormDataValue("svc", "quals", "missing", &outOfRange))
	s.Equal("", s.sess.FormDataValue("svc", "nope", "title", nil))
}

func (s *DataSuite) TestEligibilityCacheTTL() {
	resp := gateway.Response{Succeeded: true}
	s.sess.StoreSiteEligibilityResult("svc", "TEST_ELIGIBILITY_URL", resp, s.now)

	got, ok := s.sess.SiteEligibilityResult("svc", "TEST_ELIGIBILITY_URL", 10*time.Second, s.now.Add(5*time.Second))
	s.Require().True(ok)
	s.True(got.Succeeded)

	_, ok = s.sess.SiteEligibilityResult("svc", "TEST_ELIGIBILITY_URL", 0, s.now)
	s.False(ok, "zero max age always misses")

	_, ok = s.sess.SiteEligibilityResult("svc", "TEST_ELIGIBILITY_URL", 10*time.Second, s.now.Add(11*time.Second))
	s.False(ok)

	_, ok = s.sess.SiteEligibilityResult("other", "TEST_ELIGIBILITY_URL", time.Hour, s.now)
	s.False(ok)
}

func (s *DataSuite) TestLoadDataMerges() {
	s.sess.StoreSiteLoadData("svc", map[string]any{"referenceValue": "A", "x": 1})
	s.sess.StoreSiteLoadData("svc", map[string]any{"x": 2})
	s.Equal(map[string]any{"referenceValue": "A", "x": 2}, s.sess.SiteLoadData("svc"))
}

func (s *DataSuite) TestClearing() {
	s.sess.StorePageData("svc", "index", map[string]any{"a": "1"})
	s.sess.StoreSubmissionData("svc", SubmissionRecord{ReferenceNumber: "REF"})
	s.sess.StorePageData("keep", "index", map[string]any{"b": "2"})

	s.sess.ClearInputData("svc")
	s.Nil(s.sess.PageData("svc", "index"))
	s.Equal("REF", s.sess.SubmissionData("svc").ReferenceNumber)

	s.sess.ClearSiteData("svc")
	s.NotContains(s.sess.Sites, "svc")
	s.Nil(s.sess.SubmissionData("svc"))
	s.Equal(map[string]any{"b": "2"}, s.sess.PageData("keep", "index"))
}

func (s *DataSuite) TestGetUser() {
	s.Nil(s.sess.GetUser())
	s.sess.User = &User{Sub: "u1", AccessToken: "tok"}
	s.Equal("tok", s.sess.GetUser().BearerToken())
	s.Equal("", (*User)(nil).BearerToken())
}

func (s *DataSuite) TestDataLayerFeedsExpressions() {
	s.sess.StorePageData("svc", "index", map[string]any{"hasCert": "yes"})
	s.sess.StorePageItems("svc", "quals", []map[string]any{{"title": "BSc"}})

	got, err := expression.EvaluateWithFlattening(
		`dataLayer["svc.inputData.index.formData.hasCert"] == "yes" && dataLayer["svc.inputData.quals.formData"].length == 1`,
		s.sess.DataLayer(), "")
	s.Require().NoError(err)
	s.Equal(true, got)
}
