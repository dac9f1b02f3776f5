//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/sentinel"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = session.NewRedis(s.redis.Client, session.WithRedisTTL(time.Minute))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSaveLoadDelete() {
	ctx := context.Background()
	sess := session.New(uuid.NewString(), time.Now().UTC())
	sess.StorePageData("svc", "index", map[string]any{"name": "Ann"})
	sess.StoreSiteLoadData("svc", map[string]any{"referenceValue": "R-1"})

	s.Require().NoError(s.store.Save(ctx, sess))

	loaded, err := s.store.Load(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal("Ann", loaded.PageData("svc", "index")["name"])
	s.Equal("R-1", loaded.SiteLoadData("svc")["referenceValue"])

	ttl, err := s.redis.Client.TTL(ctx, "govcy:sess:"+sess.ID).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(s.store.Delete(ctx, sess.ID))
	_, err = s.store.Load(ctx, sess.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestLastWriteWins() {
	ctx := context.Background()
	id := uuid.NewString()

	first := session.New(id, time.Now().UTC())
	first.StorePageData("svc", "index", map[string]any{"v": "first"})
	second := session.New(id, time.Now().UTC())
	second.StorePageData("svc", "index", map[string]any{"v": "second"})

	s.Require().NoError(s.store.Save(ctx, first))
	s.Require().NoError(s.store.Save(ctx, second))

	loaded, err := s.store.Load(ctx, id)
	s.Require().NoError(err)
	s.Equal("second", loaded.PageData("svc", "index")["v"])
}
