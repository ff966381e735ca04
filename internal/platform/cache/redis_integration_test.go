//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bureau/internal/platform/cache"
	"bureau/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = cache.NewRedis(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestSetGet() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "/members/7/mandates", []byte(`{"mandates":[]}`), 0))

	body, ok, err := s.cache.Get(ctx, "/members/7/mandates")
	s.Require().NoError(err)
	s.True(ok)
	s.JSONEq(`{"mandates":[]}`, string(body))

	_, ok, err = s.cache.Get(ctx, "/members/8/mandates")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestInvalidateBySubstring() {
	ctx := context.Background()
	keys := []string{
		"/members/7/mandates",
		"/members/7/mandates?page=2&limit=5",
		"/members/77/mandates",
	}
	for _, k := range keys {
		s.Require().NoError(s.cache.Set(ctx, k, []byte("{}"), 0))
	}

	removed, err := s.cache.Invalidate(ctx, "/members/7/mandates")
	s.Require().NoError(err)
	s.Equal(2, removed)

	_, ok, err := s.cache.Get(ctx, "/members/77/mandates")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RedisCacheSuite) TestGlobCharactersAreLiteral() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "/members/7/mandates?page=1", []byte("{}"), 0))

	removed, err := s.cache.Invalidate(ctx, "/members/*/mandates")
	s.Require().NoError(err)
	s.Equal(0, removed)
}

func (s *RedisCacheSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "short", []byte("{}"), 50*time.Millisecond))

	s.Eventually(func() bool {
		_, ok, _ := s.cache.Get(ctx, "short")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *RedisCacheSuite) TestKeyPrefixIsolatesNamespaces() {
	ctx := context.Background()
	staging := cache.NewRedis(s.redis.Client, time.Minute, cache.WithKeyPrefix("staging:"))
	s.Require().NoError(s.cache.Set(ctx, "/members/7/mandates", []byte(`{"env":"default"}`), 0))
	s.Require().NoError(staging.Set(ctx, "/members/7/mandates", []byte(`{"env":"staging"}`), 0))

	removed, err := staging.Invalidate(ctx, "/members/7/mandates")
	s.Require().NoError(err)
	s.Equal(1, removed)

	body, ok, err := s.cache.Get(ctx, "/members/7/mandates")
	s.Require().NoError(err)
	s.True(ok)
	s.JSONEq(`{"env":"default"}`, string(body))

	exists, err := s.redis.Client.Exists(ctx, "staging:/members/7/mandates").Result()
	s.Require().NoError(err)
	s.Zero(exists)
}
