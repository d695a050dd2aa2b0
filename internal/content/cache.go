package content

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yangwenmai/readtrack/internal/logger"
)

// Cache stores serialized content responses.
type Cache interface {
	// Get returns the cached bytes; ok is false on a miss.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// RedisCache is a Cache backed by Redis. Keys are namespaced with a prefix.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisClient builds a go-redis client. It does not connect until first use.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// NewRedisCache wraps client. prefix is prepended to every key.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, val, ttl).Err()
}

// CachedService serves manifests, posts and the domain list from a Cache,
// falling back to the wrapped Service on a miss. Search is never cached.
// Cache failures are logged and treated as misses.
type CachedService struct {
	next  Service
	cache Cache
	ttl   time.Duration
	log   logger.Logger
}

// NewCachedService wraps next with cache.
func NewCachedService(next Service, cache Cache, ttl time.Duration, log logger.Logger) *CachedService {
	return &CachedService{next: next, cache: cache, ttl: ttl, log: log}
}

func rootManifestKey() string           { return "manifest" }
func domainManifestKey(d string) string { return "domain:" + d }
func postKey(d, slug string) string     { return "post:" + d + ":" + slug }
func domainsKey() string                { return "domains" }

func (s *CachedService) RootManifest(ctx context.Context) (*RootManifest, error) {
	return cached(ctx, s, rootManifestKey(), false, s.next.RootManifest)
}

func (s *CachedService) DomainManifest(ctx context.Context, domain string) (*DomainManifest, error) {
	return cached(ctx, s, domainManifestKey(domain), false, func(ctx context.Context) (*DomainManifest, error) {
		return s.next.DomainManifest(ctx, domain)
	})
}

func (s *CachedService) Post(ctx context.Context, domain, slug string) (*Post, error) {
	return cached(ctx, s, postKey(domain, slug), false, func(ctx context.Context) (*Post, error) {
		return s.next.Post(ctx, domain, slug)
	})
}

func (s *CachedService) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	return s.next.Search(ctx, p)
}

func (s *CachedService) Domains(ctx context.Context) (*DomainList, error) {
	return cached(ctx, s, domainsKey(), false, s.next.Domains)
}

// WarmRootManifest fetches the root manifest from upstream and stores it,
// ignoring any cached copy.
func (s *CachedService) WarmRootManifest(ctx context.Context) (*RootManifest, error) {
	return cached(ctx, s, rootManifestKey(), true, s.next.RootManifest)
}

// WarmDomainManifest refreshes the cached manifest of domain.
func (s *CachedService) WarmDomainManifest(ctx context.Context, domain string) error {
	_, err := cached(ctx, s, domainManifestKey(domain), true, func(ctx context.Context) (*DomainManifest, error) {
		return s.next.DomainManifest(ctx, domain)
	})
	return err
}

func cached[T any](ctx context.Context, s *CachedService, key string, refresh bool, fetch func(context.Context) (*T, error)) (*T, error) {
	if !refresh {
		raw, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.log.Warn("content cache get failed", logger.String("key", key), logger.Error(err))
		case ok:
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return &v, nil
			}
			s.log.Warn("content cache entry undecodable", logger.String("key", key))
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.Warn("content cache set failed", logger.String("key", key), logger.Error(err))
	}
	return v, nil
}
