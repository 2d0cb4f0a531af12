package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/observability/logger"
)

// Options controla los TTL de los decoradores.
type Options struct {
	// TTL para resultados positivos. Default: 60s.
	TTL time.Duration
	// NegativeTTL para misses (client/resource inexistente). Más corto que TTL
	// salvo configuración explícita. Default: 10s.
	NegativeTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 60 * time.Second
	}
	if o.NegativeTTL <= 0 {
		o.NegativeTTL = 10 * time.Second
	}
	return o
}

// negativeMarker es el valor cacheado para "no existe".
var negativeMarker = []byte("\x00nil")

func isNegative(b []byte) bool {
	return len(b) == len(negativeMarker) && string(b) == string(negativeMarker)
}

// canonKey arma una key determinística a partir de nombres: ordenados y unidos
// por coma, así "a b" y "b a" comparten entrada.
func canonKey(prefix string, names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return prefix + ":" + strings.Join(sorted, ",")
}

// ─── ClientStore ───

// CachingClientStore es un decorador read-through sobre un ClientStore.
// Composición, no herencia: mantiene el inner store detrás de la misma
// interfaz. singleflight colapsa misses concurrentes de la misma key.
type CachingClientStore struct {
	inner domain.ClientStore
	cache Client
	opts  Options
	sf    singleflight.Group
}

func NewCachingClientStore(inner domain.ClientStore, cache Client, opts Options) *CachingClientStore {
	return &CachingClientStore{inner: inner, cache: cache, opts: opts.withDefaults()}
}

func (s *CachingClientStore) FindClientByID(ctx context.Context, clientID string) (*domain.Client, error) {
	key := "client:" + clientID

	if b, err := s.cache.Get(ctx, key); err == nil {
		if isNegative(b) {
			return nil, nil
		}
		var c domain.Client
		if json.Unmarshal(b, &c) == nil {
			return &c, nil
		}
		// Entrada ilegible: descartarla y seguir al inner store.
		_ = s.cache.Delete(ctx, key)
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		c, err := s.inner.FindClientByID(ctx, clientID)
		if err != nil {
			return nil, err
		}
		s.populate(ctx, key, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	c, _ := v.(*domain.Client)
	return c, nil
}

func (s *CachingClientStore) populate(ctx context.Context, key string, c *domain.Client) {
	if c == nil {
		_ = s.cache.Set(ctx, key, negativeMarker, s.opts.NegativeTTL)
		return
	}
	b, err := json.Marshal(c)
	if err != nil {
		logger.From(ctx).Warn("client cache marshal failed", logger.Err(err))
		return
	}
	_ = s.cache.Set(ctx, key, b, s.opts.TTL)
}

// ─── ResourceStore ───

// CachingResourceStore es un decorador read-through sobre un ResourceStore.
type CachingResourceStore struct {
	inner domain.ResourceStore
	cache Client
	opts  Options
	sf    singleflight.Group
}

func NewCachingResourceStore(inner domain.ResourceStore, cache Client, opts Options) *CachingResourceStore {
	return &CachingResourceStore{inner: inner, cache: cache, opts: opts.withDefaults()}
}

// through es el read-through genérico: cache hit deserializa, miss ejecuta
// load bajo singleflight y puebla.
func through[T any](ctx context.Context, s *CachingResourceStore, key string, load func() (T, error)) (T, error) {
	var zero T
	if b, err := s.cache.Get(ctx, key); err == nil && !isNegative(b) {
		var out T
		if json.Unmarshal(b, &out) == nil {
			return out, nil
		}
		_ = s.cache.Delete(ctx, key)
	}
	v, err, _ := s.sf.Do(key, func() (any, error) {
		out, err := load()
		if err != nil {
			return zero, err
		}
		if b, err := json.Marshal(out); err == nil {
			_ = s.cache.Set(ctx, key, b, s.opts.TTL)
		}
		return out, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (s *CachingResourceStore) FindIdentityResourcesByScopeName(ctx context.Context, scopeNames []string) ([]domain.IdentityResource, error) {
	return through(ctx, s, canonKey("res:identity", scopeNames), func() ([]domain.IdentityResource, error) {
		return s.inner.FindIdentityResourcesByScopeName(ctx, scopeNames)
	})
}

func (s *CachingResourceStore) FindAPIScopesByName(ctx context.Context, scopeNames []string) ([]domain.APIScope, error) {
	return through(ctx, s, canonKey("res:scope", scopeNames), func() ([]domain.APIScope, error) {
		return s.inner.FindAPIScopesByName(ctx, scopeNames)
	})
}

func (s *CachingResourceStore) FindAPIResourcesByScopeName(ctx context.Context, scopeNames []string) ([]domain.APIResource, error) {
	return through(ctx, s, canonKey("res:api-by-scope", scopeNames), func() ([]domain.APIResource, error) {
		return s.inner.FindAPIResourcesByScopeName(ctx, scopeNames)
	})
}

func (s *CachingResourceStore) FindAPIResourcesByName(ctx context.Context, names []string) ([]domain.APIResource, error) {
	return through(ctx, s, canonKey("res:api", names), func() ([]domain.APIResource, error) {
		return s.inner.FindAPIResourcesByName(ctx, names)
	})
}

func (s *CachingResourceStore) All(ctx context.Context) (domain.Resources, error) {
	return through(ctx, s, "res:all", func() (domain.Resources, error) {
		return s.inner.All(ctx)
	})
}

// ─── CORS ───

// CachingCORSOriginService cachea decisiones de origin por TTL.
type CachingCORSOriginService struct {
	inner domain.CORSOriginService
	cache Client
	opts  Options
	sf    singleflight.Group
}

func NewCachingCORSOriginService(inner domain.CORSOriginService, cache Client, opts Options) *CachingCORSOriginService {
	return &CachingCORSOriginService{inner: inner, cache: cache, opts: opts.withDefaults()}
}

func (s *CachingCORSOriginService) IsOriginAllowed(ctx context.Context, origin string) (bool, error) {
	key := "cors:" + strings.ToLower(origin)
	if b, err := s.cache.Get(ctx, key); err == nil && len(b) == 1 {
		return b[0] == '1', nil
	}
	v, err, _ := s.sf.Do(key, func() (any, error) {
		allowed, err := s.inner.IsOriginAllowed(ctx, origin)
		if err != nil {
			return false, err
		}
		val := []byte("0")
		ttl := s.opts.NegativeTTL
		if allowed {
			val = []byte("1")
			ttl = s.opts.TTL
		}
		_ = s.cache.Set(ctx, key, val, ttl)
		return allowed, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
