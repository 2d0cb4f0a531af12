package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGrantStore implementa GrantStore sobre Redis.
//
// Layout de keys:
//   - <prefix>:g:<key>        valor JSON del grant, con TTL = Expiration
//   - <prefix>:idx            set con todas las keys activas (para filtros)
//
// Redis expira los valores por TTL; RemoveExpired solo limpia el índice de
// miembros colgantes.
type RedisGrantStore struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

func NewRedisGrantStore(cfg RedisConfig) (*RedisGrantStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if cfg.Port == 0 {
		addr = cfg.Host + ":6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage: redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "janus"
	}
	return &RedisGrantStore{client: rdb, prefix: prefix}, nil
}

func (s *RedisGrantStore) grantKey(k string) string { return s.prefix + ":g:" + k }
func (s *RedisGrantStore) indexKey() string         { return s.prefix + ":idx" }

type redisGrant struct {
	Key          string     `json:"key"`
	Type         string     `json:"type"`
	ClientID     string     `json:"client_id"`
	SubjectID    string     `json:"sub,omitempty"`
	SessionID    string     `json:"sid,omitempty"`
	Description  string     `json:"description,omitempty"`
	CreationTime time.Time  `json:"creation_time"`
	Expiration   time.Time  `json:"expiration"`
	ConsumedTime *time.Time `json:"consumed_time,omitempty"`
	Data         string     `json:"data"`
}

func toRedis(g *PersistedGrant) redisGrant {
	return redisGrant{
		Key: g.Key, Type: g.Type, ClientID: g.ClientID,
		SubjectID: g.SubjectID, SessionID: g.SessionID, Description: g.Description,
		CreationTime: g.CreationTime, Expiration: g.Expiration,
		ConsumedTime: g.ConsumedTime, Data: g.Data,
	}
}

func (r redisGrant) grant() *PersistedGrant {
	return &PersistedGrant{
		Key: r.Key, Type: r.Type, ClientID: r.ClientID,
		SubjectID: r.SubjectID, SessionID: r.SessionID, Description: r.Description,
		CreationTime: r.CreationTime, Expiration: r.Expiration,
		ConsumedTime: r.ConsumedTime, Data: r.Data,
	}
}

func (s *RedisGrantStore) Store(ctx context.Context, grant *PersistedGrant) error {
	b, err := json.Marshal(toRedis(grant))
	if err != nil {
		return fmt.Errorf("storage: marshal grant: %w", err)
	}
	ttl := time.Until(grant.Expiration)
	if ttl <= 0 {
		// Ya vencido al escribir: bug upstream, pero no rompemos el upsert.
		ttl = time.Second
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.grantKey(grant.Key), b, ttl)
	pipe.SAdd(ctx, s.indexKey(), grant.Key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisGrantStore) Get(ctx context.Context, key string) (*PersistedGrant, error) {
	val, err := s.client.Get(ctx, s.grantKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decode(val)
}

// Take usa GETDEL: atómico en el server, un solo caller recibe el valor.
func (s *RedisGrantStore) Take(ctx context.Context, key string) (*PersistedGrant, error) {
	val, err := s.client.GetDel(ctx, s.grantKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.client.SRem(ctx, s.indexKey(), key)
	return s.decode(val)
}

func (s *RedisGrantStore) Remove(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.grantKey(key))
	pipe.SRem(ctx, s.indexKey(), key)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisGrantStore) GetAll(ctx context.Context, filter Filter) ([]*PersistedGrant, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	var out []*PersistedGrant
	for _, k := range keys {
		g, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if g == nil {
			continue // expirado por TTL, el sweep limpia el índice
		}
		if filter.Matches(g) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *RedisGrantStore) RemoveAll(ctx context.Context, filter Filter) error {
	matched, err := s.GetAll(ctx, filter)
	if err != nil {
		return err
	}
	for _, g := range matched {
		if err := s.Remove(ctx, g.Key); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisGrantStore) RemoveExpired(ctx context.Context) (int, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		exists, err := s.client.Exists(ctx, s.grantKey(k)).Result()
		if err != nil {
			return n, err
		}
		if exists == 0 {
			if err := s.client.SRem(ctx, s.indexKey(), k).Err(); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (s *RedisGrantStore) Close() error { return s.client.Close() }

func (s *RedisGrantStore) decode(val string) (*PersistedGrant, error) {
	var r redisGrant
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, fmt.Errorf("storage: corrupt grant record: %w", err)
	}
	return r.grant(), nil
}
