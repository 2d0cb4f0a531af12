package storage

import "context"

// GrantStore es la abstracción de persistencia de grants. Implementaciones:
// memoria (tests/dev), Redis y Postgres.
//
// Semántica:
//   - Store hace upsert por Key (last-write-wins; los handles son single-owner).
//   - Get retorna (nil, nil) para keys ausentes. El filtrado por expiración es
//     responsabilidad de la capa grants; el store puede retener grants vencidos
//     hasta que el sweeper los barra.
//   - Remove es idempotente: borrar una key ausente no es error.
//   - Take es el borrow atómico read-and-delete para redención single-use.
//     Dos Take concurrentes sobre la misma key: exactamente uno recibe el grant.
type GrantStore interface {
	Store(ctx context.Context, grant *PersistedGrant) error
	Get(ctx context.Context, key string) (*PersistedGrant, error)
	Take(ctx context.Context, key string) (*PersistedGrant, error)
	Remove(ctx context.Context, key string) error
	GetAll(ctx context.Context, filter Filter) ([]*PersistedGrant, error)
	RemoveAll(ctx context.Context, filter Filter) error
	// RemoveExpired borra grants con Expiration anterior a now; retorna cuántos.
	// Idempotente, tolerante a corridas superpuestas del sweeper.
	RemoveExpired(ctx context.Context) (int, error)
}
