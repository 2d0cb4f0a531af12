package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGGrantStore implementa GrantStore sobre PostgreSQL usando pgxpool.
// Schema esperado: migrations/postgres/0001_persisted_grants.sql.
type PGGrantStore struct {
	pool *pgxpool.Pool
}

func NewPGGrantStore(pool *pgxpool.Pool) *PGGrantStore {
	return &PGGrantStore{pool: pool}
}

func (s *PGGrantStore) Store(ctx context.Context, grant *PersistedGrant) error {
	const q = `
		INSERT INTO persisted_grants
		    (key, type, client_id, subject_id, session_id, description, creation_time, expiration, consumed_time, data)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET
		    type = EXCLUDED.type,
		    client_id = EXCLUDED.client_id,
		    subject_id = EXCLUDED.subject_id,
		    session_id = EXCLUDED.session_id,
		    description = EXCLUDED.description,
		    creation_time = EXCLUDED.creation_time,
		    expiration = EXCLUDED.expiration,
		    consumed_time = EXCLUDED.consumed_time,
		    data = EXCLUDED.data`
	_, err := s.pool.Exec(ctx, q,
		grant.Key, grant.Type, grant.ClientID, grant.SubjectID, grant.SessionID,
		grant.Description, grant.CreationTime, grant.Expiration, grant.ConsumedTime, grant.Data)
	if err != nil {
		return fmt.Errorf("storage: upsert grant: %w", err)
	}
	return nil
}

const selectGrant = `
	SELECT key, type, client_id, COALESCE(subject_id,''), COALESCE(session_id,''),
	       COALESCE(description,''), creation_time, expiration, consumed_time, data
	FROM persisted_grants`

func (s *PGGrantStore) Get(ctx context.Context, key string) (*PersistedGrant, error) {
	row := s.pool.QueryRow(ctx, selectGrant+` WHERE key = $1`, key)
	g, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

// Take borra y retorna en un solo statement: DELETE ... RETURNING es atómico
// a nivel de fila, dos redenciones concurrentes reciben como mucho una fila.
func (s *PGGrantStore) Take(ctx context.Context, key string) (*PersistedGrant, error) {
	const q = `
		DELETE FROM persisted_grants WHERE key = $1
		RETURNING key, type, client_id, COALESCE(subject_id,''), COALESCE(session_id,''),
		          COALESCE(description,''), creation_time, expiration, consumed_time, data`
	row := s.pool.QueryRow(ctx, q, key)
	g, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (s *PGGrantStore) Remove(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM persisted_grants WHERE key = $1`, key)
	return err
}

func (s *PGGrantStore) GetAll(ctx context.Context, filter Filter) ([]*PersistedGrant, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	where, args := filterSQL(filter)
	rows, err := s.pool.Query(ctx, selectGrant+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PersistedGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PGGrantStore) RemoveAll(ctx context.Context, filter Filter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	where, args := filterSQL(filter)
	_, err := s.pool.Exec(ctx, `DELETE FROM persisted_grants`+where, args...)
	return err
}

func (s *PGGrantStore) RemoveExpired(ctx context.Context) (int, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM persisted_grants WHERE expiration < $1`, time.Now())
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// filterSQL arma el WHERE a partir de un Filter ya validado (no vacío).
func filterSQL(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.SubjectID != "" {
		add("subject_id = $%d", f.SubjectID)
	}
	if f.SessionID != "" {
		add("session_id = $%d", f.SessionID)
	}
	if f.ClientID != "" {
		add("client_id = $%d", f.ClientID)
	}
	if len(f.Types) > 0 {
		add("type = ANY($%d)", f.Types)
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*PersistedGrant, error) {
	var g PersistedGrant
	err := row.Scan(&g.Key, &g.Type, &g.ClientID, &g.SubjectID, &g.SessionID,
		&g.Description, &g.CreationTime, &g.Expiration, &g.ConsumedTime, &g.Data)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
