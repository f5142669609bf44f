package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/agency-crm/internal/db"
	"github.com/sells-group/agency-crm/internal/model"
)

// PostgresStore implements Store using pgxpool. Documents live in JSONB
// columns; agency_id and fiscal_code are denormalized for indexed lookups.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS agencies (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS customers (
	id          TEXT PRIMARY KEY,
	agency_id   TEXT NOT NULL,
	fiscal_code TEXT NOT NULL DEFAULT '',
	doc         JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_customers_agency ON customers(agency_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_agency_fiscal
	ON customers(agency_id, fiscal_code) WHERE fiscal_code <> '';

CREATE TABLE IF NOT EXISTS offers (
	id        TEXT PRIMARY KEY,
	agency_id TEXT NOT NULL,
	kind      TEXT NOT NULL,
	doc       JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_offers_agency_kind ON offers(agency_id, kind);

CREATE TABLE IF NOT EXISTS audit_log (
	id        TEXT PRIMARY KEY,
	agency_id TEXT NOT NULL,
	action    TEXT NOT NULL,
	ts        TIMESTAMPTZ NOT NULL,
	doc       JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_agency_ts ON audit_log(agency_id, ts DESC);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Customers ---

func (s *PostgresStore) ListCustomers(ctx context.Context, agencyID string) ([]model.Customer, error) {
	docs, err := s.queryDocs(ctx,
		`SELECT doc FROM customers WHERE agency_id = $1 ORDER BY created_at, id`, agencyID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list customers for agency %s", agencyID)
	}
	return decodeDocs[model.Customer](docs)
}

func (s *PostgresStore) GetCustomer(ctx context.Context, agencyID, id string) (*model.Customer, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM customers WHERE agency_id = $1 AND id = $2`, agencyID, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "customer %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get customer %s", id)
	}
	var c model.Customer
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal customer")
	}
	return &c, nil
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	prepareNewCustomer(c)
	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal customer")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO customers (id, agency_id, fiscal_code, doc, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.AgencyID, c.FiscalCode, doc, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert customer %s", c.ID)
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	assignPropertyIDs(c)
	c.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal customer")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE customers SET fiscal_code = $1, doc = $2, updated_at = $3 WHERE agency_id = $4 AND id = $5`,
		c.FiscalCode, doc, c.UpdatedAt, c.AgencyID, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update customer %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "customer %s", c.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteCustomer(ctx context.Context, agencyID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM customers WHERE agency_id = $1 AND id = $2`, agencyID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete customer %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "customer %s", id)
	}
	return nil
}

// --- Agencies ---

func (s *PostgresStore) CreateAgency(ctx context.Context, a *model.Agency) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal agency")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO agencies (id, doc, created_at) VALUES ($1, $2, $3)`, a.ID, doc, a.CreatedAt)
	return eris.Wrapf(err, "postgres: insert agency %s", a.ID)
}

func (s *PostgresStore) GetAgency(ctx context.Context, id string) (*model.Agency, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM agencies WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "agency %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get agency %s", id)
	}
	var a model.Agency
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal agency")
	}
	return &a, nil
}

func (s *PostgresStore) ListAgencies(ctx context.Context) ([]model.Agency, error) {
	docs, err := s.queryDocs(ctx, `SELECT doc FROM agencies ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list agencies")
	}
	return decodeDocs[model.Agency](docs)
}

// --- Offers ---

func (s *PostgresStore) UpsertOffer(ctx context.Context, o *model.Offer) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return s.upsertOfferDoc(ctx, o.ID, o.AgencyID, offerKindEnergy, o)
}

func (s *PostgresStore) ListOffers(ctx context.Context, agencyID string) ([]model.Offer, error) {
	docs, err := s.queryDocs(ctx,
		`SELECT doc FROM offers WHERE agency_id = $1 AND kind = $2 ORDER BY id`, agencyID, offerKindEnergy)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list offers for agency %s", agencyID)
	}
	return decodeDocs[model.Offer](docs)
}

func (s *PostgresStore) UpsertCanvasOffer(ctx context.Context, o *model.CanvasOffer) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return s.upsertOfferDoc(ctx, o.ID, o.AgencyID, offerKindCanvas, o)
}

func (s *PostgresStore) ListCanvasOffers(ctx context.Context, agencyID string) ([]model.CanvasOffer, error) {
	docs, err := s.queryDocs(ctx,
		`SELECT doc FROM offers WHERE agency_id = $1 AND kind = $2 ORDER BY id`, agencyID, offerKindCanvas)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list canvas offers for agency %s", agencyID)
	}
	return decodeDocs[model.CanvasOffer](docs)
}

func (s *PostgresStore) upsertOfferDoc(ctx context.Context, id, agencyID, kind string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal offer")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO offers (id, agency_id, kind, doc) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET agency_id = EXCLUDED.agency_id, kind = EXCLUDED.kind, doc = EXCLUDED.doc`,
		id, agencyID, kind, doc)
	return eris.Wrapf(err, "postgres: upsert offer %s", id)
}

// --- Audit ---

func (s *PostgresStore) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	prepareAudit(rec)
	doc, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit record")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, agency_id, action, ts, doc) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.AgencyID, string(rec.Action), rec.Timestamp, doc)
	return eris.Wrap(err, "postgres: append audit")
}

func (s *PostgresStore) ListAudit(ctx context.Context, agencyID string, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	docs, err := s.queryDocs(ctx,
		`SELECT doc FROM audit_log WHERE agency_id = $1 ORDER BY ts DESC LIMIT $2`, agencyID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list audit for agency %s", agencyID)
	}
	return decodeDocs[model.AuditRecord](docs)
}

func (s *PostgresStore) queryDocs(ctx context.Context, query string, args ...any) ([][]byte, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
