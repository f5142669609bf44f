package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/agency-crm/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Records are stored
// as JSON documents next to the indexed columns used for tenant scoping.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS agencies (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
	id          TEXT PRIMARY KEY,
	agency_id   TEXT NOT NULL,
	fiscal_code TEXT NOT NULL DEFAULT '',
	doc         TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_customers_agency ON customers(agency_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_agency_fiscal
	ON customers(agency_id, fiscal_code) WHERE fiscal_code <> '';

CREATE TABLE IF NOT EXISTS offers (
	id        TEXT PRIMARY KEY,
	agency_id TEXT NOT NULL,
	kind      TEXT NOT NULL,
	doc       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_offers_agency_kind ON offers(agency_id, kind);

CREATE TABLE IF NOT EXISTS audit_log (
	id        TEXT PRIMARY KEY,
	agency_id TEXT NOT NULL,
	action    TEXT NOT NULL,
	ts        TEXT NOT NULL,
	doc       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_agency_ts ON audit_log(agency_id, ts);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Customers ---

func (s *SQLiteStore) ListCustomers(ctx context.Context, agencyID string) ([]model.Customer, error) {
	docs, err := s.queryDocs(ctx,
		`SELECT doc FROM customers WHERE agency_id = ? ORDER BY rowid`, agencyID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list customers for agency %s", agencyID)
	}
	return decodeDocs[model.Customer](docs)
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, agencyID, id string) (*model.Customer, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM customers WHERE agency_id = ? AND id = ?`, agencyID, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "customer %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get customer %s", id)
	}
	var c model.Customer
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal customer")
	}
	return &c, nil
}

func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	prepareNewCustomer(c)
	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal customer")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO customers (id, agency_id, fiscal_code, doc, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.AgencyID, c.FiscalCode, string(doc), formatTime(c.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: insert customer %s", c.ID)
}

func (s *SQLiteStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	assignPropertyIDs(c)
	c.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal customer")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET fiscal_code = ?, doc = ?, updated_at = ? WHERE agency_id = ? AND id = ?`,
		c.FiscalCode, string(doc), formatTime(c.UpdatedAt), c.AgencyID, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update customer %s", c.ID)
	}
	return checkRowsAffected(res, "customer", c.ID)
}

func (s *SQLiteStore) DeleteCustomer(ctx context.Context, agencyID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM customers WHERE agency_id = ? AND id = ?`, agencyID, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete customer %s", id)
	}
	return checkRowsAffected(res, "customer", id)
}

// --- Agencies ---

func (s *SQLiteStore) CreateAgency(ctx context.Context, a *model.Agency) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal agency")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agencies (id, doc, created_at) VALUES (?, ?, ?)`,
		a.ID, string(doc), formatTime(a.CreatedAt))
	return eris.Wrapf(err, "sqlite: insert agency %s", a.ID)
}

func (s *SQLiteStore) GetAgency(ctx context.Context, id string) (*model.Agency, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM agencies WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "agency %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get agency %s", id)
	}
	var a model.Agency
	if err := json.Unmarshal([]byte(doc), &a); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal agency")
	}
	return &a, nil
}

func (s *SQLiteStore) ListAgencies(ctx context.Context) ([]model.Agency, error) {
	docs, err := s.queryDocs(ctx, `SELECT doc FROM agencies ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list agencies")
	}
	return decodeDocs[model.Agency](docs)
}

// --- Offers ---

const (
	offerKindEnergy = "cte"
	offerKindCanvas = "canvas"
)

func (s *SQLiteStore) UpsertOffer(ctx context.Context, o *model.Offer) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return s.upsertOfferDoc(ctx, o.ID, o.AgencyID, offerKindEnergy, o)
}

func (s *SQLiteStore) ListOffers(ctx context.Context, agencyID string) ([]model.Offer, error) {
	docs, err := s.queryDocs(ctx,
		`SELECT doc FROM offers WHERE agency_id = ? AND kind = ? ORDER BY rowid`, agencyID, offerKindEnergy)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list offers for agency %s", agencyID)
	}
	return decodeDocs[model.Offer](docs)
}

func (s *SQLiteStore) UpsertCanvasOffer(ctx context.Context, o *model.CanvasOffer) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return s.upsertOfferDoc(ctx, o.ID, o.AgencyID, offerKindCanvas, o)
}

func (s *SQLiteStore) ListCanvasOffers(ctx context.Context, agencyID string) ([]model.CanvasOffer, error) {
	docs, err := s.queryDocs(ctx,
		`SELECT doc FROM offers WHERE agency_id = ? AND kind = ? ORDER BY rowid`, agencyID, offerKindCanvas)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list canvas offers for agency %s", agencyID)
	}
	return decodeDocs[model.CanvasOffer](docs)
}

func (s *SQLiteStore) upsertOfferDoc(ctx context.Context, id, agencyID, kind string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal offer")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO offers (id, agency_id, kind, doc) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET agency_id = excluded.agency_id, kind = excluded.kind, doc = excluded.doc`,
		id, agencyID, kind, string(doc))
	return eris.Wrapf(err, "sqlite: upsert offer %s", id)
}

// --- Audit ---

func (s *SQLiteStore) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	prepareAudit(rec)
	doc, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, agency_id, action, ts, doc) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.AgencyID, string(rec.Action), formatTime(rec.Timestamp), string(doc))
	return eris.Wrap(err, "sqlite: append audit")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, agencyID string, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	docs, err := s.queryDocs(ctx,
		`SELECT doc FROM audit_log WHERE agency_id = ? ORDER BY ts DESC, rowid DESC LIMIT ?`, agencyID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list audit for agency %s", agencyID)
	}
	return decodeDocs[model.AuditRecord](docs)
}

// helpers

func (s *SQLiteStore) queryDocs(ctx context.Context, query string, args ...any) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var docs [][]byte
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, []byte(doc))
	}
	return docs, rows.Err()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

// sqliteTimeLayout is fixed-width so timestamps sort lexicographically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}
