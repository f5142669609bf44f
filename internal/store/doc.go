package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/agency-crm/internal/model"
)

// prepareNewCustomer assigns IDs and timestamps before the first write.
// Properties without an ID get one so later decisions can reference them.
func prepareNewCustomer(c *model.Customer) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	assignPropertyIDs(c)
}

func assignPropertyIDs(c *model.Customer) {
	if c.Properties == nil {
		c.Properties = []model.Property{}
	}
	for i := range c.Properties {
		if c.Properties[i].ID == "" {
			c.Properties[i].ID = uuid.New().String()
		}
	}
}

func prepareAudit(rec *model.AuditRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
}

func decodeDocs[T any](docs [][]byte) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d, &v); err != nil {
			return nil, eris.Wrap(err, "store: decode document")
		}
		out = append(out, v)
	}
	return out, nil
}
