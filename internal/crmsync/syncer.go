// Package crmsync mirrors reconciled customers into Salesforce as Accounts.
package crmsync

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/reconcile"
	"github.com/sells-group/agency-crm/pkg/salesforce"
)

// Syncer upserts customers into Salesforce, keyed by fiscal code.
type Syncer struct {
	client salesforce.Client
}

// NewSyncer creates a Syncer over the given Salesforce client.
func NewSyncer(client salesforce.Client) *Syncer {
	return &Syncer{client: client}
}

// SyncCustomer finds the agency's Account for the customer's fiscal code and
// updates it, or creates one when none exists. It returns the Account ID.
func (s *Syncer) SyncCustomer(ctx context.Context, c *model.Customer) (string, error) {
	if c.FiscalCode == "" {
		return "", eris.New("crmsync: customer has no fiscal code")
	}

	fields := accountFields(c)
	acct, err := salesforce.FindAccountByFiscalCode(ctx, s.client, c.AgencyID, c.FiscalCode)
	if err != nil {
		return "", eris.Wrap(err, "crmsync: lookup account")
	}

	if acct != nil {
		if err := salesforce.UpdateAccount(ctx, s.client, acct.ID, fields); err != nil {
			return "", eris.Wrap(err, "crmsync: update account")
		}
		zap.L().Debug("crmsync: account updated",
			zap.String("account_id", acct.ID),
			zap.String("customer_id", c.ID),
		)
		return acct.ID, nil
	}

	id, err := salesforce.CreateAccount(ctx, s.client, fields)
	if err != nil {
		return "", eris.Wrap(err, "crmsync: create account")
	}
	zap.L().Info("crmsync: account created",
		zap.String("account_id", id),
		zap.String("customer_id", c.ID),
	)
	return id, nil
}

// Hook adapts the Syncer into an engine save hook. Sync failures are logged
// and never surface to the caller.
func (s *Syncer) Hook() reconcile.SavedHook {
	return func(ctx context.Context, c *model.Customer) {
		if _, err := s.SyncCustomer(ctx, c); err != nil {
			zap.L().Warn("crmsync: sync failed",
				zap.String("customer_id", c.ID),
				zap.String("fiscal_code", c.FiscalCode),
				zap.Error(err),
			)
		}
	}
}

func accountFields(c *model.Customer) map[string]any {
	fields := map[string]any{
		"Name":                     c.DisplayName(),
		salesforce.FiscalCodeField: c.FiscalCode,
		"Agency_Id__c":             c.AgencyID,
		"Type":                     accountType(c.Type),
	}
	if c.Phone != "" {
		fields["Phone"] = c.Phone
	}
	if p := billingProperty(c); p != nil {
		fields["BillingStreet"] = p.Address
		fields["BillingCity"] = p.City
		fields["BillingPostalCode"] = p.Zip
	}
	if strings.TrimSpace(fields["Name"].(string)) == "" {
		fields["Name"] = c.FiscalCode
	}
	return fields
}

func accountType(t model.CustomerType) string {
	if t == model.CustomerCompany {
		return "Business"
	}
	return "Household"
}

// billingProperty prefers the active residence, then any active property.
func billingProperty(c *model.Customer) *model.Property {
	var fallback *model.Property
	for i := range c.Properties {
		p := &c.Properties[i]
		if p.Status != model.PropertyActive || reconcile.IsPlaceholderAddress(p.Address) {
			continue
		}
		if p.IsResident {
			return p
		}
		if fallback == nil {
			fallback = p
		}
	}
	return fallback
}

// Report summarizes a bulk sync.
type Report struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// SyncAll mirrors many customers. Existing Accounts are updated through the
// Collections API in batches; missing ones are created one by one. Per-customer
// failures are collected in the report rather than aborting the run.
func (s *Syncer) SyncAll(ctx context.Context, customers []model.Customer) (*Report, error) {
	report := &Report{}
	var updates []salesforce.AccountUpdate
	for i := range customers {
		c := &customers[i]
		if c.FiscalCode == "" {
			report.Failed = append(report.Failed, c.ID)
			continue
		}
		acct, err := salesforce.FindAccountByFiscalCode(ctx, s.client, c.AgencyID, c.FiscalCode)
		if err != nil {
			return report, eris.Wrap(err, "crmsync: lookup account")
		}
		if acct != nil {
			updates = append(updates, salesforce.AccountUpdate{ID: acct.ID, Fields: accountFields(c)})
			continue
		}
		if _, err := salesforce.CreateAccount(ctx, s.client, accountFields(c)); err != nil {
			zap.L().Warn("crmsync: create account failed", zap.String("customer_id", c.ID), zap.Error(err))
			report.Failed = append(report.Failed, c.ID)
			continue
		}
		report.Created++
	}

	results, err := salesforce.BulkUpdateAccounts(ctx, s.client, updates)
	for _, r := range results {
		if r.Success {
			report.Updated++
		} else {
			report.Failed = append(report.Failed, r.ID)
		}
	}
	if err != nil {
		return report, eris.Wrap(err, "crmsync: bulk update")
	}

	zap.L().Info("crmsync: bulk sync complete",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}
