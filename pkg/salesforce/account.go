package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// FiscalCodeField is the custom Account field holding the customer's
// codice fiscale or partita IVA.
const FiscalCodeField = "Fiscal_Code__c"

// Account represents a Salesforce Account record mirrored from a customer.
type Account struct {
	ID                string `json:"Id" salesforce:"Id"`
	Name              string `json:"Name" salesforce:"Name"`
	FiscalCode        string `json:"Fiscal_Code__c" salesforce:"Fiscal_Code__c"`
	AgencyID          string `json:"Agency_Id__c" salesforce:"Agency_Id__c"`
	Type              string `json:"Type" salesforce:"Type"`
	Phone             string `json:"Phone" salesforce:"Phone"`
	BillingStreet     string `json:"BillingStreet" salesforce:"BillingStreet"`
	BillingCity       string `json:"BillingCity" salesforce:"BillingCity"`
	BillingPostalCode string `json:"BillingPostalCode" salesforce:"BillingPostalCode"`
}

var accountFields = []string{
	"Id", "Name", FiscalCodeField, "Agency_Id__c", "Type", "Phone",
	"BillingStreet", "BillingCity", "BillingPostalCode",
}

// FindAccountByFiscalCode returns the agency's Account for a fiscal code,
// or nil when none exists.
func FindAccountByFiscalCode(ctx context.Context, c Client, agencyID, fiscalCode string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE %s = '%s' AND Agency_Id__c = '%s' LIMIT 1",
		strings.Join(accountFields, ", "),
		FiscalCodeField,
		escapeSoql(fiscalCode),
		escapeSoql(agencyID),
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account by fiscal code %s", fiscalCode))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// CreateAccount creates a new Account record and returns the new Salesforce ID.
func CreateAccount(ctx context.Context, c Client, fields map[string]any) (string, error) {
	if fields["Name"] == nil || fields["Name"] == "" {
		return "", eris.New("sf: account Name is required")
	}
	id, err := c.InsertOne(ctx, "Account", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create account")
	}
	return id, nil
}

// UpdateAccount updates an Account record with the given fields.
func UpdateAccount(ctx context.Context, c Client, accountID string, fields map[string]any) error {
	if accountID == "" {
		return eris.New("sf: account id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Account", accountID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update account %s", accountID))
	}
	return nil
}

// AccountUpdate holds an account ID and the fields to update.
type AccountUpdate struct {
	ID     string
	Fields map[string]any
}

// BulkUpdateAccounts splits updates into batches of 200 (SF Collections API limit)
// and sends them via UpdateCollection.
func BulkUpdateAccounts(ctx context.Context, c Client, updates []AccountUpdate) ([]CollectionResult, error) {
	var all []CollectionResult
	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))

		records := make([]CollectionRecord, 0, end-start)
		for _, u := range updates[start:end] {
			records = append(records, CollectionRecord(u))
		}

		results, err := c.UpdateCollection(ctx, "Account", records)
		if err != nil {
			return all, eris.Wrap(err, fmt.Sprintf("sf: bulk update accounts batch %d-%d", start, end))
		}
		all = append(all, results...)
	}
	return all, nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(s)
}
