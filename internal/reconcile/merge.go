package reconcile

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/store"
)

// MergeCustomers folds source into target and deletes source. Lists are
// concatenated without dedup and target's scalar fields win. Target is
// written before source is deleted; a failed delete leaves both records
// present and is returned as an error.
func (e *Engine) MergeCustomers(ctx context.Context, tc model.TenantContext, targetID, sourceID string) (*model.Customer, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if targetID == sourceID {
		return nil, ErrSameCustomer
	}

	target, err := e.loadCustomer(ctx, tc, targetID)
	if err != nil {
		return nil, err
	}
	source, err := e.loadCustomer(ctx, tc, sourceID)
	if err != nil {
		return nil, err
	}

	target.Properties = append(target.Properties, source.Properties...)
	target.MobileLines = append(target.MobileLines, source.MobileLines...)
	target.Vehicles = append(target.Vehicles, source.Vehicles...)

	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&target.Email, source.Email)
	fill(&target.Phone, source.Phone)
	fill(&target.BirthDate, source.BirthDate)
	fill(&target.BirthPlace, source.BirthPlace)

	if err := e.store.UpdateCustomer(ctx, target); err != nil {
		return nil, eris.Wrapf(err, "merge: save target %s", target.ID)
	}
	if err := e.store.DeleteCustomer(ctx, tc.AgencyID, source.ID); err != nil {
		zap.L().Error("merge: partially applied, target updated but source not deleted",
			zap.String("agency_id", tc.AgencyID),
			zap.String("target_id", target.ID),
			zap.String("source_id", source.ID),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "merge: delete source %s", source.ID)
	}
	e.saved(ctx, target)

	if err := e.audit(ctx, tc, model.AuditCustomerMerge, fmt.Sprintf("%s -> %s", source.ID, target.ID)); err != nil {
		return nil, err
	}

	zap.L().Info("merge: customers merged",
		zap.String("agency_id", tc.AgencyID),
		zap.String("target_id", target.ID),
		zap.String("source_id", source.ID),
		zap.Int("properties", len(target.Properties)),
	)
	return target, nil
}

// BuildingMergeRequest moves every family property at SourceKey onto
// TargetKey. Keys are address keys; raw addresses are normalized.
type BuildingMergeRequest struct {
	FamilyID  string
	TargetKey string
	SourceKey string
}

// BuildingMergeResult lists the customers that were rewritten.
type BuildingMergeResult struct {
	Updated []string `json:"updated"`
	Merged  int      `json:"merged"`
	Renamed int      `json:"renamed"`
}

// MergeBuilding corrects a duplicated address within a family. Members that
// already hold the target address get the source property merged into it
// and dropped; others have the source property renamed in place. Each
// member is persisted independently, so an error may leave earlier members
// updated.
func (e *Engine) MergeBuilding(ctx context.Context, tc model.TenantContext, req BuildingMergeRequest) (*BuildingMergeResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	targetKey, sourceKey := AddressKey(req.TargetKey), AddressKey(req.SourceKey)
	if targetKey == "" || sourceKey == "" || targetKey == sourceKey {
		return nil, eris.Wrap(ErrInvalidDecision, "merge: target and source addresses must differ")
	}

	customers, err := e.store.ListCustomers(ctx, tc.AgencyID)
	if err != nil {
		return nil, eris.Wrap(err, "merge: list customers")
	}
	var family []*model.Customer
	for i := range customers {
		if customers[i].ID == req.FamilyID || (req.FamilyID != "" && customers[i].FamilyID == req.FamilyID) {
			family = append(family, &customers[i])
		}
	}
	if len(family) == 0 {
		return nil, eris.Wrapf(store.ErrNotFound, "merge: family %s", req.FamilyID)
	}

	ref := referenceProperty(family, targetKey)
	if ref == nil {
		return nil, eris.Wrapf(ErrInvalidDecision, "merge: no family property at %q", req.TargetKey)
	}
	refAddr, refCity, refZip := ref.Address, ref.City, ref.Zip

	res := &BuildingMergeResult{}
	for _, c := range family {
		merged, renamed := mergeMemberProperties(c, targetKey, sourceKey, refAddr, refCity, refZip)
		if merged+renamed == 0 {
			continue
		}
		if err := e.store.UpdateCustomer(ctx, c); err != nil {
			return res, eris.Wrapf(err, "merge: save family member %s", c.ID)
		}
		e.saved(ctx, c)
		res.Updated = append(res.Updated, c.ID)
		res.Merged += merged
		res.Renamed += renamed
	}

	details := fmt.Sprintf("%s: %s -> %s", req.FamilyID, sourceKey, targetKey)
	if err := e.audit(ctx, tc, model.AuditBuildingMerge, details); err != nil {
		return res, err
	}

	zap.L().Info("merge: building merged",
		zap.String("agency_id", tc.AgencyID),
		zap.String("family_id", req.FamilyID),
		zap.Int("customers", len(res.Updated)),
		zap.Int("merged", res.Merged),
		zap.Int("renamed", res.Renamed),
	)
	return res, nil
}

func referenceProperty(family []*model.Customer, key string) *model.Property {
	for _, c := range family {
		for i := range c.Properties {
			if AddressKey(c.Properties[i].Address) == key {
				return &c.Properties[i]
			}
		}
	}
	return nil
}

// mergeMemberProperties rewrites one member's property list. A renamed
// property becomes the member's target for any further source properties.
func mergeMemberProperties(c *model.Customer, targetKey, sourceKey, addr, city, zip string) (merged, renamed int) {
	target := -1
	for i := range c.Properties {
		if AddressKey(c.Properties[i].Address) == targetKey {
			target = i
			break
		}
	}

	drop := make(map[int]bool)
	for i := range c.Properties {
		if AddressKey(c.Properties[i].Address) != sourceKey {
			continue
		}
		if target >= 0 {
			mergeProperty(&c.Properties[target], &c.Properties[i])
			drop[i] = true
			merged++
			continue
		}
		c.Properties[i].Address, c.Properties[i].City, c.Properties[i].Zip = addr, city, zip
		target = i
		renamed++
	}

	if len(drop) > 0 {
		kept := make([]model.Property, 0, len(c.Properties)-len(drop))
		for i, p := range c.Properties {
			if !drop[i] {
				kept = append(kept, p)
			}
		}
		c.Properties = kept
	}
	return merged, renamed
}

// mergeProperty keeps dst's non-empty sub-records and takes src's for the
// rest. Residency is OR'd.
func mergeProperty(dst, src *model.Property) {
	if dst.Electricity.Empty() && !src.Electricity.Empty() {
		dst.Electricity = src.Electricity
	}
	if dst.Gas.Empty() && !src.Gas.Empty() {
		dst.Gas = src.Gas
	}
	if dst.Connectivity.Empty() && !src.Connectivity.Empty() {
		dst.Connectivity = src.Connectivity
	}
	dst.IsResident = dst.IsResident || src.IsResident
}
