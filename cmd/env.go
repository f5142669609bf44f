package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agency-crm/internal/cost"
	"github.com/sells-group/agency-crm/internal/crmsync"
	"github.com/sells-group/agency-crm/internal/extract"
	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/ocr"
	"github.com/sells-group/agency-crm/internal/reconcile"
	"github.com/sells-group/agency-crm/internal/resilience"
	"github.com/sells-group/agency-crm/internal/store"
	anthropicpkg "github.com/sells-group/agency-crm/pkg/anthropic"
	"github.com/sells-group/agency-crm/pkg/salesforce"
)

// appEnv holds the store and engine shared by the commands.
type appEnv struct {
	Store  store.Store
	Engine *reconcile.Engine
	Syncer *crmsync.Syncer // nil when Salesforce is not configured
}

// Close releases the store.
func (a *appEnv) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

// initEnv validates config for mode, opens and migrates the store and builds
// the engine. CRM sync is attached when Salesforce is configured.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &appEnv{Store: st}
	var opts []reconcile.Option
	if cfg.Salesforce.Enabled() {
		sf, err := initSalesforce()
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		env.Syncer = crmsync.NewSyncer(sf)
		opts = append(opts, reconcile.WithSavedHook(env.Syncer.Hook()))
		zap.L().Info("salesforce sync enabled")
	} else {
		zap.L().Debug("salesforce not configured, crm sync disabled")
	}

	env.Engine = reconcile.NewEngine(st, opts...)
	return env, nil
}

func initSalesforce() (salesforce.Client, error) {
	return salesforce.Dial(salesforce.JWTConfig{
		LoginURL: cfg.Salesforce.LoginURL,
		Username: cfg.Salesforce.Username,
		ClientID: cfg.Salesforce.ClientID,
		KeyPath:  cfg.Salesforce.KeyPath,
	}, salesforce.WithRateLimit(cfg.Salesforce.RateLimit))
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initExtractor builds the OCR + LLM document extractor.
func initExtractor(tracker *cost.Tracker) (extract.Extractor, error) {
	text, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		return nil, err
	}

	retry := resilience.DefaultPolicy("anthropic.extract")
	retry.Attempts = cfg.Extract.MaxAttempts
	if cfg.Extract.InitialBackoffMs > 0 {
		retry.Backoff = time.Duration(cfg.Extract.InitialBackoffMs) * time.Millisecond
	}
	if cfg.Extract.MaxBackoffMs > 0 {
		retry.MaxBackoff = time.Duration(cfg.Extract.MaxBackoffMs) * time.Millisecond
	}

	var breaker *resilience.Breaker
	if cfg.Extract.BreakerThreshold > 0 {
		breaker = resilience.NewBreaker("anthropic", cfg.Extract.BreakerThreshold,
			time.Duration(cfg.Extract.BreakerCooldownS)*time.Second)
	}

	return extract.NewLLMExtractor(anthropicpkg.NewClient(cfg.Anthropic.Key), text, extract.Options{
		Model:      cfg.Anthropic.Model,
		MaxTokens:  cfg.Anthropic.MaxTokens,
		RatePerSec: cfg.Extract.RatePerSec,
		Burst:      cfg.Extract.Burst,
		Retry:      retry,
		Breaker:    breaker,
		Cost:       tracker,
	}), nil
}

func tenantContext() model.TenantContext {
	return model.TenantContext{AgencyID: agencyID, Actor: actor}
}

// readBill loads an ExtractedBill from a JSON file.
func readBill(path string) (*model.ExtractedBill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read bill %s", path)
	}
	var bill model.ExtractedBill
	if err := json.Unmarshal(data, &bill); err != nil {
		return nil, eris.Wrapf(err, "decode bill %s", path)
	}
	return &bill, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
