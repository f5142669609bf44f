// Package extract turns an uploaded document into an ExtractedBill using
// OCR and an LLM. Any failure is reported as ErrExtractionFailed and leaves
// no records behind; reconciliation only starts on a complete result.
package extract

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/agency-crm/internal/cost"
	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/ocr"
	"github.com/sells-group/agency-crm/internal/resilience"
	"github.com/sells-group/agency-crm/pkg/anthropic"
)

// ErrExtractionFailed is the single "analysis failed" condition callers see.
var ErrExtractionFailed = eris.New("extract: analysis failed")

// Extractor produces structured bill data from a document.
type Extractor interface {
	Extract(ctx context.Context, doc ocr.Document) (*model.ExtractedBill, error)
}

// Options tunes an LLMExtractor.
type Options struct {
	Model      string
	MaxTokens  int64
	RatePerSec float64
	Burst      int
	Retry      resilience.Policy
	Breaker    *resilience.Breaker
	Cost       *cost.Tracker
}

// LLMExtractor reads documents with OCR and asks the model for a JSON bill.
type LLMExtractor struct {
	client  anthropic.Client
	ocr     ocr.Extractor
	opts    Options
	limiter *rate.Limiter
}

// NewLLMExtractor creates an extractor. A nil breaker disables it.
func NewLLMExtractor(client anthropic.Client, text ocr.Extractor, opts Options) *LLMExtractor {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Retry.Name == "" {
		opts.Retry.Name = "anthropic.extract"
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &LLMExtractor{
		client:  client,
		ocr:     text,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
	}
}

// Extract runs OCR and the model on doc. Images that the OCR provider cannot
// read are sent to the model directly.
func (e *LLMExtractor) Extract(ctx context.Context, doc ocr.Document) (*model.ExtractedBill, error) {
	start := time.Now()
	bill, err := e.extract(ctx, doc)
	if err != nil {
		zap.L().Warn("extract: document failed",
			zap.String("document", doc.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, eris.Wrapf(ErrExtractionFailed, "extract: %s: %v", doc.Name, err)
	}
	zap.L().Info("extract: document analyzed",
		zap.String("document", doc.Name),
		zap.String("document_type", string(bill.DocumentType)),
		zap.String("commodity", string(bill.Commodity)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return bill, nil
}

func (e *LLMExtractor) extract(ctx context.Context, doc ocr.Document) (*model.ExtractedBill, error) {
	msg := anthropic.Message{Role: "user"}

	text, err := e.ocr.ExtractText(ctx, doc)
	switch {
	case err == nil:
		if strings.TrimSpace(text) == "" {
			return nil, eris.New("document has no readable text")
		}
		msg.Content = userPrompt(text)
	case eris.Is(err, ocr.ErrUnsupported) && strings.HasPrefix(doc.MIMEType, "image/"):
		msg.Images = []anthropic.Image{{MediaType: doc.MIMEType, Data: doc.Data}}
		msg.Content = imagePrompt
	default:
		return nil, eris.Wrap(err, "ocr")
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit")
	}

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       e.opts.Model,
		MaxTokens:   e.opts.MaxTokens,
		System:      anthropic.CachedSystem(systemPrompt),
		Messages:    []anthropic.Message{msg},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, e.opts.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if e.opts.Breaker == nil {
			return e.client.CreateMessage(ctx, req)
		}
		return resilience.Call(ctx, e.opts.Breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return e.client.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.Log(e.opts.Model, doc.Name)
	if e.opts.Cost != nil {
		u := resp.Usage
		spent := e.opts.Cost.Record(e.opts.Model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens)
		zap.L().Debug("extract: model cost",
			zap.String("document", doc.Name),
			zap.String("usd", spent.StringFixed(6)),
		)
	}

	return ParseBill(resp.Text())
}

// ParseBill decodes the model's answer into a normalized ExtractedBill.
func ParseBill(text string) (*model.ExtractedBill, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.New("model returned no JSON")
	}
	var bill model.ExtractedBill
	if err := json.Unmarshal([]byte(cleaned), &bill); err != nil {
		return nil, eris.Wrap(err, "decode model JSON")
	}
	normalize(&bill)
	return &bill, nil
}

func normalize(b *model.ExtractedBill) {
	trim := func(s *string) { *s = strings.TrimSpace(*s) }
	trim(&b.FiscalCode)
	trim(&b.ClientName)
	trim(&b.Address)
	trim(&b.City)
	trim(&b.Zip)
	trim(&b.SupplierName)
	b.SupplyCode = model.NormalizeSupplyCode(b.SupplyCode)

	b.Commodity = model.ParseCommodity(string(b.Commodity))

	switch strings.ToUpper(strings.TrimSpace(string(b.DocumentType))) {
	case string(model.DocumentIDCard), "ID", "IDENTITY", "CARTA_IDENTITA":
		b.DocumentType = model.DocumentIDCard
	default:
		b.DocumentType = model.DocumentBill
	}

	switch t := model.CustomerType(strings.ToUpper(string(b.TypeHint))); t {
	case model.CustomerPerson, model.CustomerCompany:
		b.TypeHint = t
	default:
		b.TypeHint = ""
	}
}

// cleanJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "```json"), "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
