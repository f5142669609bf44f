package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/agency-crm/internal/cost"
	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/ocr"
	"github.com/sells-group/agency-crm/internal/resilience"
	"github.com/sells-group/agency-crm/pkg/anthropic"
)

type fakeLLM struct {
	calls   int
	lastReq anthropic.MessageRequest
	fn      func(n int) (*anthropic.MessageResponse, error)
}

func (f *fakeLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls++
	f.lastReq = req
	return f.fn(f.calls)
}

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) ExtractText(context.Context, ocr.Document) (string, error) {
	return f.text, f.err
}

func answer(text string) func(int) (*anthropic.MessageResponse, error) {
	return func(int) (*anthropic.MessageResponse, error) {
		return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}, nil
	}
}

const billJSON = "```json\n" + `{
  "document_type": "bill",
  "fiscal_code": " RSSMRA80A01H501U ",
  "client_name": "Mario Rossi",
  "type_hint": "person",
  "address": "Via Verdi 5",
  "city": "Torino",
  "is_resident": true,
  "commodity": "Gas",
  "supply_code": "0088 1234 5678 90",
  "supplier_name": "Iren",
  "total_consumption": 950,
  "detected_unit_price": 0.98,
  "detected_fixed_fee": 11.5
}` + "\n```"

var pdf = ocr.Document{Name: "bolletta.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")}

func fastRetry() resilience.Policy {
	return resilience.Policy{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestExtract_Success(t *testing.T) {
	llm := &fakeLLM{fn: answer(billJSON)}
	x := NewLLMExtractor(llm, fakeOCR{text: "BOLLETTA GAS ..."}, Options{Model: "m", MaxTokens: 512})

	bill, err := x.Extract(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentBill, bill.DocumentType)
	assert.Equal(t, "RSSMRA80A01H501U", bill.FiscalCode)
	assert.Equal(t, model.CustomerPerson, bill.TypeHint)
	assert.Equal(t, model.CommodityGas, bill.Commodity)
	assert.Equal(t, "00881234567890", bill.SupplyCode)
	require.NotNil(t, bill.IsResident)
	assert.True(t, *bill.IsResident)
	assert.InDelta(t, 950, bill.TotalConsumption, 0.001)

	assert.Equal(t, "m", llm.lastReq.Model)
	assert.EqualValues(t, 512, llm.lastReq.MaxTokens)
	require.Len(t, llm.lastReq.Messages, 1)
	assert.Contains(t, llm.lastReq.Messages[0].Content, "BOLLETTA GAS")
	assert.Empty(t, llm.lastReq.Messages[0].Images)
}

func TestExtract_RecordsCost(t *testing.T) {
	llm := &fakeLLM{fn: func(int) (*anthropic.MessageResponse, error) {
		return &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: billJSON}},
			Usage:   anthropic.TokenUsage{InputTokens: 1_000_000},
		}, nil
	}}
	tracker := cost.NewTracker(cost.NewCalculator(cost.Rates{"m": {Input: 2}}))
	x := NewLLMExtractor(llm, fakeOCR{text: "BOLLETTA"}, Options{Model: "m", Cost: tracker})

	_, err := x.Extract(context.Background(), pdf)
	require.NoError(t, err)
	total, calls := tracker.Total()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "2", total.String())
}

func TestExtract_ImageFallback(t *testing.T) {
	llm := &fakeLLM{fn: answer(`{"document_type":"ID_CARD","fiscal_code":"RSSMRA80A01H501U"}`)}
	unsupported := fakeOCR{err: eris.Wrap(ocr.ErrUnsupported, "png")}
	x := NewLLMExtractor(llm, unsupported, Options{Model: "m"})

	bill, err := x.Extract(context.Background(), ocr.Document{Name: "ci.png", MIMEType: "image/png", Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, model.DocumentIDCard, bill.DocumentType)
	require.Len(t, llm.lastReq.Messages[0].Images, 1)
	assert.Equal(t, "image/png", llm.lastReq.Messages[0].Images[0].MediaType)
}

func TestExtract_RetriesTransient(t *testing.T) {
	llm := &fakeLLM{fn: func(n int) (*anthropic.MessageResponse, error) {
		if n == 1 {
			return nil, resilience.Transient(errors.New("overloaded"), 529)
		}
		return answer(billJSON)(n)
	}}
	x := NewLLMExtractor(llm, fakeOCR{text: "x"}, Options{Model: "m", Retry: fastRetry()})

	_, err := x.Extract(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls)
}

func TestExtract_FailuresMapToExtractionFailed(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
		ocr  fakeOCR
	}{
		{"ocr error", &fakeLLM{fn: answer(billJSON)}, fakeOCR{err: errors.New("pdftotext missing")}},
		{"empty text", &fakeLLM{fn: answer(billJSON)}, fakeOCR{text: "  \n"}},
		{"model error", &fakeLLM{fn: func(int) (*anthropic.MessageResponse, error) { return nil, errors.New("401") }}, fakeOCR{text: "x"}},
		{"no json", &fakeLLM{fn: answer("I cannot read this document.")}, fakeOCR{text: "x"}},
		{"bad json", &fakeLLM{fn: answer(`{"fiscal_code": 12,}`)}, fakeOCR{text: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewLLMExtractor(tt.llm, tt.ocr, Options{Model: "m"})
			bill, err := x.Extract(context.Background(), pdf)
			assert.Nil(t, bill)
			assert.True(t, eris.Is(err, ErrExtractionFailed), "got %v", err)
		})
	}
}

func TestExtract_BreakerOpens(t *testing.T) {
	llm := &fakeLLM{fn: func(int) (*anthropic.MessageResponse, error) { return nil, errors.New("down") }}
	x := NewLLMExtractor(llm, fakeOCR{text: "x"}, Options{Model: "m", Breaker: resilience.NewBreaker("llm", 1, time.Hour)})

	_, err := x.Extract(context.Background(), pdf)
	require.Error(t, err)
	_, err = x.Extract(context.Background(), pdf)
	require.Error(t, err)
	assert.Equal(t, 1, llm.calls, "second call rejected by the open breaker")
}

func TestParseBill_Normalization(t *testing.T) {
	bill, err := ParseBill(`Here you go: {"commodity":"luce","document_type":"","type_hint":"robot","supply_code":"it001e12345678"} thanks`)
	require.NoError(t, err)
	assert.Equal(t, model.CommodityElectricity, bill.Commodity)
	assert.Equal(t, model.DocumentBill, bill.DocumentType)
	assert.Empty(t, bill.TypeHint)
	assert.Equal(t, "IT001E12345678", bill.SupplyCode)
	assert.Nil(t, bill.IsResident)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, cleanJSON(`prefix {"a":{"b":2}} suffix`))
	assert.Empty(t, cleanJSON("no object"))
}
