package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/agency-crm/internal/cost"
	"github.com/sells-group/agency-crm/internal/extract"
	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/ocr"
	"github.com/sells-group/agency-crm/internal/reconcile"
)

var analyzeChoice string

// analyzed is the per-file outcome printed by analyze.
type analyzed struct {
	File   string            `json:"file"`
	Result *reconcile.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Extract and reconcile bills or ID cards",
	Long: "Extracts each document (PDF, image, or an already-extracted .json bill) in parallel, " +
		"then reconciles them one at a time in argument order. With --choice, the single " +
		"document is saved against that property id (or NEW) after an ambiguous match.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if analyzeChoice != "" && len(args) != 1 {
			return eris.New("--choice applies to exactly one document")
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		var x extract.Extractor
		tracker := cost.NewTracker(cost.NewCalculator(cost.DefaultRates()))
		if needsExtraction(args) {
			if err := cfg.Validate("analyze"); err != nil {
				return err
			}
			if x, err = initExtractor(tracker); err != nil {
				return err
			}
		}

		bills, errs := extractAll(ctx, x, args, cfg.Extract.Concurrency)
		if spent, calls := tracker.Total(); calls > 0 {
			zap.L().Info("analyze: extraction cost",
				zap.Int("calls", calls),
				zap.String("usd", spent.StringFixed(4)),
			)
		}

		tc := tenantContext()
		out := make([]analyzed, len(args))
		for i, file := range args {
			out[i].File = file
			if errs[i] != nil {
				out[i].Error = errs[i].Error()
				continue
			}
			var res *reconcile.Result
			if analyzeChoice != "" {
				res, err = env.Engine.SaveAnalyzedBill(ctx, tc, bills[i], analyzeChoice)
			} else {
				res, err = env.Engine.AnalyzeBill(ctx, tc, bills[i])
			}
			if err != nil {
				zap.L().Error("analyze: reconcile failed", zap.String("file", file), zap.Error(err))
				out[i].Error = err.Error()
				continue
			}
			out[i].Result = res
		}
		return printJSON(out)
	},
}

func isBillJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func needsExtraction(paths []string) bool {
	for _, p := range paths {
		if !isBillJSON(p) {
			return true
		}
	}
	return false
}

// extractAll extracts documents with at most limit in flight. Per-file
// failures are returned positionally and never cancel the batch.
func extractAll(ctx context.Context, x extract.Extractor, paths []string, limit int) ([]*model.ExtractedBill, []error) {
	bills := make([]*model.ExtractedBill, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i, path := range paths {
		g.Go(func() error {
			if isBillJSON(path) {
				bills[i], errs[i] = readBill(path)
				return nil
			}
			doc, err := ocr.ReadDocument(path)
			if err != nil {
				errs[i] = err
				return nil
			}
			bills[i], errs[i] = x.Extract(gctx, doc)
			if errs[i] != nil {
				zap.L().Warn("analyze: extraction failed", zap.String("file", path), zap.Error(errs[i]))
			}
			return nil
		})
	}
	_ = g.Wait()
	return bills, errs
}

func init() {
	addTenantFlags(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeChoice, "choice", "", "property id or NEW, to resolve an ambiguous match")
	rootCmd.AddCommand(analyzeCmd)
}
