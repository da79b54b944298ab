package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

var (
	classifyGroups string
	classifyPDF    string
	classifyTitle  string
	classifyVendor string
	classifyVAT    string
	classifyLines  []string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Suggest a commodity group for a procurement request",
	Long: `Classifies a request against the commodity groups listed in --groups, a
JSON array of {"id","label","category"} objects. The request comes either
from flags or from a PDF that is extracted first with --pdf.`,
	Args: cobra.NoArgs,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyGroups, "groups", "g", "", "JSON file with the available commodity groups (required)")
	classifyCmd.Flags().StringVar(&classifyPDF, "pdf", "", "extract the request from this PDF")
	classifyCmd.Flags().StringVar(&classifyTitle, "title", "", "request title")
	classifyCmd.Flags().StringVar(&classifyVendor, "vendor", "", "vendor name")
	classifyCmd.Flags().StringVar(&classifyVAT, "vat", "", "vendor VAT id")
	classifyCmd.Flags().StringArrayVar(&classifyLines, "line", nil, "order line description, repeatable")
	_ = classifyCmd.MarkFlagRequired("groups")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	groups, err := loadGroups(classifyGroups)
	if err != nil {
		return err
	}
	if classifyPDF == "" && classifyTitle == "" && len(classifyLines) == 0 {
		return errors.New("give --pdf, or --title and --line")
	}

	ctx := cmd.Context()
	app, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	req := entity.ClassificationRequest{
		Title:          classifyTitle,
		VendorName:     classifyVendor,
		VATID:          classifyVAT,
		OrderLinesText: classifyLines,
		Candidates:     groups,
		CorrelationID:  common.EnsureCorrelationID(""),
	}

	if classifyPDF != "" {
		data, err := os.ReadFile(classifyPDF)
		if err != nil {
			return err
		}
		res, err := app.Extraction.Extract(ctx, entity.RawDocument{
			Data:          data,
			Filename:      filepath.Base(classifyPDF),
			ContentType:   "application/pdf",
			CorrelationID: req.CorrelationID,
		})
		if err != nil {
			return fmt.Errorf("extract %s: %w", classifyPDF, err)
		}
		rec := res.Record
		req.Title = rec.Title
		req.VendorName = rec.VendorName
		req.VATID = rec.VATNumber
		req.OrderLinesText = rec.LineDescriptions()
	}

	dec, err := app.Classify.Classify(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(cmd, dec)
}

func loadGroups(path string) ([]entity.CommodityCandidate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var groups []entity.CommodityCandidate
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%s lists no commodity groups", path)
	}
	return groups, nil
}
