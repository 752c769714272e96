package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docaudit/internal/audit"
	"github.com/dgallion1/docaudit/internal/parser"
)

var (
	auditLabID        string
	auditProduct      string
	auditManufacturer string
	auditUploadedBy   string
	auditChecklist    string
	auditPretty       bool
)

var auditCmd = &cobra.Command{
	Use:   "audit <file>",
	Short: "Audit one document and print the report as JSON",
	Example: `  docaudit audit dossier.pdf --product "Widget" --manufacturer "Acme"
  docaudit audit dossier.docx --lab lab-42 --checklist stages.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := cliLogger()

		path := args[0]
		if !parser.IsSupportedExtension(path) {
			return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		req := audit.Request{
			Filename:     filepath.Base(path),
			LabID:        auditLabID,
			ProductName:  auditProduct,
			Manufacturer: auditManufacturer,
			UploadedBy:   auditUploadedBy,
		}
		if auditChecklist != "" {
			req.Checklist, err = readChecklist(auditChecklist)
			if err != nil {
				return err
			}
		}

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.processor.Process(ctx, req, data, nil)
		if err != nil {
			return err
		}
		if out.StoreErr != nil {
			log.Warn("report not persisted", "error", out.StoreErr)
		}
		if out.ReportID != "" {
			log.Info("report stored", "report_id", out.ReportID, "cached", out.Cached)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if auditPretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(out.Report)
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditLabID, "lab", "", "lab ID used to resolve a lab-specific API key")
	auditCmd.Flags().StringVar(&auditProduct, "product", "", "product name")
	auditCmd.Flags().StringVar(&auditManufacturer, "manufacturer", "", "manufacturer name")
	auditCmd.Flags().StringVar(&auditUploadedBy, "uploaded-by", "", "user recorded with the stored report")
	auditCmd.Flags().StringVar(&auditChecklist, "checklist", "", "JSON file with the lab's checklist stages")
	auditCmd.Flags().BoolVar(&auditPretty, "pretty", true, "indent the JSON output")
}

// readChecklist loads a JSON array of checklist stages.
func readChecklist(path string) ([]audit.ChecklistStage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist: %w", err)
	}
	var stages []audit.ChecklistStage
	if err := json.Unmarshal(data, &stages); err != nil {
		return nil, fmt.Errorf("parse checklist %s: %w", path, err)
	}
	return stages, nil
}
