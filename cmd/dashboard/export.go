package main

import (
	"fmt"
	"os"

	"github.com/dvloznov/payables-dashboard/internal/dashboard"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/dvloznov/payables-dashboard/internal/export"
	"github.com/dvloznov/payables-dashboard/internal/session"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Load, filter and export postings to an Excel workbook",
		Long: `Fetch the invoice postings paid between --start and --end, optionally
keep only the given accounts, branches and accrual periods, and write the
result as an .xlsx workbook.`,
		Example: `  dashboard export --start 01/01/2024 --end 31/01/2024 --filial 01,02 --out janeiro.xlsx`,
		RunE:    runExport,
	}

	cmd.Flags().String("start", "", "first payment date (DD/MM/YYYY or YYYY-MM-DD)")
	cmd.Flags().String("end", "", "last payment date (DD/MM/YYYY or YYYY-MM-DD)")
	cmd.Flags().StringSlice("conta", nil, "keep only these accounts (comma-separated)")
	cmd.Flags().StringSlice("filial", nil, "keep only these branches (comma-separated)")
	cmd.Flags().StringSlice("competencia", nil, "keep only these accrual periods (comma-separated)")
	cmd.Flags().String("out", "", "output path (default: export.filename)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

// buildSelection turns the filter flags into a selection; empty flags are left out.
func buildSelection(conta, filial, competencia []string) domain.Selection {
	sel := domain.Selection{}
	for col, values := range map[string][]string{
		domain.ColConta:       conta,
		domain.ColFilial:      filial,
		domain.ColCompetencia: competencia,
	} {
		if len(values) > 0 {
			sel[col] = values
		}
	}
	return sel
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	start, _ := flags.GetString("start")
	end, _ := flags.GetString("end")
	rng, err := dashboard.ParseDateRange(start, end)
	if err != nil {
		return err
	}

	conta, _ := flags.GetStringSlice("conta")
	filial, _ := flags.GetStringSlice("filial")
	competencia, _ := flags.GetStringSlice("competencia")
	sel := buildSelection(conta, filial, competencia)

	out, _ := flags.GetString("out")
	if out == "" {
		out = cfg.Export.Filename
	}

	source, closeSource, err := newSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSource()

	svc := dashboard.NewService(source, session.NewRegistry(), dashboard.Options{
		Filename: cfg.Export.Filename,
		Sheet:    cfg.Export.Sheet,
	}, log)
	sess := svc.NewSession(ctx)
	defer func() { _ = svc.EndSession(ctx, sess.ID) }()

	if _, err := svc.Load(ctx, sess.ID, &rng); err != nil {
		return err
	}
	if len(sel.Active()) > 0 {
		if _, err := svc.Filter(ctx, sess.ID, sel); err != nil {
			return err
		}
	}

	view, err := svc.View(ctx, sess.ID)
	if err != nil {
		return err
	}
	dl, err := svc.Export(ctx, sess.ID)
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, dl.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := verifyWorkbook(out, dl.Sheet, dl.Rows); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d registros, total %s -> %s\n", dl.Rows, view.Summary.TotalFormatted, out)
	return nil
}

// verifyWorkbook reads the written file back and checks it holds rows records.
func verifyWorkbook(path, sheet string, rows int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read back %s: %w", path, err)
	}
	ds, err := export.Parse(data, sheet)
	if err != nil {
		return fmt.Errorf("failed to verify %s: %w", path, err)
	}
	if ds.Len() != rows {
		return fmt.Errorf("failed to verify %s: wrote %d rows, read back %d", path, rows, ds.Len())
	}
	return nil
}
