package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talkcents/talkcents/internal/activity"
	"github.com/talkcents/talkcents/internal/export"
	"github.com/talkcents/talkcents/internal/importer"
	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/report"
)

func newImportCommand(a *app) *cobra.Command {
	var format, category string
	var dryRun, inbox bool

	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Bulk-create transactions from a CSV file or the import inbox",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inbox == (len(args) == 1) {
				return errors.New("give a file or --inbox")
			}
			if category == "" {
				category = model.DefaultCategoryName
			}
			parsers := importer.DefaultRegistry(category)
			out := cmd.OutOrStdout()

			if !inbox {
				n, err := a.importFile(cmd, parsers, format, args[0], dryRun)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %d transactions from %s\n", n, args[0])
				return nil
			}

			if a.cfg.ImportDir == "" {
				return errors.New("no import_dir configured")
			}
			files, err := importer.Scan(a.cfg.ImportDir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(out, "No CSV files in %s\n", a.cfg.ImportDir)
				return nil
			}
			total := 0
			for _, f := range files {
				n, err := a.importFile(cmd, parsers, format, f.Path, dryRun)
				if err != nil {
					return err
				}
				total += n
				if dryRun {
					continue
				}
				if err := importer.MarkProcessed(a.cfg.ImportDir, f.Name); err != nil {
					return err
				}
				a.log.Info().Str("file", f.Name).Int("count", n).Msg("imported")
			}
			fmt.Fprintf(out, "Imported %d transactions from %d files\n", total, len(files))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "talkcents", "file format (chase, talkcents)")
	cmd.Flags().StringVar(&category, "category", "", "category for bank rows (default "+model.DefaultCategoryName+")")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and print without creating anything")
	cmd.Flags().BoolVar(&inbox, "inbox", false, "import every CSV in the configured import_dir")
	return cmd
}

// importFile parses path and bulk-creates its rows, or prints them when
// dryRun is set. It returns the number of rows.
func (a *app) importFile(cmd *cobra.Command, parsers *importer.Registry, format, path string, dryRun bool) (int, error) {
	drafts, err := parsers.ParseFile(format, path)
	if err != nil {
		return 0, err
	}
	if dryRun {
		txs := make([]model.Transaction, len(drafts))
		for i, d := range drafts {
			txs[i] = model.Transaction{
				ID:       d.LocalID,
				Type:     d.Type,
				Name:     d.Name,
				Amount:   d.Amount,
				Date:     d.Date,
				Category: model.Category{Name: d.Category, Icon: a.registry.ResolveIcon(d.Category)},
				Note:     d.Note,
			}
		}
		return len(drafts), printTransactions(cmd.OutOrStdout(), txs)
	}
	for _, d := range drafts {
		if d.Category == "" {
			continue
		}
		if err := a.ensureCategory(d.Category, ""); err != nil {
			return 0, err
		}
	}
	created, err := a.store.ImportDrafts(cmd.Context(), drafts)
	if err != nil {
		return 0, fmt.Errorf("importing %s: %w", path, err)
	}
	a.recordImported(created, filepath.Base(path))
	return len(created), nil
}

// recordImported logs one activity entry per created transaction.
func (a *app) recordImported(txs []model.Transaction, source string) {
	entries := make([]activity.Entry, len(txs))
	for i, tx := range txs {
		entries[i] = activity.Entry{
			Action:        activity.ActionImport,
			TransactionID: tx.ID,
			Details:       source + ": " + describeBrief(tx),
		}
	}
	a.record(entries...)
}

func newExportCommand(a *app) *cobra.Command {
	var outPath string
	var month, year int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.reload(cmd.Context()); err != nil {
				return err
			}
			txs := a.store.Transactions()
			if month != 0 || year != 0 {
				m, y, err := resolveMonth(a.now(), month, year)
				if err != nil {
					return err
				}
				txs = report.InMonth(txs, m, y)
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}
			if err := export.WriteTransactions(w, txs); err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d transactions to %s\n", len(txs), outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&month, "month", 0, "only this month (1-12)")
	cmd.Flags().IntVar(&year, "year", 0, "only this year")
	return cmd
}
