package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/markusylisiurunen/rolodex/internal/config"
	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/markusylisiurunen/rolodex/internal/sheet"
	"github.com/spf13/cobra"
)

func (c *cli) sheetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Inspect the contacts spreadsheet",
	}
	var initialize bool
	check := &cobra.Command{
		Use:   "check",
		Short: "Compare the sheet's header row with the expected columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := c.cfg.Require(config.PartSheet); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if initialize {
				if err := c.initWorkbook(out); err != nil {
					return err
				}
			}
			store, err := c.app.Store(ctx)
			if err != nil {
				return err
			}
			headers, err := store.Headers(ctx)
			if err != nil {
				return fmt.Errorf("error reading header row: %w", err)
			}
			checks, ok := contact.Diff(store.Schema().Headers(), headers)
			printChecks(out, checks)
			printSample(out, store.Records(ctx))
			if !ok {
				return errors.New("the sheet does not have the expected columns")
			}
			fmt.Fprintln(out, color.New(color.FgGreen).Sprint("the sheet structure is correct")) //nolint:errcheck
			return nil
		},
	}
	check.Flags().BoolVar(&initialize, "init", false, "create the workbook with the expected header row if it does not exist (xlsx only)")
	cmd.AddCommand(check)
	return cmd
}

func (c *cli) initWorkbook(out io.Writer) error {
	if c.cfg.SheetBackend != config.BackendXLSX {
		return fmt.Errorf("--init is only supported with SHEET_BACKEND=%s", config.BackendXLSX)
	}
	if _, err := os.Stat(c.cfg.XLSXPath); err == nil {
		return nil
	}
	if err := sheet.InitXLSX(c.cfg.XLSXPath, c.app.Schema().Headers()); err != nil {
		return err
	}
	fmt.Fprintf(out, "created %s\n", c.cfg.XLSXPath) //nolint:errcheck
	return nil
}

func printChecks(out io.Writer, checks []contact.ColumnCheck) {
	okMark := color.New(color.FgGreen).Sprint("✓")
	badMark := color.New(color.FgRed).Sprint("✗")
	extraMark := color.New(color.FgYellow).Sprint("+")
	for _, c := range checks {
		switch c.Status {
		case contact.ColumnOK:
			fmt.Fprintf(out, "%s column %d: %q\n", okMark, c.Position, c.Actual) //nolint:errcheck
		case contact.ColumnMismatch:
			fmt.Fprintf(out, "%s column %d: expected %q, found %q\n", badMark, c.Position, c.Expected, c.Actual) //nolint:errcheck
		case contact.ColumnMissing:
			fmt.Fprintf(out, "%s column %d: expected %q, missing\n", badMark, c.Position, c.Expected) //nolint:errcheck
		case contact.ColumnExtra:
			fmt.Fprintf(out, "%s column %d: %q is not used\n", extraMark, c.Position, c.Actual) //nolint:errcheck
		}
	}
}

func printSample(out io.Writer, records []contact.Record) {
	faint := color.New(color.Faint)
	if len(records) == 0 {
		fmt.Fprintln(out, faint.Sprint("the sheet has no contacts yet")) //nolint:errcheck
		return
	}
	fmt.Fprintf(out, "%d contacts, first one on row %d:\n", len(records), records[0].Row) //nolint:errcheck
	for _, cell := range records[0].Cells {
		value := cell.Value
		if value == "" {
			value = faint.Sprint("(empty)")
		}
		fmt.Fprintf(out, "  %s: %s\n", cell.Header, value) //nolint:errcheck
	}
}
