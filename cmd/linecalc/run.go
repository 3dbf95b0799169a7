package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:     "run <workbook.yaml>",
	Short:   "Recompute a workbook and print every line",
	Example: "linecalc run budget.yaml",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		wb, err := newWorkbook()
		if err != nil {
			return err
		}
		sheets, err := loadDocument(wb, doc)
		if err != nil {
			return err
		}
		if _, err := wb.RecomputeAll(); err != nil {
			return errors.Wrap(err, "recompute")
		}
		log.WithField("sheets", len(sheets)).Info("workbook recomputed")
		return printResults(os.Stdout, wb, sheets)
	},
}
