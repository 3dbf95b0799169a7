package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:     "eval <line>...",
	Short:   "Evaluate lines in a scratch sheet",
	Example: `linecalc eval "100 usd" "LN1 * 1.2 to eur"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wb, err := newWorkbook()
		if err != nil {
			return err
		}
		sheet, err := wb.AddWorksheet("Scratch")
		if err != nil {
			return err
		}
		if _, err := wb.SetLines(sheet, args); err != nil {
			return err
		}
		if _, err := wb.RecomputeAll(); err != nil {
			return errors.Wrap(err, "recompute")
		}
		results, err := wb.Results(sheet)
		if err != nil {
			return err
		}
		for _, result := range results {
			fmt.Fprintln(os.Stdout, formatResult(result))
		}
		return nil
	},
}
