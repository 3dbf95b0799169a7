package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-linecalc/packages/linecalc"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:     "export <workbook.yaml>",
	Short:   "Recompute a workbook and write the results to xlsx",
	Example: "linecalc export budget.yaml -o budget.xlsx",
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
		if err := exportWorkbook(wb, sheets, exportOutput); err != nil {
			return err
		}
		log.WithField("output", exportOutput).Info("workbook exported")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "linecalc.xlsx", "Output xlsx path")
}

var exportHeader = []string{"Line", "Text", "Result", "Unit", "Error"}

// exportWorkbook writes one xlsx sheet per worksheet: a header row, then
// one row per line. numbers and dates keep their type.
func exportWorkbook(wb *linecalc.Workbook, sheets []linecalc.SheetID, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		name, err := wb.WorksheetName(sheet)
		if err != nil {
			return err
		}
		if i == 0 {
			err = f.SetSheetName("Sheet1", name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			return errors.Wrapf(err, "xlsx sheet %q", name)
		}
		if err := exportSheet(f, wb, sheet, name); err != nil {
			return errors.Wrapf(err, "xlsx sheet %q", name)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

func exportSheet(f *excelize.File, wb *linecalc.Workbook, sheet linecalc.SheetID, name string) error {
	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(name, cell, title); err != nil {
			return err
		}
	}

	lines, err := wb.Lines(sheet)
	if err != nil {
		return err
	}
	results, err := wb.Results(sheet)
	if err != nil {
		return err
	}
	for i, line := range lines {
		text, err := wb.LineText(sheet, line)
		if err != nil {
			return err
		}
		row := []any{i + 1, text, nil, nil, nil}
		result := results[i]
		switch result.Kind {
		case linecalc.ResultNumber:
			row[2], row[3] = result.Number, result.Unit
		case linecalc.ResultDate:
			row[2] = result.Date
		case linecalc.ResultError:
			row[4] = result.Err.Kind.String()
		case linecalc.ResultEmpty:
		default:
			row[2] = result.String()
		}
		if result.Notice != nil {
			row[4] = result.Notice.Kind.String()
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
