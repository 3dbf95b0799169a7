package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/vogtb/go-linecalc/packages/linecalc"
)

// document is a workbook on disk
//
//	sheets:
//	  - name: Data
//	    lines: ["50", "::: note", "LN1 * 2"]
type document struct {
	Sheets []sheetDocument `yaml:"sheets"`
}

type sheetDocument struct {
	Name  string   `yaml:"name"`
	Lines []string `yaml:"lines"`
}

func readDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if len(doc.Sheets) == 0 {
		return nil, errors.Errorf("%s: no sheets", path)
	}
	return &doc, nil
}

// loadDocument adds every sheet of doc to wb. all sheets exist before any
// line is set so cross-sheet references bind on the first pass.
func loadDocument(wb *linecalc.Workbook, doc *document) ([]linecalc.SheetID, error) {
	ids := make([]linecalc.SheetID, 0, len(doc.Sheets))
	for _, sheet := range doc.Sheets {
		id, err := wb.AddWorksheet(sheet.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "sheet %q", sheet.Name)
		}
		ids = append(ids, id)
	}
	for i, sheet := range doc.Sheets {
		if _, err := wb.SetLines(ids[i], sheet.Lines); err != nil {
			return nil, errors.Wrapf(err, "sheet %q", sheet.Name)
		}
	}
	return ids, nil
}

// printResults writes one sheet\tline\ttext\tresult row per line
func printResults(w io.Writer, wb *linecalc.Workbook, sheets []linecalc.SheetID) error {
	for _, sheet := range sheets {
		name, err := wb.WorksheetName(sheet)
		if err != nil {
			return err
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
			fmt.Fprintf(w, "%s\tLN%d\t%s\t%s\n", name, i+1, text, formatResult(results[i]))
		}
	}
	return nil
}

func formatResult(result linecalc.Result) string {
	if result.Notice != nil {
		return fmt.Sprintf("%s (%s)", result, result.Notice.Message)
	}
	return result.String()
}
