package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/radovskyb/watcher"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-linecalc/packages/linecalc"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:     "watch <workbook.yaml>",
	Short:   "Recompute a workbook whenever the file changes",
	Example: "linecalc watch -i 500ms budget.yaml",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		doc, err := readDocument(path)
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
		if err := printResults(os.Stdout, wb, sheets); err != nil {
			return err
		}

		auto, err := wb.StartAutoRecompute(linecalc.ResultSinkFunc(func(results map[linecalc.LineKey]linecalc.Result, err error) {
			if err != nil {
				log.WithError(err).Error("recompute failed")
				return
			}
			printChanged(os.Stdout, wb, results)
		}))
		if err != nil {
			return err
		}
		defer auto.Stop()

		return watchDocument(path, watchInterval, func() {
			doc, err := readDocument(path)
			if err != nil {
				log.WithError(err).Warn("ignoring unreadable workbook")
				return
			}
			edits, structural, err := syncDocument(wb, doc)
			if err != nil {
				log.WithError(err).Error("sync workbook")
				return
			}
			log.WithFields(logrus.Fields{"edits": edits, "structural": structural}).Debug("workbook reloaded")
			if structural {
				results, err := wb.RecomputeAll()
				if err != nil {
					log.WithError(err).Error("recompute failed")
					return
				}
				printChanged(os.Stdout, wb, results)
			}
		})
	},
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", time.Second, "polling interval")
}

// watchDocument polls path and calls reload after every write until
// interrupted. the watcher only sees the one file, so deletes arrive as
// errors and are logged.
func watchDocument(path string, interval time.Duration, reload func()) error {
	w := watcher.New()
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Write, watcher.Create)
	defer w.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	go func() {
		for {
			select {
			case event := <-w.Event:
				log.WithField("event", event.Op.String()).Debug("workbook changed")
				reload()
			case err := <-w.Error:
				log.WithError(err).Warn("watcher error")
			case <-interrupt:
				w.Close()
			case <-w.Closed:
				return
			}
		}
	}()

	if err := w.Add(path); err != nil {
		return errors.Wrapf(err, "watch %s", path)
	}
	log.WithField("path", path).Info("watching workbook")
	return w.Start(interval)
}

// syncDocument moves wb to the content of doc. sheets whose line count is
// unchanged get per-line edits; everything else is structural.
func syncDocument(wb *linecalc.Workbook, doc *document) (edits int, structural bool, err error) {
	wanted := make(map[linecalc.SheetID]struct{}, len(doc.Sheets))
	var added []int
	for i, sheet := range doc.Sheets {
		id, ok := wb.WorksheetByName(sheet.Name)
		if !ok {
			if id, err = wb.AddWorksheet(sheet.Name); err != nil {
				return edits, structural, err
			}
			added = append(added, i)
			structural = true
		}
		wanted[id] = struct{}{}
	}

	for _, id := range wb.Worksheets() {
		if _, ok := wanted[id]; !ok {
			if _, err := wb.RemoveWorksheet(id); err != nil {
				return edits, structural, err
			}
			structural = true
		}
	}

	for i, sheet := range doc.Sheets {
		id, _ := wb.WorksheetByName(sheet.Name)
		lines, err := wb.Lines(id)
		if err != nil {
			return edits, structural, err
		}
		if slices.Contains(added, i) || len(lines) != len(sheet.Lines) {
			if _, err := wb.SetLines(id, sheet.Lines); err != nil {
				return edits, structural, err
			}
			structural = true
			continue
		}
		for pos, line := range lines {
			text, err := wb.LineText(id, line)
			if err != nil {
				return edits, structural, err
			}
			if text == sheet.Lines[pos] {
				continue
			}
			if _, err := wb.ApplyEdit(id, line, sheet.Lines[pos]); err != nil {
				return edits, structural, err
			}
			edits++
		}
	}
	return edits, structural, nil
}

// printChanged writes the recomputed lines in sheet and line order
func printChanged(w io.Writer, wb *linecalc.Workbook, results map[linecalc.LineKey]linecalc.Result) {
	for _, sheet := range wb.Worksheets() {
		name, err := wb.WorksheetName(sheet)
		if err != nil {
			continue
		}
		lines, err := wb.Lines(sheet)
		if err != nil {
			continue
		}
		for pos, line := range lines {
			if result, ok := results[linecalc.LineKey{Sheet: sheet, Line: line}]; ok {
				fmt.Fprintf(w, "%s\tLN%d\t%s\n", name, pos+1, formatResult(result))
			}
		}
	}
}
