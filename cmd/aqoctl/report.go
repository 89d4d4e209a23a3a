package main

import (
	"flag"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/qtextparse"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
)

// runReport loads a store snapshot directory and exports the per-class
// preferences and stat execution counts as a workbook, written cell by
// cell with excelize's SetCellValue/SaveAs. Each row's query text is re-parsed
// through qtextparse so the report surfaces how many relations and
// restriction clauses the stored class actually resolves to, without the
// report needing to have observed the original plan itself.
func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	storeDir := fs.String("store", "", "directory holding the store's snapshot files")
	out := fs.String("out", "aqo_report.xlsx", "output workbook path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *storeDir == "" {
		return fmt.Errorf("report: -store is required")
	}

	backend, err := store.NewFileBackend(*storeDir)
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	st := store.New(cfg.Store, backend)
	st.Load()

	f := excelize.NewFile()
	const sheet = "classes"
	if idx, err := f.NewSheet(sheet); err != nil {
		return err
	} else {
		f.SetActiveSheet(idx)
	}
	f.DeleteSheet("Sheet1")

	headers := []string{"fs", "target_fs", "learn", "use", "auto_tune", "execs_with", "execs_without", "relations", "clauses", "query_text"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	prefs := st.AllPreferences()
	stats := st.AllStats()

	classFS := make([]uint64, 0, len(prefs))
	for fsID := range prefs {
		classFS = append(classFS, fsID)
	}
	sort.Slice(classFS, func(i, j int) bool { return classFS[i] < classFS[j] })

	for rowIdx, fsID := range classFS {
		p := prefs[fsID]
		row := rowIdx + 2
		text, _ := st.GetQueryText(fsID)

		var relations, clauseCount int
		if parsed, err := qtextparse.Parse(text); err == nil {
			relations = len(parsed.RelSigs)
			clauseCount = len(parsed.Clauses)
		}

		values := []any{fsID, p.TargetFS, p.Learn, p.Use, p.AutoTune, 0, 0, relations, clauseCount, text}
		if e, ok := stats[fsID]; ok {
			values[5] = e.ExecsWith
			values[6] = e.ExecsWithout
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := f.SaveAs(*out); err != nil {
		return err
	}
	fmt.Printf("report: wrote %d classes to %s\n", len(classFS), *out)
	return nil
}
