package linecalc

import (
	"fmt"
	"testing"
)

func benchSheet(b *testing.B, wb *Workbook, name string, texts []string) (SheetID, []LineID) {
	b.Helper()
	sheet, err := wb.AddWorksheet(name)
	if err != nil {
		b.Fatal(err)
	}
	ids, err := wb.SetLines(sheet, texts)
	if err != nil {
		b.Fatal(err)
	}
	return sheet, ids
}

func BenchmarkLargeSheetPopulation(b *testing.B) {
	texts := make([]string, 1000)
	for i := range texts {
		texts[i] = fmt.Sprintf("%d * 2 km", i)
	}
	for i := 0; i < b.N; i++ {
		wb := newTestWorkbook(b)
		benchSheet(b, wb, "Sheet1", texts)
		if _, err := wb.RecomputeAll(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLineDependencyChain(b *testing.B) {
	texts := []string{"1"}
	for i := 2; i <= 100; i++ {
		texts = append(texts, fmt.Sprintf("LN%d + 1", i-1))
	}
	wb := newTestWorkbook(b)
	sheet, ids := benchSheet(b, wb, "Sheet1", texts)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.ApplyEdit(sheet, ids[0], fmt.Sprint(i))
		wb.RecomputeAll()
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	texts := []string{"100"}
	for i := 2; i <= 500; i++ {
		texts = append(texts, "LN1 * 2")
	}
	wb := newTestWorkbook(b)
	sheet, ids := benchSheet(b, wb, "Sheet1", texts)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.ApplyEdit(sheet, ids[0], fmt.Sprint(i))
		wb.RecomputeAll()
	}
}

func BenchmarkLargeRangeSUM(b *testing.B) {
	texts := make([]string, 0, 1001)
	for i := 1; i <= 1000; i++ {
		texts = append(texts, fmt.Sprint(i))
	}
	texts = append(texts, "sum(LN1:LN1000)")
	wb := newTestWorkbook(b)
	sheet, ids := benchSheet(b, wb, "Sheet1", texts)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.ApplyEdit(sheet, ids[i%1000], fmt.Sprint(i))
		wb.RecomputeAll()
	}
}

func BenchmarkSumAbove(b *testing.B) {
	texts := make([]string, 0, 1001)
	for i := 1; i <= 1000; i++ {
		texts = append(texts, fmt.Sprint(i))
	}
	texts = append(texts, "sum(above)")
	wb := newTestWorkbook(b)
	benchSheet(b, wb, "Sheet1", texts)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.RecomputeAll()
	}
}

func BenchmarkVolatileFunctions(b *testing.B) {
	texts := make([]string, 0, 100)
	for i := 1; i <= 50; i++ {
		texts = append(texts, fmt.Sprintf("D(today + %d)", i))
	}
	for i := 1; i <= 50; i++ {
		texts = append(texts, fmt.Sprintf("LN%d - 1", i))
	}
	wb := newTestWorkbook(b)
	benchSheet(b, wb, "Sheet1", texts)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.RecomputeAll()
	}
}

func BenchmarkMultiWorksheetReferences(b *testing.B) {
	wb := newTestWorkbook(b)
	data := make([]string, 100)
	for i := range data {
		data[i] = fmt.Sprint(i + 1)
	}
	dataSheet, dataIDs := benchSheet(b, wb, "Data", data)
	summary, _ := benchSheet(b, wb, "Summary", []string{
		"S.Data.LN1 + S.Data.LN100",
		"S.Data.LN50 * 2",
		"max(S.Data.LN10, S.Data.LN20, S.Data.LN30)",
		"LN1 + LN2 + LN3",
	})
	wb.OnSheetActivated(summary)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.ApplyEdit(dataSheet, dataIDs[i%100], fmt.Sprint(i))
		wb.RunScheduledRecompute()
	}
}

func BenchmarkCascadingUpdates(b *testing.B) {
	texts := make([]string, 0, 500)
	for row := 0; row < 50; row++ {
		texts = append(texts, fmt.Sprint(row+1))
		for col := 1; col < 10; col++ {
			texts = append(texts, fmt.Sprintf("LN%d * 2", len(texts)))
		}
	}
	wb := newTestWorkbook(b)
	sheet, ids := benchSheet(b, wb, "Sheet1", texts)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.ApplyEdit(sheet, ids[0], fmt.Sprint(i%100))
		wb.RecomputeAll()
	}
}

func BenchmarkCircularReferenceDetection(b *testing.B) {
	texts := []string{
		"LN2 + LN3",
		"LN3 + LN4",
		"LN4 + LN5",
		"LN5 + LN6",
		"LN6 + LN7",
		"LN7 + LN8",
		"LN8 + LN1",
		"LN1",
	}
	for i := 0; i < b.N; i++ {
		wb := newTestWorkbook(b)
		benchSheet(b, wb, "Sheet1", texts)
		wb.RecomputeAll()
	}
}

func BenchmarkUnitAndCurrencyConversions(b *testing.B) {
	texts := make([]string, 0, 300)
	for i := 1; i <= 100; i++ {
		texts = append(texts,
			fmt.Sprintf("%d km to mi", i),
			fmt.Sprintf("%d usd to eur", i),
			fmt.Sprintf("TC(29.97df, %d)", i*100),
		)
	}
	for i := 0; i < b.N; i++ {
		wb := newTestWorkbook(b)
		benchSheet(b, wb, "Sheet1", texts)
		wb.RecomputeAll()
	}
}

func BenchmarkParseLine(b *testing.B) {
	lines := []string{
		"1 + 2 * 3",
		"sum(LN1:LN20, above) / 2",
		"S.'Q1 Budget'.LN7 * 1.2 eur to usd",
		"TC(29.97df, 01:00:00;00)",
		"D(today W+ 10)",
	}
	for i := 0; i < b.N; i++ {
		for _, text := range lines {
			ParseLine(text, nil)
		}
	}
}
