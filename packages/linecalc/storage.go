package linecalc

// Storage holds references to the tables shared by every worksheet of a
// workbook
type Storage struct {
	worksheets  *WorksheetTable
	strings     *StringTable
	expressions *ExpressionTable
	sheetGraph  *SheetGraph
}

func NewStorage() *Storage {
	return &Storage{
		worksheets:  NewWorksheetTable(),
		strings:     NewStringTable(),
		expressions: NewExpressionTable(),
		sheetGraph:  NewSheetGraph(),
	}
}
