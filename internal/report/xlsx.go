package report

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/coordcheck/internal/model"
)

// SheetName is the worksheet holding the results.
const SheetName = "Results"

// xlsxWriter builds the workbook in memory and saves it on Close.
type xlsxWriter struct {
	path  string
	file  *xlsx.File
	sheet *xlsx.Sheet
}

func newXLSXWriter(path string) (*xlsxWriter, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "report: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}

	return &xlsxWriter{path: path, file: f, sheet: sheet}, nil
}

func (x *xlsxWriter) Record(_ context.Context, res model.PointResult) error {
	row := x.sheet.AddRow()
	row.AddCell().SetInt(res.Line)
	row.AddCell().SetString(res.Name)
	row.AddCell().SetString(res.Location.LatString())
	row.AddCell().SetString(res.Location.LonString())
	row.AddCell().SetString(formatMeters(res.Distance))
	row.AddCell().SetString(formatMeters(res.MaxDistance))
	row.AddCell().SetBool(!res.Exceeded())
	row.AddCell().SetInt(res.ExceededBy())
	return nil
}

func (x *xlsxWriter) Close() error {
	return eris.Wrap(x.file.Save(x.path), "report: save xlsx")
}
