package convert

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
	"github.com/xuri/excelize/v2"
)

// Spreadsheets are flattened to one block per sheet:
//
//	Sheet: <name>
//	Header: <c1>\t<c2>
//	Row 2: <v1>\t<v2>

func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		writeSheet(&b, sheet, rows)
	}
	return b.String(), nil
}

func extractXLS(data []byte) (string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xls: %w", err)
	}
	var b strings.Builder
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		var rows [][]string
		for _, row := range sheet.GetRows() {
			rows = append(rows, xlsRowValues(row.GetCols()))
		}
		if len(rows) == 0 {
			continue
		}
		writeSheet(&b, sheet.GetName(), rows)
	}
	return b.String(), nil
}

func writeSheet(b *strings.Builder, name string, rows [][]string) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	header := rows[0]
	b.WriteString("Sheet: ")
	b.WriteString(name)
	b.WriteString("\nHeader: ")
	b.WriteString(strings.Join(header, "\t"))
	b.WriteByte('\n')
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		width := len(header)
		if len(row) > width {
			width = len(row)
		}
		cells := make([]string, width)
		copy(cells, row)
		b.WriteString("Row ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(": ")
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}
}

func xlsRowValues(cols []structure.CellData) []string {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		val := col.GetString()
		if val == "" {
			if num := col.GetFloat64(); num != 0 {
				val = strconv.FormatFloat(num, 'f', -1, 64)
			} else if in := col.GetInt64(); in != 0 {
				val = strconv.FormatInt(in, 10)
			}
		}
		out = append(out, val)
	}
	return out
}
