// Package ingest loads press-clipping exports (CSV or XLSX) into the
// article store. Exports come from several monitoring providers, so the
// reader tolerates varying separators, encodings and column subsets.
package ingest

import (
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/charmap"
)

// candidateSeparators in sniffing order. Comma last: Italian exports often
// use semicolons with comma decimals inside quoted fields.
var candidateSeparators = []rune{';', '\t', ','}

// sniffSeparator picks the candidate that splits the header line into the
// most fields. Ties go to the earlier candidate.
func sniffSeparator(header string) rune {
	best := ','
	bestCount := 0
	for _, sep := range candidateSeparators {
		if n := strings.Count(header, string(sep)); n > bestCount {
			best = sep
			bestCount = n
		}
	}
	return best
}

// decode returns the payload as UTF-8 text. Invalid UTF-8 is re-read as
// Latin-1, the legacy encoding of older clipping exports.
func decode(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", eris.Wrap(err, "ingest: decode latin-1")
	}
	return string(decoded), nil
}

// readCSV parses a raw CSV payload into rows, sniffing the separator from
// the first line. Rows may have varying field counts.
func readCSV(raw []byte) ([][]string, error) {
	text, err := decode(raw)
	if err != nil {
		return nil, err
	}
	text = strings.TrimPrefix(text, "\ufeff")

	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffSeparator(firstLine)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read csv row")
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// readXLSX parses the first sheet of an XLSX workbook into rows.
func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
