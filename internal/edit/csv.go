package edit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	ErrCSVUnderflow  = errors.New("csv has fewer rows than traces")
	ErrCSVKeyMissing = errors.New("csv key not found")
	ErrCSVType       = errors.New("csv value is not numeric")
)

// csvSource is one loaded CSV file, cached for the lifetime of a plan run.
// The row data is immutable after load; keyed indexes are built lazily per
// key column.
type csvSource struct {
	path     string
	columns  map[string]int
	rows     [][]string
	keyIndex map[string]map[int64]int
}

func loadCSV(path string) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	records, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv %s is empty", path)
	}

	src := &csvSource{
		path:     path,
		columns:  make(map[string]int, len(records[0])),
		rows:     records[1:],
		keyIndex: make(map[string]map[int64]int),
	}
	for i, name := range records[0] {
		src.columns[strings.TrimSpace(name)] = i
	}
	return src, nil
}

func (s *csvSource) column(name string) (int, error) {
	idx, ok := s.columns[name]
	if !ok {
		return 0, fmt.Errorf("csv %s has no column %q", s.path, name)
	}
	return idx, nil
}

// cell returns the raw text at (row, column name).
func (s *csvSource) cell(row int, column string) (string, error) {
	col, err := s.column(column)
	if err != nil {
		return "", err
	}
	if row < 0 || row >= len(s.rows) {
		return "", fmt.Errorf("%w: row %d of %d", ErrCSVUnderflow, row, len(s.rows))
	}
	record := s.rows[row]
	if col >= len(record) {
		return "", fmt.Errorf("%w: row %d has no column %q", ErrCSVType, row, column)
	}
	return strings.TrimSpace(record[col]), nil
}

// rowByKey resolves a trace to a row through the keyed index, building the
// index for keyColumn on first use. Duplicate keys keep the first row.
func (s *csvSource) rowByKey(keyColumn string, key int64) (int, error) {
	index, ok := s.keyIndex[keyColumn]
	if !ok {
		col, err := s.column(keyColumn)
		if err != nil {
			return 0, err
		}
		index = make(map[int64]int, len(s.rows))
		for i, record := range s.rows {
			if col >= len(record) {
				continue
			}
			k, err := strconv.ParseInt(strings.TrimSpace(record[col]), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: key column %q row %d: %q", ErrCSVType, keyColumn, i, record[col])
			}
			if _, dup := index[k]; !dup {
				index[k] = i
			}
		}
		s.keyIndex[keyColumn] = index
	}
	row, ok := index[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s=%d", ErrCSVKeyMissing, keyColumn, key)
	}
	return row, nil
}

// Rows returns the number of data rows.
func (s *csvSource) Rows() int { return len(s.rows) }

// coordinateDestinations are the only fields for which a CSV cell may hold
// a floating-point value; it is rounded before width coercion.
var coordinateDestinations = map[string]bool{
	"source_x": true, "source_y": true,
	"group_x": true, "group_y": true,
	"cdp_x": true, "cdp_y": true,
}

// parseCSVValue parses a cell as an integer, falling back to
// double-precision parsing for coordinate destinations.
func parseCSVValue(text, destination string) (int64, error) {
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, nil
	}
	if coordinateDestinations[destination] {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrCSVType, text)
		}
		return int64(math.Round(f)), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrCSVType, text)
}
