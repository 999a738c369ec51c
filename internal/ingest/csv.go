package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

type CSVParser struct{}

func (CSVParser) Parse(data []byte) ([]string, []map[string]interface{}, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyDocument
	}
	if err != nil {
		return nil, nil, err
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return buildRecords(header, records)
}
