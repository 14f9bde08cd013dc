package record

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Format selects the on-disk encoding of a record file.
type Format string

const (
	// FormatLegacy joins fields with bare commas and no escaping. Fields that
	// contain a comma do not survive a round trip.
	FormatLegacy Format = "legacy"
	// FormatCSV writes RFC 4180 quoted CSV.
	FormatCSV Format = "csv"
	// FormatJSONL writes one JSON object per line.
	FormatJSONL Format = "jsonl"
)

// ParseFormat maps a config value to a Format. The empty string selects CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatLegacy:
		return FormatLegacy, nil
	case FormatJSONL:
		return FormatJSONL, nil
	}
	return "", fmt.Errorf("unknown record format %q: must be one of legacy, csv, jsonl", s)
}

// lineCodec encodes a record as a single line (without the trailing newline).
type lineCodec interface {
	encode(r TrackRecord) ([]byte, error)
	decode(line []byte) (TrackRecord, error)
}

type legacyCodec struct{}

func (legacyCodec) encode(r TrackRecord) ([]byte, error) {
	for _, f := range r.fields() {
		if strings.ContainsAny(f.value, "\r\n") {
			return nil, fmt.Errorf("%w: %s contains a line break", ErrEncoding, f.name)
		}
	}
	return []byte(strings.Join(r.values(), ",")), nil
}

func (legacyCodec) decode(line []byte) (TrackRecord, error) {
	parts := strings.Split(string(line), ",")
	if len(parts) != 4 {
		return TrackRecord{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedLine, len(parts))
	}
	return fromValues(parts), nil
}

// checkCSV rejects carriage returns, which encoding/csv folds into '\n' when
// reading a quoted field back.
func checkCSV(r TrackRecord) error {
	for _, f := range r.fields() {
		if strings.ContainsRune(f.value, '\r') {
			return fmt.Errorf("%w: %s contains a carriage return", ErrEncoding, f.name)
		}
	}
	return nil
}

type jsonlCodec struct{}

func (jsonlCodec) encode(r TrackRecord) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return b, nil
}

func (jsonlCodec) decode(line []byte) (TrackRecord, error) {
	var r TrackRecord
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return TrackRecord{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	return r, nil
}

func codecFor(f Format) (lineCodec, bool) {
	switch f {
	case FormatLegacy:
		return legacyCodec{}, true
	case FormatJSONL:
		return jsonlCodec{}, true
	}
	return nil, false
}
