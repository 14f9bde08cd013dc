// Package record persists playlist track metadata as a line-oriented record
// file. A record file is the unit of work handed to batch workers.
package record

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrMissingField is returned for a record with an empty required field.
	ErrMissingField = errors.New("missing required field")
	// ErrEncoding is returned for a record that cannot be represented in the
	// selected format.
	ErrEncoding = errors.New("record encoding error")
	// ErrMalformedLine is yielded by ReadAll for a line that does not decode
	// into exactly one record.
	ErrMalformedLine = errors.New("malformed record line")
)

// TrackRecord is one playlist entry.
type TrackRecord struct {
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	SourceURL string `json:"source_url"`
	ArtURL    string `json:"art_url"`
}

// Validate checks that every field is present and valid UTF-8.
func (r TrackRecord) Validate() error {
	for _, f := range r.fields() {
		if f.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrEncoding, f.name)
		}
	}
	return nil
}

// String renders the record for log output.
func (r TrackRecord) String() string {
	return fmt.Sprintf("%s - %s", r.Artist, r.Name)
}

type field struct {
	name  string
	value string
}

func (r TrackRecord) fields() []field {
	return []field{
		{"name", r.Name},
		{"artist", r.Artist},
		{"source_url", r.SourceURL},
		{"art_url", r.ArtURL},
	}
}

// values returns the fields in on-disk order.
func (r TrackRecord) values() []string {
	return []string{r.Name, r.Artist, r.SourceURL, r.ArtURL}
}

func fromValues(v []string) TrackRecord {
	return TrackRecord{Name: v[0], Artist: v[1], SourceURL: v[2], ArtURL: v[3]}
}
