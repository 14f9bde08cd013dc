package record

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/charmbracelet/log"
)

const maxLineSize = 1024 * 1024

// Store reads and writes record files in a single Format.
type Store struct {
	format Format
	logger *log.Logger
}

// NewStore creates a Store. A nil logger uses the package default logger.
func NewStore(format Format, logger *log.Logger) *Store {
	if format == "" {
		format = FormatCSV
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Store{format: format, logger: logger}
}

// Format returns the store's encoding.
func (s *Store) Format() Format {
	return s.format
}

// Write truncates or creates path and writes one line per record in order.
// Records that fail validation or encoding are logged and skipped; only I/O
// errors abort the write. It returns the number of records written.
func (s *Store) Write(path string, records []TrackRecord) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create record file: %w", err)
	}

	written, writeErr := s.write(f, records)
	if closeErr := f.Close(); writeErr == nil && closeErr != nil {
		writeErr = fmt.Errorf("failed to close record file: %w", closeErr)
	}
	return written, writeErr
}

func (s *Store) write(w io.Writer, records []TrackRecord) (int, error) {
	bw := bufio.NewWriter(w)
	written := 0

	if s.format == FormatCSV {
		cw := csv.NewWriter(bw)
		for _, r := range records {
			if err := r.Validate(); err != nil {
				s.skip(r, err)
				continue
			}
			if err := checkCSV(r); err != nil {
				s.skip(r, err)
				continue
			}
			if err := cw.Write(r.values()); err != nil {
				return written, fmt.Errorf("failed to write record: %w", err)
			}
			written++
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return written, fmt.Errorf("failed to write record file: %w", err)
		}
		return written, nil
	}

	codec, ok := codecFor(s.format)
	if !ok {
		return 0, fmt.Errorf("unsupported record format %q", s.format)
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			s.skip(r, err)
			continue
		}
		line, err := codec.encode(r)
		if err != nil {
			s.skip(r, err)
			continue
		}
		if _, err := bw.Write(append(line, '\n')); err != nil {
			return written, fmt.Errorf("failed to write record: %w", err)
		}
		written++
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("failed to write record file: %w", err)
	}
	return written, nil
}

func (s *Store) skip(r TrackRecord, err error) {
	switch {
	case errors.Is(err, ErrMissingField):
		s.logger.Warn("record_skipped", "reason", "missing_field", "track", r.Name, "artist", r.Artist, "error", err)
	default:
		s.logger.Warn("record_skipped", "reason", "encoding", "track", r.Name, "artist", r.Artist, "error", err)
	}
}

// ReadAll returns a lazy sequence over the records in path. The file is
// opened when iteration starts and closed when it ends, so the sequence is
// not restartable without calling ReadAll again. An open failure is yielded
// as a single error; a malformed line yields an error wrapping
// ErrMalformedLine and iteration continues with the next line.
func (s *Store) ReadAll(path string) iter.Seq2[TrackRecord, error] {
	return func(yield func(TrackRecord, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(TrackRecord{}, fmt.Errorf("failed to open record file: %w", err))
			return
		}
		defer func() { _ = f.Close() }()

		if s.format == FormatCSV {
			s.readCSV(f, yield)
			return
		}

		codec, ok := codecFor(s.format)
		if !ok {
			yield(TrackRecord{}, fmt.Errorf("unsupported record format %q", s.format))
			return
		}
		s.readLines(f, codec, yield)
	}
}

// Collect drains ReadAll into a slice, logging and dropping bad lines. Only a
// failure to open or read the file is returned.
func (s *Store) Collect(path string) ([]TrackRecord, error) {
	var records []TrackRecord
	for r, err := range s.ReadAll(path) {
		if err != nil {
			if errors.Is(err, ErrMalformedLine) || errors.Is(err, ErrMissingField) || errors.Is(err, ErrEncoding) {
				s.logger.Warn("record_line_skipped", "path", path, "error", err)
				continue
			}
			return records, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Store) readLines(r io.Reader, codec lineCodec, yield func(TrackRecord, error) bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if len(line) == 0 {
			continue
		}
		rec, err := codec.decode(line)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			if !yield(TrackRecord{}, fmt.Errorf("line %d: %w", lineNo, err)) {
				return
			}
			continue
		}
		if !yield(rec, nil) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		yield(TrackRecord{}, fmt.Errorf("failed to read record file: %w", err))
	}
}

func (s *Store) readCSV(r io.Reader, yield func(TrackRecord, error) bool) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	for {
		values, err := cr.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				if !yield(TrackRecord{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)) {
					return
				}
				continue
			}
			yield(TrackRecord{}, fmt.Errorf("failed to read record file: %w", err))
			return
		}
		if len(values) != 4 {
			line, _ := cr.FieldPos(0)
			if !yield(TrackRecord{}, fmt.Errorf("line %d: %w: expected 4 fields, got %d", line, ErrMalformedLine, len(values))) {
				return
			}
			continue
		}
		rec := fromValues(values)
		if err := rec.Validate(); err != nil {
			if !yield(TrackRecord{}, err) {
				return
			}
			continue
		}
		if !yield(rec, nil) {
			return
		}
	}
}
