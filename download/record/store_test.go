package record

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func sampleRecords() []TrackRecord {
	return []TrackRecord{
		{
			Name:      "Bohemian Rhapsody",
			Artist:    "Queen",
			SourceURL: "https://open.spotify.com/track/4u7EnebtmKWzUH433cf5Qv",
			ArtURL:    "https://i.scdn.co/image/ab67616d0000b273ce4f1737bc8a646c8c4bd25a",
		},
		{
			Name:      "Déjà Vu",
			Artist:    "Beyoncé",
			SourceURL: "https://open.spotify.com/track/1",
			ArtURL:    "https://i.scdn.co/image/2",
		},
		{
			Name:      "夜に駆ける",
			Artist:    "YOASOBI",
			SourceURL: "https://open.spotify.com/track/3",
			ArtURL:    "https://i.scdn.co/image/4",
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatLegacy, FormatCSV, FormatJSONL} {
		t.Run(string(format), func(t *testing.T) {
			store := NewStore(format, quietLogger())
			path := filepath.Join(t.TempDir(), "tracks.txt")

			want := sampleRecords()
			n, err := store.Write(path, want)
			if err != nil {
				t.Fatalf("Write() failed: %v", err)
			}
			if n != len(want) {
				t.Fatalf("Write() wrote %d records, want %d", n, len(want))
			}

			got, err := store.Collect(path)
			if err != nil {
				t.Fatalf("Collect() failed: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("got %d records, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestStore_QuotingFormatsPreserveCommas(t *testing.T) {
	rec := TrackRecord{
		Name:      "Hello, Goodbye",
		Artist:    "The Beatles",
		SourceURL: "https://open.spotify.com/track/x",
		ArtURL:    "https://i.scdn.co/image/y",
	}
	for _, format := range []Format{FormatCSV, FormatJSONL} {
		t.Run(string(format), func(t *testing.T) {
			store := NewStore(format, quietLogger())
			path := filepath.Join(t.TempDir(), "tracks.txt")
			if _, err := store.Write(path, []TrackRecord{rec}); err != nil {
				t.Fatalf("Write() failed: %v", err)
			}
			got, err := store.Collect(path)
			if err != nil {
				t.Fatalf("Collect() failed: %v", err)
			}
			if len(got) != 1 || got[0] != rec {
				t.Errorf("got %+v, want [%+v]", got, rec)
			}
		})
	}

	lineBreaks := TrackRecord{
		Name:      "a\r\nb",
		Artist:    "x\ry",
		SourceURL: "https://open.spotify.com/track/x",
		ArtURL:    "https://i.scdn.co/image/y",
	}
	t.Run("jsonl carriage return", func(t *testing.T) {
		store := NewStore(FormatJSONL, quietLogger())
		path := filepath.Join(t.TempDir(), "tracks.txt")
		if _, err := store.Write(path, []TrackRecord{lineBreaks}); err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
		got, err := store.Collect(path)
		if err != nil {
			t.Fatalf("Collect() failed: %v", err)
		}
		if len(got) != 1 || got[0] != lineBreaks {
			t.Errorf("got %+v, want [%+v]", got, lineBreaks)
		}
	})
	t.Run("csv carriage return", func(t *testing.T) {
		store := NewStore(FormatCSV, quietLogger())
		path := filepath.Join(t.TempDir(), "tracks.txt")
		written, err := store.Write(path, []TrackRecord{lineBreaks, rec})
		if err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
		if written != 1 {
			t.Errorf("written = %d, want 1", written)
		}
		got, err := store.Collect(path)
		if err != nil {
			t.Fatalf("Collect() failed: %v", err)
		}
		if len(got) != 1 || got[0] != rec {
			t.Errorf("got %+v, want only [%+v]", got, rec)
		}
	})
}

func TestStore_LegacyByteFormat(t *testing.T) {
	store := NewStore(FormatLegacy, quietLogger())
	path := filepath.Join(t.TempDir(), "tracks.txt")
	recs := []TrackRecord{
		{Name: "a", Artist: "b", SourceURL: "c", ArtURL: "d"},
		{Name: "e", Artist: "f", SourceURL: "g", ArtURL: "h"},
	}
	if _, err := store.Write(path, recs); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if want := "a,b,c,d\ne,f,g,h\n"; string(data) != want {
		t.Errorf("file content = %q, want %q", data, want)
	}
}

func TestStore_LegacyCommaIsMalformedOnRead(t *testing.T) {
	store := NewStore(FormatLegacy, quietLogger())
	path := filepath.Join(t.TempDir(), "tracks.txt")
	recs := []TrackRecord{
		{Name: "Hello, Goodbye", Artist: "The Beatles", SourceURL: "u", ArtURL: "a"},
		{Name: "Help!", Artist: "The Beatles", SourceURL: "u", ArtURL: "a"},
	}
	if _, err := store.Write(path, recs); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	var good []TrackRecord
	var errs []error
	for r, err := range store.ReadAll(path) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		good = append(good, r)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrMalformedLine) {
		t.Errorf("expected one ErrMalformedLine, got %v", errs)
	}
	if len(good) != 1 || good[0] != recs[1] {
		t.Errorf("expected only the comma-free record, got %+v", good)
	}
}

func TestStore_WriteSkipsInvalidRecords(t *testing.T) {
	store := NewStore(FormatLegacy, quietLogger())
	path := filepath.Join(t.TempDir(), "tracks.txt")
	recs := []TrackRecord{
		{Name: "local only", Artist: "me", SourceURL: "", ArtURL: "a"},
		{Name: "ok", Artist: "me", SourceURL: "u", ArtURL: "a"},
		{Name: "bad\xffutf8", Artist: "me", SourceURL: "u", ArtURL: "a"},
		{Name: "two\nlines", Artist: "me", SourceURL: "u", ArtURL: "a"},
	}

	n, err := store.Write(path, recs)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Write() wrote %d records, want 1", n)
	}
	got, err := store.Collect(path)
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "ok" {
		t.Errorf("got %+v, want only the valid record", got)
	}
}

func TestStore_WriteTruncates(t *testing.T) {
	store := NewStore(FormatCSV, quietLogger())
	path := filepath.Join(t.TempDir(), "tracks.txt")
	recs := sampleRecords()
	if _, err := store.Write(path, recs); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if _, err := store.Write(path, recs[:1]); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	got, err := store.Collect(path)
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected truncated file with 1 record, got %d", len(got))
	}
}

func TestStore_ReadAll_MissingFile(t *testing.T) {
	store := NewStore(FormatCSV, quietLogger())
	count := 0
	for _, err := range store.ReadAll(filepath.Join(t.TempDir(), "nope.txt")) {
		count++
		if err == nil {
			t.Error("expected an open error")
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one yielded error, got %d", count)
	}
}

func TestStore_ReadAll_StopsEarly(t *testing.T) {
	store := NewStore(FormatJSONL, quietLogger())
	path := filepath.Join(t.TempDir(), "tracks.jsonl")
	if _, err := store.Write(path, sampleRecords()); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	seen := 0
	for _, err := range store.ReadAll(path) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Errorf("expected to stop after 2 records, saw %d", seen)
	}
}

func TestStore_ReadAll_SkipsBlankAndCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.txt")
	if err := os.WriteFile(path, []byte("a,b,c,d\r\n\r\ne,f,g,h\n"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	got, err := NewStore(FormatLegacy, quietLogger()).Collect(path)
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}
	if len(got) != 2 || got[0].ArtURL != "d" || got[1].Name != "e" {
		t.Errorf("unexpected records: %+v", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"csv", FormatCSV, false},
		{" Legacy ", FormatLegacy, false},
		{"jsonl", FormatJSONL, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTrackRecord_Validate(t *testing.T) {
	ok := TrackRecord{Name: "n", Artist: "a", SourceURL: "s", ArtURL: "i"}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	missing := ok
	missing.ArtURL = ""
	if err := missing.Validate(); !errors.Is(err, ErrMissingField) {
		t.Errorf("Validate() = %v, want ErrMissingField", err)
	}
}
