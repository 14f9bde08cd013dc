package metadata

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/charmbracelet/log"

	"github.com/sv4u/playlistdl/download/record"
)

func newTestEmbedder(text bool) *Embedder {
	return NewEmbedder(log.New(io.Discard), text)
}

// writeFixture creates an untagged "mp3" and a cover image.
func writeFixture(t *testing.T, cover []byte) (audioPath, artPath string) {
	t.Helper()
	dir := t.TempDir()
	audioPath = filepath.Join(dir, "Song.mp3")
	artPath = filepath.Join(dir, "Song.jpg")
	if err := os.WriteFile(audioPath, []byte("\xff\xfbnot-really-audio"), 0644); err != nil {
		t.Fatalf("Failed to write audio: %v", err)
	}
	if err := os.WriteFile(artPath, cover, 0644); err != nil {
		t.Fatalf("Failed to write art: %v", err)
	}
	return audioPath, artPath
}

func pictures(t *testing.T, path string) (*id3v2.Tag, []id3v2.PictureFrame) {
	t.Helper()
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("Failed to reopen tag: %v", err)
	}
	t.Cleanup(func() { _ = tag.Close() })
	var pics []id3v2.PictureFrame
	for _, f := range tag.GetFrames("APIC") {
		pic, ok := f.(id3v2.PictureFrame)
		if !ok {
			t.Fatalf("unexpected frame type %T", f)
		}
		pics = append(pics, pic)
	}
	return tag, pics
}

func TestEmbedder_EmbedArt(t *testing.T) {
	audioPath, artPath := writeFixture(t, []byte("\xff\xd8\xffjpeg"))
	e := newTestEmbedder(false)

	if err := e.EmbedArt(context.Background(), audioPath, artPath); err != nil {
		t.Fatalf("EmbedArt() failed: %v", err)
	}

	if _, err := os.Stat(artPath); !os.IsNotExist(err) {
		t.Errorf("expected art file to be removed, stat error = %v", err)
	}
	_, pics := pictures(t, audioPath)
	if len(pics) != 1 {
		t.Fatalf("expected 1 APIC frame, got %d", len(pics))
	}
	if pics[0].MimeType != "image/jpeg" || pics[0].PictureType != id3v2.PTFrontCover || pics[0].Description != "Cover" {
		t.Errorf("unexpected picture frame: %+v", pics[0])
	}
	if string(pics[0].Picture) != "\xff\xd8\xffjpeg" {
		t.Errorf("picture data not preserved")
	}
}

func TestEmbedder_EmbedArt_RemoveFailureIsNotAnError(t *testing.T) {
	audioPath, artPath := writeFixture(t, []byte("\xff\xd8\xffjpeg"))
	e := newTestEmbedder(false)
	e.remove = func(string) error { return errors.New("permission denied") }

	if err := e.EmbedArt(context.Background(), audioPath, artPath); err != nil {
		t.Fatalf("EmbedArt() failed: %v", err)
	}

	if _, err := os.Stat(artPath); err != nil {
		t.Errorf("expected art file to be left in place, stat error = %v", err)
	}
	if _, pics := pictures(t, audioPath); len(pics) != 1 {
		t.Errorf("expected 1 APIC frame, got %d", len(pics))
	}
}

func TestEmbedder_EmbedArt_ReplacesExistingCover(t *testing.T) {
	audioPath, artPath := writeFixture(t, []byte("first"))
	e := newTestEmbedder(false)
	if err := e.EmbedArt(context.Background(), audioPath, artPath); err != nil {
		t.Fatalf("EmbedArt() failed: %v", err)
	}

	png := append([]byte{0x89, 'P', 'N', 'G'}, []byte("second")...)
	if err := os.WriteFile(artPath, png, 0644); err != nil {
		t.Fatalf("Failed to write art: %v", err)
	}
	if err := e.EmbedArt(context.Background(), audioPath, artPath); err != nil {
		t.Fatalf("EmbedArt() failed: %v", err)
	}

	_, pics := pictures(t, audioPath)
	if len(pics) != 1 {
		t.Fatalf("expected exactly 1 APIC frame after re-embed, got %d", len(pics))
	}
	if pics[0].MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", pics[0].MimeType)
	}
}

func TestEmbedder_Tag_WritesTextFrames(t *testing.T) {
	audioPath, artPath := writeFixture(t, []byte("cover"))
	rec := record.TrackRecord{
		Name:      "Déjà Vu",
		Artist:    "Beyoncé",
		SourceURL: "https://open.spotify.com/track/1",
		ArtURL:    "https://i.scdn.co/image/2",
	}

	if err := newTestEmbedder(true).Tag(context.Background(), audioPath, artPath, rec); err != nil {
		t.Fatalf("Tag() failed: %v", err)
	}

	tag, pics := pictures(t, audioPath)
	if tag.Title() != rec.Name || tag.Artist() != rec.Artist {
		t.Errorf("text frames = %q / %q", tag.Title(), tag.Artist())
	}
	if len(pics) != 1 {
		t.Errorf("expected 1 APIC frame, got %d", len(pics))
	}
	if n := len(tag.GetFrames("WOAS")); n != 1 {
		t.Errorf("expected 1 WOAS frame, got %d", n)
	}
}

func TestEmbedder_Tag_TextDisabled(t *testing.T) {
	audioPath, artPath := writeFixture(t, []byte("cover"))
	rec := record.TrackRecord{Name: "n", Artist: "a", SourceURL: "s", ArtURL: "i"}

	if err := newTestEmbedder(false).Tag(context.Background(), audioPath, artPath, rec); err != nil {
		t.Fatalf("Tag() failed: %v", err)
	}
	tag, _ := pictures(t, audioPath)
	if tag.Title() != "" {
		t.Errorf("expected no title frame, got %q", tag.Title())
	}
}

func TestEmbedder_Errors(t *testing.T) {
	e := newTestEmbedder(false)
	var metaErr *MetadataError

	audioPath, _ := writeFixture(t, []byte("cover"))
	if err := e.EmbedArt(context.Background(), audioPath, filepath.Join(t.TempDir(), "missing.jpg")); !errors.As(err, &metaErr) {
		t.Errorf("missing art: expected MetadataError, got %v", err)
	}

	dir := t.TempDir()
	art := filepath.Join(dir, "Song.jpg")
	if err := os.WriteFile(art, []byte("cover"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := e.EmbedArt(context.Background(), filepath.Join(dir, "Song.m4a"), art); !errors.As(err, &metaErr) {
		t.Errorf("unsupported format: expected MetadataError, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	audioPath, artPath := writeFixture(t, []byte("cover"))
	if err := e.EmbedArt(ctx, audioPath, artPath); !errors.As(err, &metaErr) {
		t.Errorf("cancelled: expected MetadataError, got %v", err)
	}
	if _, err := os.Stat(artPath); err != nil {
		t.Errorf("art file should remain after a failed embed: %v", err)
	}
}
