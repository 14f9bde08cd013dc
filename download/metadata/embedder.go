package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/sv4u/playlistdl/download/record"
)

// Embedder writes cover art, and optionally text frames, into audio files.
type Embedder struct {
	logger        *log.Logger
	writeTextTags bool

	// remove deletes the art file once it is embedded.
	remove func(string) error
}

// NewEmbedder creates a new metadata embedder.
func NewEmbedder(logger *log.Logger, writeTextTags bool) *Embedder {
	if logger == nil {
		logger = log.Default()
	}
	return &Embedder{logger: logger, writeTextTags: writeTextTags, remove: os.Remove}
}

// EmbedArt replaces the front cover of audioPath with the image at artPath,
// then removes artPath.
func (e *Embedder) EmbedArt(ctx context.Context, audioPath, artPath string) error {
	return e.embed(ctx, audioPath, artPath, nil)
}

// Tag embeds the cover like EmbedArt and, when text tags are enabled, also
// sets title, artist and source URL from rec.
func (e *Embedder) Tag(ctx context.Context, audioPath, artPath string, rec record.TrackRecord) error {
	if !e.writeTextTags {
		return e.embed(ctx, audioPath, artPath, nil)
	}
	return e.embed(ctx, audioPath, artPath, &rec)
}

func (e *Embedder) embed(ctx context.Context, audioPath, artPath string, rec *record.TrackRecord) error {
	if err := ctx.Err(); err != nil {
		return &MetadataError{Message: "Context cancelled", Original: err}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(audioPath), "."))
	if ext != "mp3" {
		return &MetadataError{Message: fmt.Sprintf("Unsupported format: %s", ext)}
	}

	art, err := os.ReadFile(artPath)
	if err != nil {
		return &MetadataError{Message: fmt.Sprintf("Failed to read cover art: %s", artPath), Original: err}
	}

	if err := e.embedMP3(audioPath, art, rec); err != nil {
		e.logger.Error("metadata_embed_failed", "file", audioPath, "error", err)
		return err
	}

	// The art is already embedded; a leftover file does not degrade the track.
	if err := e.remove(artPath); err != nil {
		e.logger.Warn("art_remove_failed", "path", artPath, "error", err)
	}

	e.logger.Debug("metadata_embed_complete", "file", audioPath)
	return nil
}
