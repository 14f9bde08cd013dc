package spotify

import (
	"github.com/charmbracelet/log"
	"github.com/sv4u/spotigo"

	"github.com/sv4u/playlistdl/download/record"
)

// PlaylistEntry is the subset of a playlist item needed to build a record.
type PlaylistEntry struct {
	Name      string
	Artist    string
	SourceURL string
	ArtURL    string
	IsLocal   bool
}

// entryFromItem flattens a playlist item. The item's track may be a full or
// simplified track; simplified tracks carry no album art and come out
// incomplete.
func entryFromItem(item spotigo.PlaylistTrack) PlaylistEntry {
	switch t := item.Track.(type) {
	case *spotigo.Track:
		if t == nil {
			return PlaylistEntry{}
		}
		return entryFromTrack(*t)
	case spotigo.Track:
		return entryFromTrack(t)
	case *spotigo.SimplifiedTrack:
		if t == nil {
			return PlaylistEntry{}
		}
		return entryFromSimplified(*t)
	case spotigo.SimplifiedTrack:
		return entryFromSimplified(t)
	}
	return PlaylistEntry{}
}

func entryFromTrack(t spotigo.Track) PlaylistEntry {
	e := PlaylistEntry{Name: t.Name, IsLocal: t.IsLocal}
	if t.ExternalURLs != nil {
		e.SourceURL = t.ExternalURLs.Spotify
	}
	if len(t.Artists) > 0 {
		e.Artist = t.Artists[0].Name
	}
	if t.Album != nil && len(t.Album.Images) > 0 {
		e.ArtURL = t.Album.Images[0].URL
	}
	return e
}

func entryFromSimplified(t spotigo.SimplifiedTrack) PlaylistEntry {
	e := PlaylistEntry{Name: t.Name, IsLocal: t.IsLocal}
	if t.ExternalURLs != nil {
		e.SourceURL = t.ExternalURLs.Spotify
	}
	return e
}

// Collect converts entries to records in playlist order. Local tracks and
// entries with a missing field are logged and dropped.
func Collect(entries []PlaylistEntry, logger *log.Logger) []record.TrackRecord {
	if logger == nil {
		logger = log.Default()
	}
	records := make([]record.TrackRecord, 0, len(entries))
	for _, e := range entries {
		if e.IsLocal {
			logger.Info("track_skipped", "reason", "local_only", "track", e.Name, "artist", e.Artist)
			continue
		}
		rec := record.TrackRecord{
			Name:      e.Name,
			Artist:    e.Artist,
			SourceURL: e.SourceURL,
			ArtURL:    e.ArtURL,
		}
		if err := rec.Validate(); err != nil {
			logger.Warn("track_skipped", "reason", "incomplete", "track", e.Name, "artist", e.Artist, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}
