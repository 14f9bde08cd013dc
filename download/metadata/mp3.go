package metadata

import (
	"bytes"
	"fmt"

	"github.com/bogem/id3v2/v2"

	"github.com/sv4u/playlistdl/download/record"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

// embedMP3 replaces every APIC frame with a single front cover and, if rec is
// set, writes text frames. A file without an ID3v2 tag gets a new one.
func (e *Embedder) embedMP3(filePath string, art []byte, rec *record.TrackRecord) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return &MetadataError{
			Message:  fmt.Sprintf("Failed to open MP3 file: %s", filePath),
			Original: err,
		}
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if rec != nil {
		tag.SetTitle(rec.Name)
		tag.SetArtist(rec.Artist)
		// URL link frames carry the bare URL with no encoding byte.
		tag.AddFrame("WOAS", id3v2.UnknownFrame{Body: []byte(rec.SourceURL)})
	}

	mimeType := "image/jpeg"
	if bytes.HasPrefix(art, pngMagic) {
		mimeType = "image/png"
	}

	tag.DeleteFrames("APIC")
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    mimeType,
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     art,
	})

	if err := tag.Save(); err != nil {
		return &MetadataError{
			Message:  "Failed to save MP3 metadata",
			Original: err,
		}
	}
	return nil
}
