package downloads

import (
	"fmt"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/desertthunder/mdx/internal/shared"
	"github.com/dhowden/tag"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// Metadata is written into a downloaded file's tags.
type Metadata struct {
	Title  string
	Artist string
	Album  string
	Cover  []byte // optional front cover image
}

// coverMIME sniffs the cover's content type, defaulting to JPEG.
func (m Metadata) coverMIME() string {
	if len(m.Cover) == 0 {
		return ""
	}
	mime := http.DetectContentType(m.Cover)
	if !strings.HasPrefix(mime, "image/") {
		return "image/jpeg"
	}
	return mime
}

// Tagger writes [Metadata] into audio files, picking the tag format from the extension.
type Tagger interface {
	Write(path string, meta Metadata) error
}

// FileTagger tags MP3 files with ID3v2 frames and FLAC files with Vorbis comments.
type FileTagger struct{}

// Write tags the file at path. Formats other than MP3 and FLAC are [shared.ErrUnsupportedFormat].
func (FileTagger) Write(path string, meta Metadata) error {
	switch ext, _ := shared.NormalizeExtension(filepath.Ext(path)); ext {
	case "mp3":
		return writeID3(path, meta)
	case "flac":
		return writeFLAC(path, meta)
	default:
		return fmt.Errorf("%w: %s", shared.ErrUnsupportedFormat, ext)
	}
}

func writeID3(path string, meta Metadata) error {
	tagFile, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tagFile.Close()

	tagFile.SetDefaultEncoding(id3v2.EncodingUTF8)
	tagFile.SetTitle(meta.Title)
	tagFile.SetArtist(meta.Artist)
	if meta.Album != "" {
		tagFile.SetAlbum(meta.Album)
	}

	if len(meta.Cover) > 0 {
		tagFile.DeleteFrames("APIC")
		tagFile.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    meta.coverMIME(),
			PictureType: id3v2.PTFrontCover,
			Description: "Front Cover",
			Picture:     meta.Cover,
		})
	}

	if err := tagFile.Save(); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}
	return nil
}

func writeFLAC(path string, meta Metadata) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to open FLAC file: %w", err)
	}

	comments := flacvorbis.New()
	kept := f.Meta[:0]
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			if existing, err := flacvorbis.ParseFromMetaDataBlock(*block); err == nil {
				comments = existing
			}
			continue
		case flac.Picture:
			if len(meta.Cover) > 0 {
				continue
			}
		}
		kept = append(kept, block)
	}
	f.Meta = kept

	comments.Comments = withoutFields(comments.Comments, flacvorbis.FIELD_TITLE, flacvorbis.FIELD_ARTIST, flacvorbis.FIELD_ALBUM)
	for _, field := range [][2]string{
		{flacvorbis.FIELD_TITLE, meta.Title},
		{flacvorbis.FIELD_ARTIST, meta.Artist},
		{flacvorbis.FIELD_ALBUM, meta.Album},
	} {
		if field[1] == "" {
			continue
		}
		if err := comments.Add(field[0], field[1]); err != nil {
			return fmt.Errorf("failed to add %s comment: %w", field[0], err)
		}
	}

	commentBlock := comments.Marshal()
	f.Meta = append(f.Meta, &commentBlock)

	if len(meta.Cover) > 0 {
		picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front Cover", meta.Cover, meta.coverMIME())
		if err != nil {
			return fmt.Errorf("failed to encode cover: %w", err)
		}
		pictureBlock := picture.Marshal()
		f.Meta = append(f.Meta, &pictureBlock)
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save FLAC file: %w", err)
	}
	return nil
}

// withoutFields drops "KEY=value" comments whose key matches one of fields, case-insensitively.
func withoutFields(comments []string, fields ...string) []string {
	out := comments[:0]
	for _, c := range comments {
		key, _, _ := strings.Cut(c, "=")
		drop := false
		for _, f := range fields {
			if strings.EqualFold(key, f) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, c)
		}
	}
	return out
}

// FileTags is what [ReadTags] found in a file.
type FileTags struct {
	Path      string `json:"path"`
	Format    string `json:"format"`
	FileType  string `json:"file_type"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	HasCover  bool   `json:"has_cover"`
	CoverMIME string `json:"cover_mime,omitempty"`
	Size      int64  `json:"size"`
}

// ReadTags reads the tags of the audio file at path.
func ReadTags(path string) (*FileTags, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	m, err := tag.ReadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnsupportedFormat, err)
	}

	tags := &FileTags{
		Path:     path,
		Format:   string(m.Format()),
		FileType: string(m.FileType()),
		Title:    m.Title(),
		Artist:   m.Artist(),
		Album:    m.Album(),
		Size:     stat.Size(),
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		tags.HasCover = true
		tags.CoverMIME = pic.MIMEType
	}
	return tags, nil
}
