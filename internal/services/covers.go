package services

import (
	"strconv"
	"strings"
)

const coverSize = 200

// AlbumImages is the response of the images endpoint. Every level is optional.
type AlbumImages struct {
	Data []ImageSet `json:"data"`
}

// ImageSet groups the album and author artwork for one track.
type ImageSet struct {
	Album  []AlbumArt  `json:"album"`
	Author []AuthorArt `json:"author"`
}

// AlbumArt is an album cover candidate.
type AlbumArt struct {
	SizableCover string `json:"sizable_cover"`
}

// AuthorArt holds artist images: portraits grouped by variant ("3", "4", ...) and an avatar.
type AuthorArt struct {
	SizableAvatar string                `json:"sizable_avatar"`
	Imgs          map[string][]Portrait `json:"imgs"`
}

// Portrait is an artist portrait candidate.
type Portrait struct {
	SizablePortrait string `json:"sizable_portrait"`
}

// coverExtractor pulls one candidate URL template out of an image set, "" when absent.
type coverExtractor func(ImageSet) string

// coverExtractors is the fallback order: album cover, portrait variant 3, variant 4, avatar.
var coverExtractors = []coverExtractor{
	albumCover,
	authorPortrait("3"),
	authorPortrait("4"),
	authorAvatar,
}

func albumCover(set ImageSet) string {
	if len(set.Album) == 0 {
		return ""
	}
	return set.Album[0].SizableCover
}

func authorPortrait(variant string) coverExtractor {
	return func(set ImageSet) string {
		if len(set.Author) == 0 {
			return ""
		}
		portraits := set.Author[0].Imgs[variant]
		if len(portraits) == 0 {
			return ""
		}
		return portraits[0].SizablePortrait
	}
}

func authorAvatar(set ImageSet) string {
	if len(set.Author) == 0 {
		return ""
	}
	return set.Author[0].SizableAvatar
}

// CoverURL returns the first artwork found by the extractor chain, sized to 200px, or "".
func (a *AlbumImages) CoverURL() string {
	if a == nil || len(a.Data) == 0 {
		return ""
	}

	for _, extract := range coverExtractors {
		if u := extract(a.Data[0]); u != "" {
			return sizedImage(u, coverSize)
		}
	}
	return ""
}

// sizedImage fills the "{size}" placeholder the catalog uses in image URL templates.
func sizedImage(template string, size int) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{size}", strconv.Itoa(size))
}
