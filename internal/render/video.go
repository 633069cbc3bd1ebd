package render

import (
	"regexp"
	"strings"

	"mailout/internal/domain"
)

const PlaceholderThumbnail = "https://via.placeholder.com/600x400/000000/FFFFFF/?text=%E2%96%B6+VIDEO"

var (
	youtubeID = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`)
	vimeoID   = regexp.MustCompile(`vimeo\.com/(\d+)`)
)

// VideoThumbnail derives a still image for a video link. An explicit
// thumbnail wins, then the platform conventions, then a placeholder.
func VideoThumbnail(vd domain.VideoData, link string) string {
	if u := strings.TrimSpace(vd.ThumbnailURL); u != "" {
		return u
	}
	if vd.VideoID != "" {
		switch strings.ToLower(vd.Platform) {
		case "youtube":
			return youtubeThumb(vd.VideoID)
		case "vimeo":
			return vimeoThumb(vd.VideoID)
		}
	}
	if m := youtubeID.FindStringSubmatch(link); m != nil {
		return youtubeThumb(m[1])
	}
	if m := vimeoID.FindStringSubmatch(link); m != nil {
		return vimeoThumb(m[1])
	}
	return PlaceholderThumbnail
}

func youtubeThumb(id string) string { return "https://img.youtube.com/vi/" + id + "/hqdefault.jpg" }

func vimeoThumb(id string) string { return "https://vumbnail.com/" + id + ".jpg" }
