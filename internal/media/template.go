package media

import (
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
)

// DefaultFilenameTemplate names final transcript files.
const DefaultFilenameTemplate = "%(title)s [%(id)s]"

// IntermediateTemplate names intermediate audio files by video id only.
const IntermediateTemplate = "%(id)s"

// ExpandTemplate substitutes the supported metadata fields into a filename
// template. Supported fields: %(id)s, %(title)s, %(author)s. Unknown fields
// are left as-is.
func ExpandTemplate(template string, video *ytdl.Video) string {
	replacer := strings.NewReplacer(
		"%(id)s", video.ID,
		"%(title)s", video.Title,
		"%(author)s", video.Author,
	)
	return replacer.Replace(template)
}
