package bluesky

import (
	"regexp"
	"strings"

	"github.com/bluesky-social/indigo/api/bsky"
)

var (
	linkPattern = regexp.MustCompile(`https?://[^\s<>"]+`)
	tagPattern  = regexp.MustCompile(`(?:^|\s)(#[\p{L}\p{N}_]+)`)
)

// facets marks links and hashtags in text so clients render them as rich
// text. Offsets are byte positions in the UTF-8 text.
func facets(text string) []*bsky.RichtextFacet {
	var out []*bsky.RichtextFacet

	for _, loc := range linkPattern.FindAllStringIndex(text, -1) {
		end := loc[1]
		for end > loc[0] && strings.ContainsRune(".,;:!?)", rune(text[end-1])) {
			end--
		}
		out = append(out, &bsky.RichtextFacet{
			Index: &bsky.RichtextFacet_ByteSlice{ByteStart: int64(loc[0]), ByteEnd: int64(end)},
			Features: []*bsky.RichtextFacet_Features_Elem{
				{RichtextFacet_Link: &bsky.RichtextFacet_Link{Uri: text[loc[0]:end]}},
			},
		})
	}

	for _, loc := range tagPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		tag := text[start+1 : end]
		if strings.Trim(tag, "0123456789") == "" {
			continue
		}
		out = append(out, &bsky.RichtextFacet{
			Index: &bsky.RichtextFacet_ByteSlice{ByteStart: int64(start), ByteEnd: int64(end)},
			Features: []*bsky.RichtextFacet_Features_Elem{
				{RichtextFacet_Tag: &bsky.RichtextFacet_Tag{Tag: tag}},
			},
		})
	}
	return out
}
