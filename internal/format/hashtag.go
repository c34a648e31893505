package format

import (
	"regexp"
	"strings"
	"unicode"
)

var hashtagRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_&#/])#([\p{L}\p{N}_]+)`)

// ExtractHashtags returns the hashtags found in text, without the leading
// '#', in order of first appearance. Duplicates are dropped case-insensitively
// and purely numeric tokens ("#1") are ignored. The text is not modified.
func ExtractHashtags(text string) []string {
	matches := hashtagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	tags := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		tag := m[1]
		if !strings.ContainsFunc(tag, unicode.IsLetter) {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// NormalizeTag turns a free-form tag ("#Go lang", "go") into hashtag form
// ("#Golang", "#go"). It returns "" when nothing usable is left.
func NormalizeTag(tag string) string {
	tag = strings.TrimLeft(strings.TrimSpace(tag), "#")
	tag = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, tag)
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// MissingHashtags normalizes tags and keeps the ones not already present as
// hashtags in text, preserving order and dropping duplicates.
func MissingHashtags(text string, tags []string) []string {
	seen := make(map[string]struct{})
	for _, existing := range ExtractHashtags(text) {
		seen[strings.ToLower(existing)] = struct{}{}
	}

	var out []string
	for _, raw := range tags {
		tag := NormalizeTag(raw)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag[1:])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
