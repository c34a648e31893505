package telegram

import (
	"html"
	"strings"

	"github.com/blacktop/sendto/internal/format"
)

// NewFormatter returns the text rules for a Bot API message in parseMode.
// Titles are bolded in the markup the parse mode understands.
func NewFormatter(parseMode string) *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:     TextLimit,
		CaptionLength: CaptionLimit,
		IncludeTitle:  true,
		TitleStyle:    boldTitle(parseMode),
		IncludeURL:    true,
		AppendTags:    true,
		Ellipsis:      "…",
	})
}

func boldTitle(parseMode string) func(string) string {
	switch strings.ToLower(parseMode) {
	case "html":
		return func(s string) string { return "<b>" + html.EscapeString(s) + "</b>" }
	case "markdown":
		return func(s string) string { return "*" + s + "*" }
	case "markdownv2":
		return func(s string) string { return "*" + escapeMarkdownV2(s) + "*" }
	default:
		return nil
	}
}

var markdownV2Replacer = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

func escapeMarkdownV2(s string) string {
	return markdownV2Replacer.Replace(s)
}
