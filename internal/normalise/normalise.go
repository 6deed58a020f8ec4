// Package normalise converts marked-up document text to plain text
// before chunking. Ingestion accepts raw markdown or HTML bodies;
// stripping the markup first keeps chunk text readable in prompts and
// stops tag soup from polluting the lexical index.
package normalise

import (
	"html"
	"mime"
	"regexp"
	"strings"
)

// Text returns the plain-text rendition of text for the given content
// type. Unknown or empty content types pass through unchanged.
func Text(contentType, text string) string {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "text/html", "application/xhtml+xml":
		return HTML(text)
	case "text/markdown", "text/x-markdown":
		return Markdown(text)
	default:
		return text
	}
}

var (
	scriptTag      = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag       = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag    = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag        = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag         = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments   = regexp.MustCompile(`(?s)<!--.*?-->`)
	openBlockTags  = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	closeBlockTags = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	brTags         = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags         = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags        = regexp.MustCompile(`<[^>]+>`)
	multiSpaces    = regexp.MustCompile(`[ \t]+`)
	multiNewlines  = regexp.MustCompile(`\n{3,}`)
)

// HTML strips tags and extracts readable text. Script, style and head
// sections are dropped entirely; block element boundaries become line
// breaks so paragraph structure survives for the chunker.
func HTML(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	content = openBlockTags.ReplaceAllString(content, "\n")
	content = closeBlockTags.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

var (
	codeBlock    = regexp.MustCompile("(?s)```[^`]*```")
	inlineCode   = regexp.MustCompile("`[^`]+`")
	mdImages     = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinks      = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeadings   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBlockquote = regexp.MustCompile(`(?m)^>\s*`)
	mdRules      = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	mdBullets    = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumbered   = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
)

// Markdown removes common markdown formatting. Fenced code blocks are
// dropped rather than kept verbatim, link text survives without the URL.
func Markdown(content string) string {
	content = codeBlock.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "")
	content = mdImages.ReplaceAllString(content, "")
	content = mdLinks.ReplaceAllString(content, "$1")
	content = mdHeadings.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")
	content = strings.ReplaceAll(content, "_", " ")

	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdRules.ReplaceAllString(content, "")
	content = mdBullets.ReplaceAllString(content, "")
	content = mdNumbered.ReplaceAllString(content, "")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
