// Package text prepares assistant responses for speech. Synthesis
// backends read markdown punctuation aloud, so everything that is
// formatting rather than prose gets stripped before the pipeline sees
// the text.
package text

import (
	"regexp"
	"strings"
)

var (
	codeFence   = regexp.MustCompile("(?s)```.*?```")
	inlineCode  = regexp.MustCompile("`([^`]*)`")
	mdImage     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink      = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	boldMarks   = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	italicMarks = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
	heading     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	bullet      = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	blockquote  = regexp.MustCompile(`(?m)^>\s?`)
	multiSpace  = regexp.MustCompile(`[ \t]{2,}`)
	multiBlank  = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown removes markdown formatting from text, keeping the
// readable prose. Code blocks are dropped entirely; nobody wants to
// hear a JSON payload read character by character.
func StripMarkdown(s string) string {
	s = codeFence.ReplaceAllString(s, "")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = mdImage.ReplaceAllString(s, "$1")
	s = mdLink.ReplaceAllString(s, "$1")
	s = boldMarks.ReplaceAllString(s, "$1$2")
	s = italicMarks.ReplaceAllString(s, "$1$2")
	s = heading.ReplaceAllString(s, "")
	s = bullet.ReplaceAllString(s, "")
	s = blockquote.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
