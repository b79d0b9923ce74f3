// Package xmlutil holds the tag-stripping, entity-decoding, and
// substring-extraction helpers shared by the MEDLINE and JATS parsers.
// Building a DOM for either schema is deliberately avoided: MEDLINE's inline
// formatting tags break a strict deserializer, and JATS's tolerated
// malformations make substring scanning the more robust choice.
package xmlutil

import (
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// inlineTags are stripped (opening and closing forms) before the document is
// handed to a schema-aware deserializer; their text content is preserved.
var inlineTags = []string{"i", "b", "u", "sup", "sub", "em", "strong", "italic", "bold"}

var inlineTagRe = regexp.MustCompile(`(?i)</?(?:` + strings.Join(inlineTags, "|") + `)(?:\s[^>]*)?>`)

// StripInlineTags removes the closed set of inline HTML-like formatting tags
// from an XML document, keeping their inner text. It is applied to the raw
// document before decoding, not to already-extracted text.
func StripInlineTags(doc string) string {
	return inlineTagRe.ReplaceAllString(doc, "")
}

var entityRe = regexp.MustCompile(`&(amp|lt|gt|quot|apos|#\d+|#x[0-9A-Fa-f]+);`)

// DecodeEntities decodes the closed set of XML entities on already-extracted
// text. It must not be run over a raw document, only over text already
// pulled out of tags.
func DecodeEntities(s string) string {
	return entityRe.ReplaceAllStringFunc(s, func(m string) string {
		body := m[1 : len(m)-1]
		switch body {
		case "amp":
			return "&"
		case "lt":
			return "<"
		case "gt":
			return ">"
		case "quot":
			return `"`
		case "apos":
			return "'"
		}
		if strings.HasPrefix(body, "#x") || strings.HasPrefix(body, "#X") {
			n, err := strconv.ParseInt(body[2:], 16, 32)
			if err != nil {
				return m
			}
			return string(rune(n))
		}
		if strings.HasPrefix(body, "#") {
			n, err := strconv.ParseInt(body[1:], 10, 32)
			if err != nil {
				return m
			}
			return string(rune(n))
		}
		return m
	})
}

// StripTags removes every XML/HTML tag from s, leaving only text content,
// then decodes entities and normalizes the remainder. Used on already-sliced
// fragments (a <p>, a <caption>, an <ack>), never on a whole document.
func StripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return NormalizeUnicode(DecodeEntities(strings.TrimSpace(b.String())))
}

// TagText returns the text content of the first occurrence of <tag>...</tag>
// within doc, or ("", false) if the tag is absent. Nested tags of the same
// name are not supported; callers needing nesting use TagDepthBlocks.
func TagText(doc, tag string) (string, bool) {
	open := "<" + tag
	pos := 0
	for {
		start := strings.Index(doc[pos:], open)
		if start == -1 {
			return "", false
		}
		start += pos
		// Reject matches where tag is merely a prefix of a longer tag name
		// (<journal-title matching <journal-title-group).
		after := start + len(open)
		if after < len(doc) {
			c := doc[after]
			if c != '>' && c != ' ' && c != '\t' && c != '\n' && c != '/' {
				pos = start + 1
				continue
			}
		}
		gt := strings.IndexByte(doc[start:], '>')
		if gt == -1 {
			return "", false
		}
		contentStart := start + gt + 1
		if gt > 0 && doc[start+gt-1] == '/' {
			return "", true
		}
		close := "</" + tag + ">"
		end := strings.Index(doc[contentStart:], close)
		if end == -1 {
			return "", false
		}
		return doc[contentStart : contentStart+end], true
	}
}

// AllTagBlocks returns the full <tag ...>...</tag> blocks (including the tags
// themselves) for every top-level, non-nested occurrence of tag in doc.
func AllTagBlocks(doc, tag string) []string {
	var blocks []string
	open := "<" + tag
	closeTag := "</" + tag + ">"
	pos := 0
	for {
		start := strings.Index(doc[pos:], open)
		if start == -1 {
			break
		}
		start += pos
		// Reject matches where `tag` is merely a prefix of a longer tag name
		// (e.g. "sec" matching "section").
		after := start + len(open)
		if after < len(doc) {
			c := doc[after]
			if c != '>' && c != ' ' && c != '\t' && c != '\n' && c != '/' {
				pos = start + 1
				continue
			}
		}
		gt := strings.IndexByte(doc[start:], '>')
		if gt == -1 {
			break
		}
		if doc[start+gt-1] == '/' {
			blocks = append(blocks, doc[start:start+gt+1])
			pos = start + gt + 1
			continue
		}
		end := strings.Index(doc[start:], closeTag)
		if end == -1 {
			break
		}
		blocks = append(blocks, doc[start:start+end+len(closeTag)])
		pos = start + end + len(closeTag)
	}
	return blocks
}

// Attr returns the value of attribute name on the opening tag at the start of
// block (a string returned from AllTagBlocks, or any "<tag ...>..." slice).
func Attr(block, name string) (string, bool) {
	gt := strings.IndexByte(block, '>')
	if gt == -1 {
		gt = len(block)
	}
	openTag := block[:gt]
	needle := name + `="`
	idx := strings.Index(openTag, needle)
	if idx == -1 {
		needle = name + `='`
		idx = strings.Index(openTag, needle)
		if idx == -1 {
			return "", false
		}
		rest := openTag[idx+len(needle):]
		end := strings.IndexByte(rest, '\'')
		if end == -1 {
			return "", false
		}
		return rest[:end], true
	}
	rest := openTag[idx+len(needle):]
	end := strings.IndexByte(rest, '"')
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}

// TagDepthBlocks returns the top-level <tag>...</tag> blocks of doc, correctly
// skipping over nested occurrences of the same tag name by tracking a
// balanced depth counter. Use this instead of AllTagBlocks whenever the tag
// can legally nest inside itself (JATS <sec>).
func TagDepthBlocks(doc, tag string) []string {
	openRe := regexp.MustCompile(`(?i)<` + tag + `(?:\s[^>]*)?>`)
	closeStr := "</" + tag + ">"
	var blocks []string
	pos := 0
	for pos < len(doc) {
		loc := openRe.FindStringIndex(doc[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		cursor := pos + loc[1]
		depth := 1
		for depth > 0 {
			nextOpen := openRe.FindStringIndex(doc[cursor:])
			nextClose := strings.Index(doc[cursor:], closeStr)
			if nextClose == -1 {
				cursor = len(doc)
				depth = 0
				break
			}
			if nextOpen != nil && nextOpen[0] < nextClose {
				depth++
				cursor += nextOpen[1]
				continue
			}
			depth--
			cursor += nextClose + len(closeStr)
		}
		blocks = append(blocks, doc[start:cursor])
		pos = cursor
	}
	return blocks
}

// NewXMLDecoder builds an *xml.Decoder over r with CharsetReader wired to
// golang.org/x/net/html/charset, so MEDLINE/JATS payloads declared in a
// non-UTF-8 encoding (NCBI occasionally serves Latin-1 ISOAbbreviation
// fields) decode instead of failing outright.
func NewXMLDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return d
}

// NormalizeUnicode applies NFC normalization and folds the common ligature
// characters NCBI documents occasionally carry (ﬁ, ﬂ, œ, etc.) into their
// ASCII-ish expansions.
func NormalizeUnicode(s string) string {
	replacer := strings.NewReplacer(
		"ﬁ", "fi",
		"ﬂ", "fl",
		"ﬀ", "ff",
		"ﬃ", "ffi",
		"ﬄ", "ffl",
		"ﬆ", "st",
		"œ", "oe",
		"æ", "ae",
	)
	s = replacer.Replace(s)
	t := transform.Chain(norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return normalized
}
