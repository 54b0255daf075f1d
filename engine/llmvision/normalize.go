package llmvision

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

var (
	thinkBlocks = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// Normalize reduces a chat completion to plain transcription text. Vision
// models tend to wrap their answer in markdown fences, HTML tags, or
// reasoning blocks even when told not to; downstream consumers compare and
// cache raw page text, so all of that markup is stripped here.
func Normalize(raw string) string {
	s := thinkBlocks.ReplaceAllString(raw, "")
	s = flattenMarkdown(s)
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// flattenMarkdown parses the response as markdown and walks the document
// tree collecting literal text, dropping heading markers, list bullets,
// fence delimiters and inline emphasis on the way.
func flattenMarkdown(s string) string {
	source := []byte(s)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		writeBlock(&sb, child, source)
	}
	return sb.String()
}

func writeBlock(sb *strings.Builder, node ast.Node, source []byte) {
	switch n := node.(type) {
	case *ast.Heading, *ast.Paragraph:
		writeInline(sb, node, source)
		sb.WriteString("\n")
	case *ast.List:
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			writeBlock(sb, item, source)
		}
	case *ast.ListItem:
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			writeBlock(sb, child, source)
		}
	case *ast.Blockquote:
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			writeBlock(sb, child, source)
		}
	case *ast.FencedCodeBlock:
		writeLines(sb, n, source)
	case *ast.CodeBlock:
		writeLines(sb, n, source)
	case *ast.HTMLBlock:
		var raw strings.Builder
		writeLines(&raw, n, source)
		sb.WriteString(stripHTML(raw.String()))
	case *ast.ThematicBreak:
		// No text content.
	default:
		writeInline(sb, node, source)
		sb.WriteString("\n")
	}
}

// writeInline collects the literal text under an inline container, turning
// soft and hard line breaks back into whitespace.
func writeInline(sb *strings.Builder, node ast.Node, source []byte) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteString("\n")
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.URL(source))
		case *ast.RawHTML:
			var raw strings.Builder
			for i := 0; i < t.Segments.Len(); i++ {
				raw.Write(t.Segments.At(i).Value(source))
			}
			sb.WriteString(stripHTML(raw.String()))
		case *ast.Image:
			// Drop images; their alt text is not transcription output.
		default:
			writeInline(sb, child, source)
		}
	}
}

func writeLines(sb *strings.Builder, node ast.Node, source []byte) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		sb.Write(lines.At(i).Value(source))
	}
}

// stripHTML drops tags from an HTML fragment, keeping text content. Block
// level and break tags become newlines so lines do not run together.
func stripHTML(fragment string) string {
	tz := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(tz.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tz.TagName()
			switch string(name) {
			case "br", "p", "div", "tr", "li", "table":
				sb.WriteString("\n")
			}
		}
	}
}
