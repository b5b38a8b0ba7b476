package markdown

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer turns update bodies into HTML and plain-text excerpts.
type Renderer struct {
	md     goldmark.Markdown
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

func NewRenderer() *Renderer {
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
	}
}

// HTML renders markdown to sanitized HTML.
func (r *Renderer) HTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return r.ugc.Sanitize(buf.String()), nil
}

// PlainText drops all markup, images included, and collapses whitespace.
func (r *Renderer) PlainText(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	text := html.UnescapeString(r.strict.Sanitize(buf.String()))
	return strings.Join(strings.Fields(text), " "), nil
}

// Excerpt returns at most limit characters of the plain-text rendering.
func (r *Renderer) Excerpt(source string, limit int) (string, error) {
	text, err := r.PlainText(source)
	if err != nil {
		return "", err
	}
	runes := []rune(text)
	if limit >= 0 && len(runes) > limit {
		return strings.TrimSpace(string(runes[:limit])), nil
	}
	return text, nil
}
