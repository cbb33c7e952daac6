// Package parser reads DOCX files and splits them into heading-addressed
// sections. A DOCX file is a ZIP archive whose main text lives in
// word/document.xml; paragraphs styled "Heading N" open a section at level N
// and every other paragraph extends the current section's body.
package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Section is one emitted (heading path, body) tuple. The body starts with
// the text of the heading that opened the section and joins paragraphs with
// blank lines.
type Section struct {
	Headings []string
	Body     string
}

// ParseError reports a DOCX file that could not be opened or is structurally
// invalid. The ingestion pipeline logs and skips such files.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse docx %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Word style names look like "Heading 1"; raw style IDs inside document.xml
// are usually "Heading1". Accept both.
var headingStyleRe = regexp.MustCompile(`Heading\s*(\d+)`)

// headingLevel returns the heading level of a style value, or 0 if the style
// is not a heading.
func headingLevel(style string) int {
	match := headingStyleRe.FindStringSubmatch(style)
	if match == nil {
		return 0
	}
	level, err := strconv.Atoi(match[1])
	if err != nil || level < 1 {
		return 0
	}
	return level
}

// ParseFile parses the DOCX file at path into sections.
func ParseFile(path string) ([]Section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return Parse(f, info.Size(), path)
}

// Parse parses DOCX bytes from r into sections. The name is used only for
// error reporting.
func Parse(r io.ReaderAt, size int64, name string) ([]Section, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}

	paragraphs, err := readParagraphs(zr)
	if err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}

	return buildSections(paragraphs), nil
}

// paragraph is a flattened document paragraph: its style and normalised text.
type paragraph struct {
	style string
	text  string
}

// buildSections runs the heading stack over the paragraph stream. A heading
// at level L truncates the stack to L-1 entries, pushes its own text and
// starts a new section whose body opens with the heading text. The section
// accumulated so far is emitted first, so the stream always ends with one
// final emit at end of document.
func buildSections(paragraphs []paragraph) []Section {
	var sections []Section
	var headings []string
	var contents []string

	emit := func() {
		path := make([]string, len(headings))
		copy(path, headings)
		sections = append(sections, Section{
			Headings: path,
			Body:     strings.Join(contents, "\n\n"),
		})
	}

	for _, para := range paragraphs {
		level := headingLevel(para.style)
		if level == 0 {
			contents = append(contents, para.text)
			continue
		}

		emit()
		if level-1 < len(headings) {
			headings = headings[:level-1]
		}
		headings = append(headings, para.text)
		contents = []string{para.text}
	}

	emit()
	return sections
}

func readParagraphs(zr *zip.Reader) ([]paragraph, error) {
	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return parseDocumentXML(content)
	}
	return nil, fmt.Errorf("document.xml not found in DOCX")
}

// XML mapping for the parts of word/document.xml we care about. Tables and
// images are ignored; only top-level paragraphs reach the heading stack.
type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
}

type docxParagraph struct {
	Properties *docxParaProps  `xml:"pPr"`
	Runs       []docxRun       `xml:"r"`
	Hyperlinks []docxHyperlink `xml:"hyperlink"`
}

type docxParaProps struct {
	Style *docxStyle `xml:"pStyle"`
}

type docxStyle struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Text  []docxText `xml:"t"`
	Tab   []struct{} `xml:"tab"`
	Break []struct{} `xml:"br"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

type docxHyperlink struct {
	Runs []docxRun `xml:"r"`
}

func parseDocumentXML(content []byte) ([]paragraph, error) {
	var doc docxDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("invalid document.xml: %w", err)
	}

	paragraphs := make([]paragraph, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		style := ""
		if para.Properties != nil && para.Properties.Style != nil {
			style = para.Properties.Style.Val
		}
		paragraphs = append(paragraphs, paragraph{
			style: style,
			text:  normalizeWhitespace(paragraphText(&para)),
		})
	}
	return paragraphs, nil
}

func paragraphText(para *docxParagraph) string {
	var parts []string
	appendRun := func(run docxRun) {
		for _, text := range run.Text {
			if text.Content != "" {
				parts = append(parts, text.Content)
			}
		}
		for range run.Tab {
			parts = append(parts, "\t")
		}
		for range run.Break {
			parts = append(parts, " ")
		}
	}

	for _, run := range para.Runs {
		appendRun(run)
	}
	for _, link := range para.Hyperlinks {
		for _, run := range link.Runs {
			appendRun(run)
		}
	}
	return strings.Join(parts, "")
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeWhitespace collapses any run of whitespace to a single space and
// trims the ends.
func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
