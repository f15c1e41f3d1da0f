package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	apperrors "transcript-tool/internal/errors"
)

const (
	FormatDOCX = "docx"
	FormatTXT  = "txt"

	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	txtContentType  = "text/plain; charset=utf-8"

	exportFooter = "Generated by transcript-tool with Gemini"
)

// DocumentMeta is the header block printed above a transcript.
type DocumentMeta struct {
	VideoName      string
	SourceLanguage string
	TargetLanguage string
	CreatedAt      time.Time
}

// RenderDocument renders a transcript in the requested format and returns
// the bytes with their content type.
func RenderDocument(transcript string, meta DocumentMeta, format string) ([]byte, string, error) {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	switch strings.ToLower(format) {
	case "", FormatDOCX:
		b, err := renderDOCX(transcript, meta)
		return b, docxContentType, err
	case FormatTXT:
		return renderTXT(transcript, meta), txtContentType, nil
	default:
		return nil, "", apperrors.Newf(apperrors.KindInvalidArgument, "unsupported export format %q", format)
	}
}

func metaLines(meta DocumentMeta) [][2]string {
	return [][2]string{
		{"Video file: ", meta.VideoName},
		{"Source language: ", meta.SourceLanguage},
		{"Target language: ", meta.TargetLanguage},
		{"Generated: ", meta.CreatedAt.Format("02.01.2006 15:04")},
	}
}

func renderTXT(transcript string, meta DocumentMeta) []byte {
	var b bytes.Buffer
	b.WriteString("Video Transcript\n\n")
	for _, l := range metaLines(meta) {
		b.WriteString(l[0] + l[1] + "\n")
	}
	b.WriteString(strings.Repeat("-", 50) + "\n\n")
	b.WriteString(normalizeTranscript(transcript))
	b.WriteString("\n\n" + strings.Repeat("-", 50) + "\n")
	b.WriteString(exportFooter + "\n")
	return b.Bytes()
}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:pPr><w:spacing w:after="120"/></w:pPr></w:style>
<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:pPr><w:jc w:val="center"/></w:pPr><w:rPr><w:b/><w:sz w:val="48"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>
</w:styles>`

func renderDOCX(transcript string, meta DocumentMeta) ([]byte, error) {
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	writeParagraph(&body, "Title", run("Video Transcript", false, false))
	for _, l := range metaLines(meta) {
		writeParagraph(&body, "", run(l[0], true, false)+run(l[1], false, false))
	}
	writeParagraph(&body, "", run(strings.Repeat("─", 50), false, false))
	writeParagraph(&body, "Heading1", run("Transcript", false, false))

	for _, line := range strings.Split(normalizeTranscript(transcript), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		writeParagraph(&body, "", run(line, false, false))
	}

	writeParagraph(&body, "", run(strings.Repeat("─", 50), false, false))
	writeParagraph(&body, "", run(exportFooter, false, true))
	body.WriteString(`<w:sectPr/></w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, content string }{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles},
		{"word/document.xml", body.String()},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("docx: %w", err)
		}
		if _, err := io.WriteString(w, p.content); err != nil {
			return nil, fmt.Errorf("docx: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeParagraph(b *strings.Builder, style, runs string) {
	b.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(b, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	b.WriteString(runs)
	b.WriteString("</w:p>")
}

func run(text string, bold, italic bool) string {
	var b strings.Builder
	b.WriteString("<w:r>")
	if bold || italic {
		b.WriteString("<w:rPr>")
		if bold {
			b.WriteString("<w:b/>")
		}
		if italic {
			b.WriteString("<w:i/>")
		}
		b.WriteString("</w:rPr>")
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	xml.EscapeText(&b, []byte(text))
	b.WriteString("</w:t></w:r>")
	return b.String()
}

// DocumentText reads the visible text back out of a rendered docx.
func DocumentText(docx []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		return "", err
	}

	var documentXML []byte
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", err
			}
			documentXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", err
			}
			break
		}
	}
	if len(documentXML) == 0 {
		return "", fmt.Errorf("docx document.xml not found")
	}
	return normalizeTranscript(stripDOCXML(documentXML)), nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func stripDOCXML(src []byte) string {
	s := string(src)

	// DOCX paragraphs and line breaks
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", "\t")

	s = xmlTagPattern.ReplaceAllString(s, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#34;", `"`,
		"&apos;", "'",
		"&#39;", "'",
		"&#xA;", "\n",
		"&#x9;", "\t",
	)
	return replacer.Replace(s)
}

// normalizeTranscript unifies line endings and collapses runs of blank lines.
func normalizeTranscript(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
