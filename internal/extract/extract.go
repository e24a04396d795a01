// Package extract validates uploaded study material and pulls plain text out
// of it.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/dslipak/pdf"
	"github.com/gabriel-vasile/mimetype"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOC  = "application/msword"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETXT  = "text/plain"

	mimeOLE = "application/x-ole-storage"
)

// AllowedExtensions lists the accepted file extensions.
var AllowedExtensions = []string{".pdf", ".doc", ".docx", ".txt"}

// sniffed content types accepted per extension
var allowedMIME = map[string][]string{
	".pdf":  {MIMEPDF},
	".doc":  {MIMEDOC, mimeOLE},
	".docx": {MIMEDOCX},
	".txt":  {MIMETXT},
}

var (
	ErrUnsupportedType = domain.NewDomainError(domain.ErrCodeValidation,
		"invalid file type. Allowed types: "+strings.Join(AllowedExtensions, ", "))
	ErrNoText = domain.NewDomainError(domain.ErrCodeValidation, "no readable text found in document")
)

// Result is the outcome of a successful extraction.
type Result struct {
	Text        string
	ContentType string
}

// Detect checks the extension against the allow-list and confirms it by
// sniffing the content. It returns the canonical content type.
func Detect(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed, ok := allowedMIME[ext]
	if !ok {
		return "", ErrUnsupportedType.WithCause(fmt.Errorf("extension %q", ext))
	}

	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		for _, want := range allowed {
			if m.Is(want) {
				return allowed[0], nil
			}
		}
	}
	return "", ErrUnsupportedType.WithCause(fmt.Errorf("%s content detected as %s", ext, detected.String()))
}

// Extract validates the upload and returns its text.
func Extract(filename string, data []byte) (*Result, error) {
	contentType, err := Detect(filename, data)
	if err != nil {
		return nil, err
	}

	var text string
	switch contentType {
	case MIMEPDF:
		text, err = extractPDF(data)
	case MIMEDOCX:
		text, err = extractDOCX(data)
	case MIMEDOC:
		text = salvageDOC(data)
	default:
		text = decodeText(data)
	}
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "could not read document", err)
	}

	text = normalize(text)
	if text == "" {
		return nil, ErrNoText
	}
	return &Result{Text: text, ContentType: contentType}, nil
}

func extractPDF(data []byte) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return buf.String(), nil
}

// extractDOCX reads word/document.xml, turning paragraphs into newlines.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX zip: %w", err)
	}

	var documentXML *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			documentXML = f
			break
		}
	}
	if documentXML == nil {
		return "", fmt.Errorf("invalid docx: missing word/document.xml")
	}

	rc, err := documentXML.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var b strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteByte('\n')
			}
		case xml.CharData:
			b.Write(t)
		}
	}
	return b.String(), nil
}

const minSalvageRun = 4

// salvageDOC recovers text from legacy Word binaries by keeping runs of
// printable characters, stored either as UTF-16LE or single bytes.
func salvageDOC(data []byte) string {
	best := printableRuns(data, 2)
	candidates := []string{printableRuns(data, 1)}
	if len(data) > 1 {
		candidates = append(candidates, printableRuns(data[1:], 2))
	}
	for _, c := range candidates {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}

func printableRuns(data []byte, width int) string {
	var out, run strings.Builder
	flush := func() {
		if run.Len() >= minSalvageRun {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(strings.TrimSpace(run.String()))
		}
		run.Reset()
	}

	for i := 0; i+width <= len(data); i += width {
		c := data[i]
		if width == 2 && data[i+1] != 0 {
			flush()
			continue
		}
		if (c >= 0x20 && c < 0x7f) || c == '\t' {
			run.WriteByte(c)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}
