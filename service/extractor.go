package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/AnTengye/tenderanalyzer/model"
	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from creating a config directory under the user's home.
	pdfmodel.ConfigPath = "disable"
}

// Extraction is the plain text of a document, one line per paragraph or
// text row
type Extraction struct {
	Text  string
	Pages int
}

// Characters returns the number of runes extracted
func (e *Extraction) Characters() int {
	return len([]rune(e.Text))
}

// Extractor turns uploaded PDF and DOCX bytes into plain text
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of the document. Parse failures are terminal and
// wrap model.ErrCorruptDocument; unknown formats wrap model.ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, doc *model.Document) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", model.ErrCorruptDocument)
	}

	var (
		result *Extraction
		err    error
	)
	switch doc.Format {
	case model.FormatPDF:
		result, err = extractPDF(doc.Data)
	case model.FormatDOCX:
		result, err = extractDocx(doc.Data)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, doc.Format)
	}
	if err != nil {
		return nil, err
	}

	result.Text = normalizeText(result.Text)
	if result.Text == "" {
		return nil, fmt.Errorf("%w: could not extract text from file", model.ErrCorruptDocument)
	}

	logger.Debug(ctx, "text extracted",
		"filename", doc.Filename,
		"format", doc.Format,
		"characters", result.Characters(),
		"pages", result.Pages,
	)
	return result, nil
}

// extractPDF validates the file structure with pdfcpu and decodes the text
// row by row so heading lines stay on their own line.
func extractPDF(data []byte) (result *Extraction, err error) {
	conf := pdfmodel.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCorruptDocument, err)
	}

	// The text decoder panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: pdf text decoder: %v", model.ErrCorruptDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCorruptDocument, err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			// One unreadable page should not lose the rest of the tender
			continue
		}
		for _, row := range rows {
			for _, word := range row.Content {
				sb.WriteString(word.S)
			}
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}

	return &Extraction{Text: sb.String(), Pages: pdfCtx.PageCount}, nil
}

// extractDocx reads word/document.xml from the archive and emits one line per
// paragraph.
func extractDocx(data []byte) (*Extraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open zip: %v", model.ErrCorruptDocument, err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("%w: word/document.xml not found in archive", model.ErrCorruptDocument)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open document.xml: %v", model.ErrCorruptDocument, err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var (
		out         strings.Builder
		paragraph   strings.Builder
		inParagraph bool
		inText      bool
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: decode document.xml: %v", model.ErrCorruptDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				paragraph.Reset()
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					paragraph.WriteByte(' ')
				}
			case "br", "cr":
				if inParagraph {
					paragraph.WriteByte('\n')
				}
			}

		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph {
					inParagraph = false
					if text := strings.TrimSpace(paragraph.String()); text != "" {
						out.WriteString(text)
						out.WriteByte('\n')
					}
				}
			}
		}
	}

	return &Extraction{Text: out.String()}, nil
}

// normalizeText collapses runs of blanks inside each line, drops control
// characters and squeezes consecutive empty lines.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.FieldsFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || !unicode.IsPrint(r)
		}), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
