package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/AnTengye/tenderanalyzer/model"
	"github.com/gin-gonic/gin"
)

// Room for multipart boundaries and headers on top of the file limit
const multipartOverhead = 512 << 10

var (
	errNoFile        = errors.New("no file provided")
	errFileTooLarge  = errors.New("file too large")
	errNotFound      = errors.New("analysis not found or expired")
	errUnknownClause = errors.New("unknown clause")
)

// readUpload reads the "file" form field into a Document. The format is
// checked before the body is read.
func readUpload(c *gin.Context, maxBytes int64) (*model.Document, error) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)
	}

	// Get file from form
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errFileTooLarge
		}
		return nil, errNoFile
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d MB", errFileTooLarge, header.Filename, maxBytes>>20)
	}

	filename := filepath.Base(header.Filename)
	format, err := model.DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	return &model.Document{Filename: filename, Format: format, Data: data}, nil
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoFile), errors.Is(err, errUnknownClause):
		return http.StatusBadRequest
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, model.ErrCorruptDocument), errors.Is(err, model.ErrNoClausesFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the error text shown to reviewers
func userMessage(err error) string {
	switch {
	case errors.Is(err, errNoFile):
		return "No file provided"
	case errors.Is(err, errFileTooLarge):
		return "The file is too large"
	case errors.Is(err, model.ErrUnsupportedFormat):
		return "Only PDF and DOCX files are supported"
	case errors.Is(err, model.ErrCorruptDocument):
		return "Could not extract text from file"
	case errors.Is(err, model.ErrNoClausesFound):
		return "No recognised contract clauses were found in the tender"
	case errors.Is(err, model.ErrReportGenerationFailed):
		return "Failed to generate the report"
	case errors.Is(err, errNotFound), errors.Is(err, errUnknownClause):
		return capitalize(err.Error())
	default:
		return "Internal server error"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// setAttachment sends the PDF as a download
func setAttachment(c *gin.Context, filename string, pdf []byte, archiveURL string) {
	if archiveURL != "" {
		c.Header("X-Report-URL", archiveURL)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
