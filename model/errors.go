package model

import "errors"

// Pipeline failures. Callers match them with errors.Is; the wrapped message
// carries the detail.
var (
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrCorruptDocument        = errors.New("corrupt document")
	ErrNoClausesFound         = errors.New("no recognised clauses found")
	ErrSummarizationFailed    = errors.New("summarization failed")
	ErrReportGenerationFailed = errors.New("report generation failed")
)
