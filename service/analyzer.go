package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/AnTengye/tenderanalyzer/model"
	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"github.com/google/uuid"
)

// ExportResult is a rendered report ready for download
type ExportResult struct {
	Filename   string
	PDF        []byte
	ArchiveURL string
}

// Analyzer runs the upload-to-report pipeline
type Analyzer struct {
	extractor  *Extractor
	segmenter  *Segmenter
	summarizer *RiskSummarizer
	composer   *Composer
	archive    ReportArchive

	branding   model.Branding
	title      string
	disclaimer string
	ttl        time.Duration
	now        func() time.Time
}

func NewAnalyzer(cfg *config.Config, completer Completer, branding model.Branding) *Analyzer {
	return &Analyzer{
		extractor:  NewExtractor(),
		segmenter:  NewSegmenter(cfg.AI.MaxClauseChars),
		summarizer: NewRiskSummarizer(completer, cfg.AI.Timeout(), cfg.AI.Concurrency),
		composer:   NewComposer(),
		branding:   branding,
		title:      cfg.Report.Title,
		disclaimer: cfg.Report.Disclaimer,
		ttl:        cfg.Store.TTL(),
		now:        time.Now,
	}
}

// SetArchive enables uploading exported reports
func (a *Analyzer) SetArchive(archive ReportArchive) {
	a.archive = archive
}

// Analyze extracts, segments and summarizes one tender. Extraction failures
// and tenders with no recognised clause return an error before any model call.
func (a *Analyzer) Analyze(ctx context.Context, doc *model.Document, owner string) (*model.Analysis, error) {
	id := uuid.New().String()
	ctx = logger.WithAnalysis(ctx, id)

	if doc.Format == "" {
		format, err := model.DetectFormat(doc.Filename)
		if err != nil {
			return nil, err
		}
		doc.Format = format
	}

	extraction, err := a.extractor.Extract(ctx, doc)
	if err != nil {
		logger.Warn(ctx, "extraction failed", "filename", doc.Filename, "error", err)
		return nil, err
	}

	clauses := a.segmenter.Segment(extraction.Text)
	if len(clauses) == 0 {
		logger.Warn(ctx, "no clauses recognised", "filename", doc.Filename)
		return nil, fmt.Errorf("%w in %s", model.ErrNoClausesFound, doc.Filename)
	}
	logger.Info(ctx, "clauses segmented", "filename", doc.Filename, "clauses", len(clauses))

	summaries := a.summarizer.Summarize(ctx, clauses)
	executive := a.summarizer.Assess(ctx, summaries)

	now := a.now()
	analysis := &model.Analysis{
		ID:         id,
		Owner:      owner,
		Filename:   doc.Filename,
		Format:     doc.Format,
		Characters: extraction.Characters(),
		Pages:      extraction.Pages,
		Clauses:    clauses,
		Summaries:  summaries,
		Executive:  executive,
		CreatedAt:  now,
	}
	if a.ttl > 0 {
		analysis.ExpiresAt = now.Add(a.ttl)
	}

	logger.Info(ctx, "analysis completed",
		"filename", doc.Filename,
		"clauses", len(clauses),
		"unavailable", len(analysis.Unavailable()),
		"executive", executive.Status,
	)
	return analysis, nil
}

// Export renders the analysis with the reviewer's comments. Comments on
// clauses the tender does not contain are dropped.
func (a *Analyzer) Export(ctx context.Context, analysis *model.Analysis, comments []model.ReviewerComment, reviewer string) (*ExportResult, error) {
	ctx = logger.WithAnalysis(ctx, analysis.ID)
	generatedAt := a.now()

	report := &model.Report{
		Title:       a.title,
		TenderName:  strings.TrimSuffix(analysis.Filename, filepath.Ext(analysis.Filename)),
		Reviewer:    reviewer,
		Disclaimer:  a.disclaimer,
		GeneratedAt: generatedAt,
		Summaries:   analysis.Summaries,
		Executive:   analysis.Executive,
		Comments:    filterComments(analysis, comments),
		Branding:    a.branding,
	}

	pdf, err := a.composer.Compose(report)
	if err != nil {
		logger.Error(ctx, "report generation failed", "error", err)
		return nil, err
	}

	result := &ExportResult{
		Filename: ReportFilename(generatedAt),
		PDF:      pdf,
	}

	if a.archive != nil {
		objectName := fmt.Sprintf("%s/%s/%s", ownerPath(analysis.Owner), analysis.ID, result.Filename)
		url, err := a.archive.Store(ctx, objectName, pdf)
		if err != nil {
			logger.Warn(ctx, "report archive failed", "object", objectName, "error", err)
		} else {
			result.ArchiveURL = url
		}
	}

	logger.Info(ctx, "report exported", "filename", result.Filename, "bytes", len(pdf))
	return result, nil
}

// ReportFilename is the download name for a report generated at t
func ReportFilename(t time.Time) string {
	return fmt.Sprintf("tender_analysis_%s.pdf", t.Format("20060102_1504"))
}

func filterComments(analysis *model.Analysis, comments []model.ReviewerComment) []model.ReviewerComment {
	present := make(map[model.ClauseName]bool, len(analysis.Summaries))
	for _, s := range analysis.Summaries {
		present[s.Clause] = true
	}

	var out []model.ReviewerComment
	for _, c := range comments {
		text := CleanText(c.Text)
		if text == "" {
			continue
		}
		if !c.Global() && !present[c.Clause] {
			continue
		}
		out = append(out, model.ReviewerComment{Clause: c.Clause, Text: text})
	}
	return out
}

func ownerPath(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, owner)
}
