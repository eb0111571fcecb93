package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/AnTengye/tenderanalyzer/model"
)

func newTestAnalyzer(completer Completer) *Analyzer {
	cfg := &config.Config{AI: config.AIConfig{APIKey: "k"}}
	cfg.Store.TTLMinutes = 30
	cfg.AI.TimeoutSeconds = 1
	cfg.Report.Title = "TENDER LEGAL REVIEW REPORT"
	cfg.Report.Disclaimer = "Internal use only."
	cfg.AI.Concurrency = 2
	cfg.AI.MaxClauseChars = 4000

	a := NewAnalyzer(cfg, completer, model.Branding{})
	a.now = func() time.Time { return time.Date(2026, 10, 19, 9, 7, 0, 0, time.UTC) }
	return a
}

func TestAnalyzePaymentAndTermination(t *testing.T) {
	f := newFakeCompleter()
	a := newTestAnalyzer(f)

	doc := &model.Document{
		Filename: "harbour.docx",
		Data: buildDocx(t,
			"Instructions to Tenderers",
			"Termination",
			"The employer may end the contract on 14 days notice.",
			"Payment Terms",
			"Monthly valuations paid within 30 days.",
		),
	}

	analysis, err := a.Analyze(context.Background(), doc, "alice")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(analysis.Summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(analysis.Summaries))
	}
	if analysis.Summaries[0].Clause != model.PaymentTerms || analysis.Summaries[1].Clause != model.Termination {
		t.Errorf("Unexpected order %s, %s", analysis.Summaries[0].Clause, analysis.Summaries[1].Clause)
	}
	if analysis.Format != model.FormatDOCX {
		t.Errorf("Expected detected format docx, got %s", analysis.Format)
	}
	if analysis.Owner != "alice" || analysis.ID == "" {
		t.Errorf("Unexpected owner/id %q/%q", analysis.Owner, analysis.ID)
	}
	if analysis.Characters == 0 {
		t.Error("Expected extraction stats")
	}
	if !analysis.Executive.IsAvailable() || analysis.Executive.RiskRating != "Medium" {
		t.Errorf("Unexpected executive summary %+v", analysis.Executive)
	}
	if want := a.now().Add(30 * time.Minute); !analysis.ExpiresAt.Equal(want) {
		t.Errorf("Expected expiry %v, got %v", want, analysis.ExpiresAt)
	}
	// Two clauses plus the assessment
	if f.callCount() != 3 {
		t.Errorf("Expected 3 model calls, got %d", f.callCount())
	}
}

func TestAnalyzeAbortsBeforeModelCalls(t *testing.T) {
	tests := []struct {
		name    string
		doc     *model.Document
		wantErr error
	}{
		{"text file", &model.Document{Filename: "tender.txt", Data: []byte("Payment Terms")}, model.ErrUnsupportedFormat},
		{"corrupt pdf", &model.Document{Filename: "tender.pdf", Data: []byte("not a pdf")}, model.ErrCorruptDocument},
		{"empty docx", &model.Document{Filename: "tender.docx"}, model.ErrCorruptDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeCompleter()
			_, err := newTestAnalyzer(f).Analyze(context.Background(), tt.doc, "alice")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if f.callCount() != 0 {
				t.Errorf("Expected no model calls, got %d", f.callCount())
			}
		})
	}

	t.Run("no clauses", func(t *testing.T) {
		f := newFakeCompleter()
		doc := &model.Document{Filename: "letter.docx", Data: buildDocx(t, "Dear supplier,", "Thank you.")}
		_, err := newTestAnalyzer(f).Analyze(context.Background(), doc, "alice")
		if !errors.Is(err, model.ErrNoClausesFound) {
			t.Errorf("Expected ErrNoClausesFound, got %v", err)
		}
		if f.callCount() != 0 {
			t.Errorf("Expected no model calls, got %d", f.callCount())
		}
	})
}

func TestAnalyzeBodyMentionsAddNoSections(t *testing.T) {
	a := newTestAnalyzer(newFakeCompleter())

	doc := &model.Document{
		Filename: "harbour.docx",
		Data: buildDocx(t,
			"Payment Terms",
			"Monthly valuations are paid within 30 days, provided the contractor holds valid insurance cover and retention is released after the warranty period.",
			"Termination",
			"The employer may end the contract on 14 days notice.",
		),
	}

	analysis, err := a.Analyze(context.Background(), doc, "alice")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(analysis.Summaries) != 2 {
		t.Fatalf("Expected 2 sections, got %v", analysis.Clauses)
	}
	if !strings.HasSuffix(analysis.Clauses[0].Text, "after the warranty period.") {
		t.Errorf("Payment Terms text was cut short: %q", analysis.Clauses[0].Text)
	}
}

func TestAnalyzeIndemnityTimeout(t *testing.T) {
	f := newFakeCompleter()
	f.block[model.IndemnityInsurance] = true
	defer close(f.release)
	a := newTestAnalyzer(f)
	a.summarizer.timeout = 50 * time.Millisecond

	doc := &model.Document{
		Filename: "t.docx",
		Data: buildDocx(t,
			"Scope of Work", "Build a bridge.",
			"Indemnity and Insurance", "Contractor to hold cover.",
			"Governing Law", "Laws of Ghana.",
		),
	}

	analysis, err := a.Analyze(context.Background(), doc, "alice")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	unavailable := analysis.Unavailable()
	if len(unavailable) != 1 || unavailable[0] != model.IndemnityInsurance {
		t.Errorf("Expected only Indemnity and Insurance unavailable, got %v", unavailable)
	}

	result, err := a.Export(context.Background(), analysis, nil, "Alice")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	extracted, err := extractPDF(result.PDF)
	if err != nil {
		t.Fatalf("extractPDF: %v", err)
	}
	for _, want := range []string{"Scope of Work", "Governing Law", "Summary unavailable."} {
		if !strings.Contains(extracted.Text, want) {
			t.Errorf("Expected report to contain %q", want)
		}
	}
}

type recordingArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (r *recordingArchive) Store(ctx context.Context, objectName string, pdf []byte) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.objects == nil {
		r.objects = map[string][]byte{}
	}
	r.objects[objectName] = pdf
	return "https://archive.example/" + objectName, nil
}

func testAnalysis() *model.Analysis {
	return &model.Analysis{
		ID:       "a-1",
		Owner:    "alice",
		Filename: "Harbour Works.pdf",
		Summaries: []model.ClauseSummary{
			model.Available(model.PaymentTerms, "Findings: 30 days."),
		},
		Executive: model.ExecutiveSummary{Status: model.SummaryAvailable, Text: "Fine.", RiskRating: "Low"},
	}
}

func TestExport(t *testing.T) {
	a := newTestAnalyzer(newFakeCompleter())
	archive := &recordingArchive{}
	a.SetArchive(archive)

	comments := []model.ReviewerComment{
		{Clause: model.PaymentTerms, Text: "<b>Check</b> retention"},
		{Clause: model.IPRights, Text: "Not in this tender"},
		{Text: "   "},
		{Text: "Proceed with caution."},
	}

	result, err := a.Export(context.Background(), testAnalysis(), comments, "Alice Reviewer")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if result.Filename != "tender_analysis_20261019_0907.pdf" {
		t.Errorf("Unexpected filename %s", result.Filename)
	}
	if !bytes.HasPrefix(result.PDF, []byte("%PDF-")) {
		t.Error("Expected PDF output")
	}
	if result.ArchiveURL != "https://archive.example/alice/a-1/tender_analysis_20261019_0907.pdf" {
		t.Errorf("Unexpected archive URL %s", result.ArchiveURL)
	}

	extracted, err := extractPDF(result.PDF)
	if err != nil {
		t.Fatalf("extractPDF: %v", err)
	}
	if !strings.Contains(extracted.Text, "Reviewer comment: Check retention") {
		t.Error("Expected cleaned clause comment in report")
	}
	if strings.Contains(extracted.Text, "Not in this tender") {
		t.Error("Comment on an absent clause should be dropped")
	}
	if !strings.Contains(extracted.Text, "Proceed with caution.") {
		t.Error("Expected global comment in report")
	}
	if !strings.Contains(extracted.Text, "Tender: Harbour Works") {
		t.Error("Expected tender name without extension")
	}
}

func TestExportArchiveFailureIgnored(t *testing.T) {
	a := newTestAnalyzer(newFakeCompleter())
	a.SetArchive(&recordingArchive{err: errors.New("bucket unreachable")})

	result, err := a.Export(context.Background(), testAnalysis(), nil, "Alice")
	if err != nil {
		t.Fatalf("Expected archive failure not to fail export, got %v", err)
	}
	if result.ArchiveURL != "" {
		t.Errorf("Expected no archive URL, got %s", result.ArchiveURL)
	}
	if len(result.PDF) == 0 {
		t.Error("Expected PDF bytes")
	}
}

func TestExportDeterministic(t *testing.T) {
	a := newTestAnalyzer(newFakeCompleter())

	first, err := a.Export(context.Background(), testAnalysis(), nil, "Alice")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	second, err := a.Export(context.Background(), testAnalysis(), nil, "Alice")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(first.PDF, second.PDF) {
		t.Error("Expected identical exports to give identical bytes")
	}
}

func TestOwnerPath(t *testing.T) {
	tests := map[string]string{
		"":          "anonymous",
		"alice":     "alice",
		"a/b c":     "a_b_c",
		" bob\\x ": "bob_x",
	}
	for in, want := range tests {
		if got := ownerPath(in); got != want {
			t.Errorf("ownerPath(%q) = %q, want %q", in, got, want)
		}
	}
}
