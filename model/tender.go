package model

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Format is the declared type of an uploaded tender document
type Format string

// Supported upload formats
const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// DetectFormat derives the format from the file extension
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// Document is an uploaded tender file. It is never modified after upload.
type Document struct {
	Filename string
	Format   Format
	Data     []byte
}

// ClauseName identifies one of the fixed contract clauses
type ClauseName string

// Clause vocabulary
const (
	ScopeOfWork           ClauseName = "Scope of Work"
	DefectLiabilityPeriod ClauseName = "Defect Liability Period"
	PaymentTerms          ClauseName = "Payment Terms"
	LiquidatedDamages     ClauseName = "Liquidated Damages"
	Termination           ClauseName = "Termination"
	IndemnityInsurance    ClauseName = "Indemnity and Insurance"
	GoverningLaw          ClauseName = "Governing Law"
	IPRights              ClauseName = "IP Rights"
)

// CanonicalOrder is the order clauses appear in every report
var CanonicalOrder = []ClauseName{
	ScopeOfWork,
	DefectLiabilityPeriod,
	PaymentTerms,
	LiquidatedDamages,
	Termination,
	IndemnityInsurance,
	GoverningLaw,
	IPRights,
}

var clauseCodes = map[ClauseName]string{
	ScopeOfWork:           "SOW",
	DefectLiabilityPeriod: "DLP",
	PaymentTerms:          "PAY",
	LiquidatedDamages:     "LD",
	Termination:           "TERM",
	IndemnityInsurance:    "INDEM",
	GoverningLaw:          "LAW",
	IPRights:              "IP",
}

// Index returns the canonical position of the clause, or -1 if unknown
func (n ClauseName) Index() int {
	for i, c := range CanonicalOrder {
		if c == n {
			return i
		}
	}
	return -1
}

// Valid reports whether the name belongs to the vocabulary
func (n ClauseName) Valid() bool {
	return n.Index() >= 0
}

// Code returns the short code used in form fields
func (n ClauseName) Code() string {
	return clauseCodes[n]
}

// ClauseByCode resolves a short code back to its clause name
func ClauseByCode(code string) (ClauseName, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for name, c := range clauseCodes {
		if c == code {
			return name, true
		}
	}
	return "", false
}

// Clause is a named section of the tender and its source text
type Clause struct {
	Name ClauseName `json:"name"`
	Text string     `json:"text"`
}

// SummaryStatus tags a per-clause result
type SummaryStatus string

const (
	SummaryAvailable   SummaryStatus = "available"
	SummaryUnavailable SummaryStatus = "unavailable"
)

// ClauseSummary is the AI result for one clause. Either Text or Reason is set,
// depending on Status.
type ClauseSummary struct {
	Clause ClauseName    `json:"clause"`
	Status SummaryStatus `json:"status"`
	Text   string        `json:"text,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Available builds a successful summary
func Available(name ClauseName, text string) ClauseSummary {
	return ClauseSummary{Clause: name, Status: SummaryAvailable, Text: text}
}

// Unavailable builds a placeholder for a clause whose summary failed
func Unavailable(name ClauseName, reason string) ClauseSummary {
	return ClauseSummary{Clause: name, Status: SummaryUnavailable, Reason: reason}
}

func (s ClauseSummary) IsAvailable() bool {
	return s.Status == SummaryAvailable
}

// SortCanonical orders summaries by the canonical clause order
func SortCanonical(summaries []ClauseSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Clause.Index() < summaries[j].Clause.Index()
	})
}

// ExecutiveSummary is the model's overall assessment. RiskRating is copied
// verbatim from the model output and never computed.
type ExecutiveSummary struct {
	Status     SummaryStatus `json:"status"`
	Text       string        `json:"text,omitempty"`
	RiskRating string        `json:"risk_rating,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

func (e ExecutiveSummary) IsAvailable() bool {
	return e.Status == SummaryAvailable
}

// ReviewerComment is a free-text note. An empty Clause means the comment
// applies to the whole report.
type ReviewerComment struct {
	Clause ClauseName `json:"clause,omitempty"`
	Text   string     `json:"text"`
}

func (c ReviewerComment) Global() bool {
	return c.Clause == ""
}

// Analysis is the result of one upload, kept in memory until it is exported
// or expires
type Analysis struct {
	ID         string           `json:"id"`
	Owner      string           `json:"owner"`
	Filename   string           `json:"filename"`
	Format     Format           `json:"format"`
	Characters int              `json:"characters"`
	Pages      int              `json:"pages,omitempty"`
	Clauses    []Clause         `json:"clauses"`
	Summaries  []ClauseSummary  `json:"summaries"`
	Executive  ExecutiveSummary `json:"executive_summary"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// Expired reports whether the analysis can no longer be exported
func (a *Analysis) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// Unavailable returns the clauses whose summaries failed
func (a *Analysis) Unavailable() []ClauseName {
	var names []ClauseName
	for _, s := range a.Summaries {
		if !s.IsAvailable() {
			names = append(names, s.Clause)
		}
	}
	return names
}

// Branding holds the optional logo and font used for the report
type Branding struct {
	Logo     []byte
	LogoType string // png, jpg, gif
	FontPath string // UTF-8 TrueType font, empty for the built-in font
}

// Report is everything the composer needs to render one PDF
type Report struct {
	Title       string
	TenderName  string
	Reviewer    string
	Disclaimer  string
	GeneratedAt time.Time
	Summaries   []ClauseSummary
	Executive   ExecutiveSummary
	Comments    []ReviewerComment
	Branding    Branding
}

// CommentsFor returns the non-empty comments attached to a clause
func (r *Report) CommentsFor(name ClauseName) []string {
	var out []string
	for _, c := range r.Comments {
		if c.Clause == name && strings.TrimSpace(c.Text) != "" {
			out = append(out, strings.TrimSpace(c.Text))
		}
	}
	return out
}

// GlobalComments returns the non-empty comments not tied to a clause
func (r *Report) GlobalComments() []string {
	return r.CommentsFor("")
}
