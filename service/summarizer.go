package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AnTengye/tenderanalyzer/model"
	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Completer sends one prompt to a hosted language model and returns the raw
// completion text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const clausePromptTemplate = `You are a senior contracts lawyer preparing a professional tender analysis report.

Review the "%s" clause below, taken from a tender document, and write in formal plain English using this structure:

Findings: what the tender states
Risk Level: Low / Medium / High
Action Advice: a short, practical recommendation

Keep it under 150 words. No emojis, no markdown symbols.

CLAUSE TEXT:
%s
`

const assessmentPromptTemplate = `You are a senior contracts lawyer finalising a tender analysis report.

Using only the clause reviews below, write in formal plain English:

Executive Summary: two or three sentences
Overall Risk Rating: Low / Medium / High
Top 3 Concerns: numbered list
Recommended Action: Proceed / Proceed with Caution / Avoid Bid

No emojis, no markdown symbols.

CLAUSE REVIEWS:
%s
CLAUSES NOT FOUND IN THE TENDER: %s
`

var riskRatingLine = regexp.MustCompile(`(?im)^[ \t]*overall[ \t]+risk[ \t]+rating[ \t]*[:\-][ \t]*(.+)$`)

// RiskSummarizer asks the model for a plain-English risk summary per clause.
// A failed or timed-out call only affects its own clause.
type RiskSummarizer struct {
	completer   Completer
	timeout     time.Duration
	concurrency int
}

// NewRiskSummarizer creates a summarizer. concurrency 1 issues the calls one
// after another; a non-positive timeout disables the per-call deadline.
func NewRiskSummarizer(completer Completer, timeout time.Duration, concurrency int) *RiskSummarizer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RiskSummarizer{
		completer:   completer,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// SummarizeClause returns an available summary, or an unavailable placeholder
// carrying the failure reason
func (s *RiskSummarizer) SummarizeClause(ctx context.Context, clause model.Clause) model.ClauseSummary {
	text, err := s.complete(ctx, fmt.Sprintf(clausePromptTemplate, clause.Name, clause.Text))
	if err != nil {
		logger.Warn(ctx, "clause summary unavailable", "clause", clause.Name, "error", err)
		return model.Unavailable(clause.Name, err.Error())
	}
	logger.Debug(ctx, "clause summarized", "clause", clause.Name, "characters", len(text))
	return model.Available(clause.Name, text)
}

// Summarize fans the clauses out to the model and returns the results in
// canonical order, whatever order the calls complete in
func (s *RiskSummarizer) Summarize(ctx context.Context, clauses []model.Clause) []model.ClauseSummary {
	results := make([]model.ClauseSummary, len(clauses))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, clause := range clauses {
		i, clause := i, clause
		g.Go(func() error {
			results[i] = s.SummarizeClause(ctx, clause)
			return nil
		})
	}
	_ = g.Wait()

	model.SortCanonical(results)
	return results
}

// Assess asks for the executive summary and overall risk rating. The rating
// is taken verbatim from the model output.
func (s *RiskSummarizer) Assess(ctx context.Context, summaries []model.ClauseSummary) model.ExecutiveSummary {
	var reviews strings.Builder
	found := make(map[model.ClauseName]bool, len(summaries))
	for _, sum := range summaries {
		found[sum.Clause] = true
		if !sum.IsAvailable() {
			continue
		}
		fmt.Fprintf(&reviews, "[%s]\n%s\n\n", sum.Clause, sum.Text)
	}
	if reviews.Len() == 0 {
		return model.ExecutiveSummary{
			Status: model.SummaryUnavailable,
			Reason: "no clause summaries were available",
		}
	}

	var missing []string
	for _, name := range model.CanonicalOrder {
		if !found[name] {
			missing = append(missing, string(name))
		}
	}
	notFound := "none"
	if len(missing) > 0 {
		notFound = strings.Join(missing, ", ")
	}

	text, err := s.complete(ctx, fmt.Sprintf(assessmentPromptTemplate, reviews.String(), notFound))
	if err != nil {
		logger.Warn(ctx, "executive summary unavailable", "error", err)
		return model.ExecutiveSummary{Status: model.SummaryUnavailable, Reason: err.Error()}
	}

	exec := model.ExecutiveSummary{Status: model.SummaryAvailable, Text: text}
	if m := riskRatingLine.FindStringSubmatch(text); m != nil {
		exec.RiskRating = strings.TrimSpace(m[1])
	}
	return exec
}

type completion struct {
	text string
	err  error
}

// complete runs one model call under its own deadline. The deadline is
// enforced here even if the backend ignores the context.
func (s *RiskSummarizer) complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	done := make(chan completion, 1)
	go func() {
		text, err := s.completer.Complete(callCtx, prompt)
		done <- completion{text: text, err: err}
	}()

	var res completion
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = completion{err: callCtx.Err()}
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timed out after %s", model.ErrSummarizationFailed, s.timeout)
		}
		return "", fmt.Errorf("%w: %v", model.ErrSummarizationFailed, res.err)
	}

	text := CleanText(res.text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", model.ErrSummarizationFailed)
	}
	return text, nil
}
