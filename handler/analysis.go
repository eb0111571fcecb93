package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/tenderanalyzer/middleware"
	"github.com/AnTengye/tenderanalyzer/model"
	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"github.com/AnTengye/tenderanalyzer/service"
	"github.com/gin-gonic/gin"
)

type AnalysisHandler struct {
	analyzer *service.Analyzer
	store    *service.AnalysisStore
	maxBytes int64
}

func NewAnalysisHandler(analyzer *service.Analyzer, store *service.AnalysisStore, maxBytes int64) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		store:    store,
		maxBytes: maxBytes,
	}
}

// CommentRequest is one reviewer note. Clause accepts a clause name or its
// short code; empty means the whole report.
type CommentRequest struct {
	Clause string `json:"clause"`
	Text   string `json:"text"`
}

type ReportRequest struct {
	Comments []CommentRequest `json:"comments"`
}

// Upload runs the pipeline on the uploaded tender
func (h *AnalysisHandler) Upload(c *gin.Context) {
	owner := middleware.GetUsername(c)

	doc, err := readUpload(c, h.maxBytes)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}

	analysis, err := h.analyzer.Analyze(c.Request.Context(), doc, owner)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err), "detail": err.Error()})
		return
	}
	h.store.Save(analysis)

	c.JSON(http.StatusCreated, analysis)
}

// List returns the current reviewer's analyses without clause text
func (h *AnalysisHandler) List(c *gin.Context) {
	owner := middleware.GetUsername(c)
	analyses := h.store.GetByOwner(owner)

	result := make([]gin.H, len(analyses))
	for i, a := range analyses {
		result[i] = gin.H{
			"id":          a.ID,
			"filename":    a.Filename,
			"format":      a.Format,
			"clauses":     len(a.Summaries),
			"unavailable": a.Unavailable(),
			"risk_rating": a.Executive.RiskRating,
			"created_at":  a.CreatedAt.Format(time.RFC3339),
			"expires_at":  a.ExpiresAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"analyses": result})
}

// Get returns a single analysis
func (h *AnalysisHandler) Get(c *gin.Context) {
	analysis := h.lookup(c)
	if analysis == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// Delete discards an analysis before it expires
func (h *AnalysisHandler) Delete(c *gin.Context) {
	analysis := h.lookup(c)
	if analysis == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	h.store.Delete(analysis.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Analysis deleted"})
}

// Report renders the PDF with the reviewer's comments
func (h *AnalysisHandler) Report(c *gin.Context) {
	analysis := h.lookup(c)
	if analysis == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	var req ReportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}

	comments, err := parseComments(req.Comments)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}

	result, err := h.analyzer.Export(c.Request.Context(), analysis, comments, middleware.GetReviewer(c))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}

	setAttachment(c, result.Filename, result.PDF, result.ArchiveURL)
}

// lookup finds the analysis in the path and checks it belongs to the caller
func (h *AnalysisHandler) lookup(c *gin.Context) *model.Analysis {
	id := c.Param("id")
	analysis := h.store.Get(id)
	if analysis == nil || analysis.Owner != middleware.GetUsername(c) {
		logger.Debug(c.Request.Context(), "analysis lookup missed", "analysis_id", id)
		return nil
	}
	return analysis
}

func parseComments(in []CommentRequest) ([]model.ReviewerComment, error) {
	comments := make([]model.ReviewerComment, 0, len(in))
	for _, cr := range in {
		name, err := resolveClause(cr.Clause)
		if err != nil {
			return nil, err
		}
		comments = append(comments, model.ReviewerComment{Clause: name, Text: cr.Text})
	}
	return comments, nil
}

// resolveClause accepts "", a short code such as "PAY", or a full clause name
func resolveClause(s string) (model.ClauseName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if name, ok := model.ClauseByCode(s); ok {
		return name, nil
	}
	for _, name := range model.CanonicalOrder {
		if strings.EqualFold(string(name), s) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w %q", errUnknownClause, s)
}
