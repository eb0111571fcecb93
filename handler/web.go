package handler

import (
	"net/http"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/AnTengye/tenderanalyzer/middleware"
	"github.com/AnTengye/tenderanalyzer/model"
	"github.com/AnTengye/tenderanalyzer/service"
	"github.com/gin-gonic/gin"
)

// WebHandler serves the HTML upload, preview and download pages
type WebHandler struct {
	analyzer *service.Analyzer
	store    *service.AnalysisStore
	config   *config.Config
}

func NewWebHandler(analyzer *service.Analyzer, store *service.AnalysisStore, cfg *config.Config) *WebHandler {
	return &WebHandler{
		analyzer: analyzer,
		store:    store,
		config:   cfg,
	}
}

// clauseView is one clause section on the preview page
type clauseView struct {
	Name      model.ClauseName
	Code      string
	Available bool
	Text      string
	Reason    string
}

func (h *WebHandler) page(c *gin.Context, extra gin.H) gin.H {
	data := gin.H{
		"Title":         h.config.Report.Title,
		"Reviewer":      middleware.GetReviewer(c),
		"AuthEnabled":   h.config.Auth.Enabled,
		"MaxFileSizeMB": h.config.Upload.MaxFileSizeMB,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// Index renders the upload form with the reviewer's recent analyses
func (h *WebHandler) Index(c *gin.Context) {
	h.renderIndex(c, http.StatusOK, "")
}

func (h *WebHandler) renderIndex(c *gin.Context, status int, errMsg string) {
	c.HTML(status, "index.html", h.page(c, gin.H{
		"Error":  errMsg,
		"Recent": h.store.GetByOwner(middleware.GetUsername(c)),
	}))
}

// Upload runs the pipeline and redirects to the preview. Failures re-render
// the form with the message.
func (h *WebHandler) Upload(c *gin.Context) {
	doc, err := readUpload(c, h.config.Upload.MaxBytes())
	if err != nil {
		h.renderIndex(c, statusFor(err), userMessage(err))
		return
	}

	analysis, err := h.analyzer.Analyze(c.Request.Context(), doc, middleware.GetUsername(c))
	if err != nil {
		h.renderIndex(c, statusFor(err), userMessage(err))
		return
	}
	h.store.Save(analysis)

	c.Redirect(http.StatusSeeOther, "/analyses/"+analysis.ID)
}

// Preview shows the summaries and the comment form
func (h *WebHandler) Preview(c *gin.Context) {
	analysis := h.lookup(c)
	if analysis == nil {
		h.renderIndex(c, http.StatusNotFound, userMessage(errNotFound))
		return
	}

	sections := make([]clauseView, len(analysis.Summaries))
	for i, s := range analysis.Summaries {
		sections[i] = clauseView{
			Name:      s.Clause,
			Code:      s.Clause.Code(),
			Available: s.IsAvailable(),
			Text:      s.Text,
			Reason:    s.Reason,
		}
	}

	c.HTML(http.StatusOK, "preview.html", h.page(c, gin.H{
		"Analysis": analysis,
		"Sections": sections,
	}))
}

// Report returns the PDF as a download. Comment fields are named
// comment_<CODE> per clause and comment_global.
func (h *WebHandler) Report(c *gin.Context) {
	analysis := h.lookup(c)
	if analysis == nil {
		h.renderIndex(c, http.StatusNotFound, userMessage(errNotFound))
		return
	}

	var comments []model.ReviewerComment
	if text := c.PostForm("comment_global"); text != "" {
		comments = append(comments, model.ReviewerComment{Text: text})
	}
	for _, s := range analysis.Summaries {
		if text := c.PostForm("comment_" + s.Clause.Code()); text != "" {
			comments = append(comments, model.ReviewerComment{Clause: s.Clause, Text: text})
		}
	}

	result, err := h.analyzer.Export(c.Request.Context(), analysis, comments, middleware.GetReviewer(c))
	if err != nil {
		h.renderIndex(c, statusFor(err), userMessage(err))
		return
	}

	setAttachment(c, result.Filename, result.PDF, result.ArchiveURL)
}

func (h *WebHandler) lookup(c *gin.Context) *model.Analysis {
	analysis := h.store.Get(c.Param("id"))
	if analysis == nil || analysis.Owner != middleware.GetUsername(c) {
		return nil
	}
	return analysis
}
