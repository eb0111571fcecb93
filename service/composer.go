package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/AnTengye/tenderanalyzer/model"
	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"github.com/go-pdf/fpdf"
)

const (
	coreFamily = "Helvetica"
	utf8Family = "ReportFont"

	marginLeft   = 19.0
	marginTop    = 25.0
	marginRight  = 19.0
	marginBottom = 20.0

	logoWidth  = 30.0
	lineHeight = 5.5
)

type rgb struct{ r, g, b int }

var (
	colorTitle     = rgb{13, 71, 161}
	colorClauseBar = rgb{26, 35, 126}
	colorBox       = rgb{245, 245, 245}
	colorBorder    = rgb{128, 128, 128}
	colorText      = rgb{33, 33, 33}
	colorMuted     = rgb{97, 97, 97}
	colorWarning   = rgb{183, 28, 28}
	colorWhite     = rgb{255, 255, 255}
)

// LoadBranding reads the logo and checks the font configured for reports.
// Missing assets are logged and skipped; the report falls back to no logo and
// the built-in font.
func LoadBranding(ctx context.Context, cfg *config.ReportConfig) model.Branding {
	var b model.Branding

	if cfg.LogoPath != "" {
		data, err := os.ReadFile(cfg.LogoPath)
		logoType := imageType(cfg.LogoPath)
		switch {
		case err != nil:
			logger.Warn(ctx, "report logo not loaded", "path", cfg.LogoPath, "error", err)
		case logoType == "":
			logger.Warn(ctx, "report logo has unsupported type", "path", cfg.LogoPath)
		default:
			b.Logo = data
			b.LogoType = logoType
		}
	}

	if cfg.FontPath == "" {
		logger.Warn(ctx, "no report font configured, characters outside cp1252 will not render")
	} else if _, err := os.Stat(cfg.FontPath); err != nil {
		logger.Warn(ctx, "report font not found, characters outside cp1252 will not render", "path", cfg.FontPath, "error", err)
	} else {
		b.FontPath = cfg.FontPath
	}

	return b
}

func imageType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpg"
	case ".gif":
		return "gif"
	default:
		return ""
	}
}

// Composer renders a Report into PDF bytes
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// Compose lays out the title page with the executive summary, then one
// section per clause in canonical order. The output depends only on the
// report, so identical reports give identical bytes.
func (c *Composer) Compose(r *model.Report) ([]byte, error) {
	summaries := make([]model.ClauseSummary, len(r.Summaries))
	copy(summaries, r.Summaries)
	model.SortCanonical(summaries)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.SetModificationDate(r.GeneratedAt)
	pdf.SetTitle(r.Title, true)
	pdf.SetSubject(r.TenderName, true)
	pdf.SetAuthor(r.Reviewer, true)
	pdf.SetCreator("Tender Analyzer", true)
	pdf.AliasNbPages("")

	w := newReportWriter(pdf, r.Branding.FontPath)

	footer := fmt.Sprintf("Generated by Tender Analyzer | %s", r.GeneratedAt.Format("02-Jan-2006 15:04"))
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		w.font("I", 8)
		w.color(colorMuted)
		pdf.CellFormat(0, 10, w.tr(fmt.Sprintf("%s | Page %d/{nb}", footer, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	w.logo(r.Branding)
	w.titleBlock(r)
	w.executiveSummary(r.Executive)

	pdf.AddPage()
	w.heading("Detailed Clause Analysis")
	if len(summaries) == 0 {
		w.paragraph("No recognised clauses were found in the tender.", "", colorText)
	}
	for _, s := range summaries {
		w.clauseSection(s, r.CommentsFor(s.Clause))
	}

	if global := r.GlobalComments(); len(global) > 0 {
		pdf.Ln(4)
		w.heading("Reviewer Comments")
		for _, comment := range global {
			w.paragraph(comment, "", colorText)
		}
	}

	if r.Disclaimer != "" {
		pdf.Ln(8)
		w.font("I", 8.5)
		w.color(colorMuted)
		pdf.MultiCell(0, 4.5, w.tr(r.Disclaimer), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrReportGenerationFailed, err)
	}
	return buf.Bytes(), nil
}

// reportWriter wraps the fpdf calls shared by all report blocks
type reportWriter struct {
	pdf    *fpdf.Fpdf
	family string
	tr     func(string) string
}

func newReportWriter(pdf *fpdf.Fpdf, fontPath string) *reportWriter {
	w := &reportWriter{pdf: pdf, family: coreFamily}

	if fontPath != "" {
		for _, style := range []string{"", "B", "I"} {
			pdf.AddUTF8Font(utf8Family, style, fontPath)
		}
		if pdf.Err() {
			pdf.ClearError()
		} else {
			w.family = utf8Family
			w.tr = func(s string) string { return s }
			return w
		}
	}

	w.tr = pdf.UnicodeTranslatorFromDescriptor("")
	return w
}

func (w *reportWriter) font(style string, size float64) {
	w.pdf.SetFont(w.family, style, size)
}

func (w *reportWriter) color(c rgb) {
	w.pdf.SetTextColor(c.r, c.g, c.b)
}

// ensureSpace starts a new page when less than h millimetres remain
func (w *reportWriter) ensureSpace(h float64) {
	_, pageH := w.pdf.GetPageSize()
	if w.pdf.GetY()+h > pageH-marginBottom {
		w.pdf.AddPage()
	}
}

func (w *reportWriter) logo(b model.Branding) {
	if len(b.Logo) == 0 {
		return
	}
	opts := fpdf.ImageOptions{ImageType: b.LogoType}
	w.pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(b.Logo))
	if w.pdf.Err() {
		// An unreadable logo must not cost the reviewer their report
		w.pdf.ClearError()
		return
	}
	pageW, _ := w.pdf.GetPageSize()
	w.pdf.ImageOptions("logo", (pageW-logoWidth)/2, w.pdf.GetY(), logoWidth, 0, true, opts, 0, "")
	w.pdf.Ln(5)
}

func (w *reportWriter) titleBlock(r *model.Report) {
	w.font("B", 16)
	w.color(colorTitle)
	w.pdf.CellFormat(0, 10, w.tr(r.Title), "", 1, "C", false, 0, "")
	w.pdf.Ln(4)

	w.font("", 10)
	w.color(colorText)
	w.pdf.MultiCell(0, 6, w.tr("Tender: "+r.TenderName), "", "L", false)
	w.pdf.MultiCell(0, 6, w.tr("Date: "+r.GeneratedAt.Format("January 02, 2006")), "", "L", false)
	if r.Reviewer != "" {
		w.pdf.MultiCell(0, 6, w.tr("Prepared by: "+r.Reviewer), "", "L", false)
	}
	w.pdf.Ln(6)
}

func (w *reportWriter) heading(text string) {
	w.ensureSpace(20)
	w.font("B", 12)
	w.color(colorTitle)
	w.pdf.CellFormat(0, 8, w.tr(text), "", 1, "L", false, 0, "")
	w.pdf.Ln(2)
}

func (w *reportWriter) paragraph(text, style string, c rgb) {
	w.font(style, 10)
	w.color(c)
	w.pdf.MultiCell(0, lineHeight, w.tr(text), "", "J", false)
	w.pdf.Ln(1.5)
}

func (w *reportWriter) executiveSummary(e model.ExecutiveSummary) {
	w.heading("Executive Summary")

	if !e.IsAvailable() {
		w.paragraph("Executive summary unavailable. "+e.Reason, "I", colorWarning)
		return
	}

	if e.RiskRating != "" {
		w.font("B", 11)
		w.color(colorText)
		w.pdf.CellFormat(0, 7, w.tr("Overall Risk Rating: "+e.RiskRating), "", 1, "L", false, 0, "")
		w.pdf.Ln(1)
	}

	w.font("", 10)
	w.color(colorText)
	w.pdf.SetFillColor(colorBox.r, colorBox.g, colorBox.b)
	w.pdf.SetDrawColor(colorBorder.r, colorBorder.g, colorBorder.b)
	w.pdf.SetLineWidth(0.2)
	w.pdf.MultiCell(0, lineHeight, w.tr(e.Text), "1", "J", true)
}

func (w *reportWriter) clauseSection(s model.ClauseSummary, comments []string) {
	w.ensureSpace(30)

	w.font("B", 11)
	w.color(colorWhite)
	w.pdf.SetFillColor(colorClauseBar.r, colorClauseBar.g, colorClauseBar.b)
	w.pdf.CellFormat(0, 8, w.tr(" "+string(s.Clause)), "", 1, "L", true, 0, "")
	w.pdf.Ln(2)

	if s.IsAvailable() {
		w.paragraph(s.Text, "", colorText)
	} else {
		w.paragraph("Summary unavailable. "+s.Reason, "I", colorWarning)
	}

	for _, comment := range comments {
		w.paragraph("Reviewer comment: "+comment, "I", colorMuted)
	}
	w.pdf.Ln(3)
}
