package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"html"
	"mime/multipart"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/AnTengye/tenderanalyzer/middleware"
	"github.com/AnTengye/tenderanalyzer/model"
	"github.com/AnTengye/tenderanalyzer/service"
	"github.com/AnTengye/tenderanalyzer/web"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubCompleter answers every prompt with the same text
type stubCompleter struct {
	calls atomic.Int32
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	return "Findings: acceptable.\nRisk Level: Low\nOverall Risk Rating: Low", nil
}

type testEnv struct {
	cfg       *config.Config
	completer *stubCompleter
	store     *service.AnalysisStore
	analyzer  *service.Analyzer
	router    *gin.Engine
}

func newTestConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{APIKey: "k"},
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenExpireHours: 24,
		},
		Users: []config.User{
			{Username: "alice", Password: "pw", DisplayName: "Alice Reviewer"},
		},
	}
}

// newTestEnv wires handlers the same way main does
func newTestEnv(t *testing.T, authEnabled bool) *testEnv {
	t.Helper()

	cfg := newTestConfig()
	applyTestDefaults(cfg)
	cfg.Auth.Enabled = authEnabled
	cfg.Upload.MaxFileSizeMB = 1

	completer := &stubCompleter{}
	store := service.NewAnalysisStore(&config.StoreConfig{MaxAnalyses: 10, TTLMinutes: 30})

	env := &testEnv{cfg: cfg, completer: completer, store: store}
	env.analyzer = service.NewAnalyzer(cfg, completer, model.Branding{})

	tmpl, err := web.Templates()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)

	authHandler := NewAuthHandler(env.cfg)
	apiHandler := NewAnalysisHandler(env.analyzer, store, env.cfg.Upload.MaxBytes())
	webHandler := NewWebHandler(env.analyzer, store, env.cfg)

	router.GET("/login", authHandler.LoginPage)
	router.POST("/login", authHandler.LoginForm)
	router.POST("/logout", authHandler.Logout)

	pages := router.Group("/")
	pages.Use(middleware.WebAuthMiddleware(&env.cfg.Auth))
	{
		pages.GET("/", webHandler.Index)
		pages.POST("/analyses", webHandler.Upload)
		pages.GET("/analyses/:id", webHandler.Preview)
		pages.POST("/analyses/:id/report", webHandler.Report)
	}

	api := router.Group("/api")
	api.POST("/auth/login", authHandler.Login)
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&env.cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/analyses", apiHandler.Upload)
		protected.GET("/analyses", apiHandler.List)
		protected.GET("/analyses/:id", apiHandler.Get)
		protected.DELETE("/analyses/:id", apiHandler.Delete)
		protected.POST("/analyses/:id/report", apiHandler.Report)
	}

	env.router = router
	return env
}

func applyTestDefaults(cfg *config.Config) {
	cfg.AI.Provider = config.ProviderOpenAI
	cfg.AI.TimeoutSeconds = 5
	cfg.AI.Concurrency = 2
	cfg.AI.MaxClauseChars = 4000
	cfg.Report.Title = "TENDER LEGAL REVIEW REPORT"
	cfg.Report.Disclaimer = "Internal use only."
	cfg.Store.TTLMinutes = 30
}

// docxBytes builds a minimal DOCX with one paragraph per argument
func docxBytes(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + html.EscapeString(p) + "</w:t></w:r></w:p>")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func tenderDocx(t *testing.T) []byte {
	return docxBytes(t,
		"Conditions of Contract",
		"Termination",
		"The employer may end the contract on 14 days notice.",
		"Payment Terms",
		"Monthly valuations paid within 30 days.",
	)
}

// multipartBody returns a form with a single "file" field
func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("multipart: %v", err)
	}
	fw.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}
