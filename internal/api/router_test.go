package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/askpdf/internal/chunker"
	"github.com/liliang-cn/askpdf/internal/domain"
	"github.com/liliang-cn/askpdf/internal/history"
	"github.com/liliang-cn/askpdf/internal/index"
	"github.com/liliang-cn/askpdf/internal/ingest"
	"github.com/liliang-cn/askpdf/internal/ingest/ingesttest"
	"github.com/liliang-cn/askpdf/internal/metrics"
	"github.com/liliang-cn/askpdf/internal/service"
	"github.com/liliang-cn/askpdf/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	router    *gin.Engine
	embedder  *testutil.Embedder
	generator *testutil.Generator
}

func newServer(t *testing.T, apiKey string) *server {
	t.Helper()
	return newServerConfig(t, RouterConfig{APIKey: apiKey})
}

func newServerConfig(t *testing.T, cfg RouterConfig) *server {
	t.Helper()
	s := &server{embedder: &testutil.Embedder{}, generator: &testutil.Generator{}}
	s.generator.Reply = func(ctx context.Context, call testutil.Call) (string, error) {
		if call.System == service.RewritePrompt {
			return call.User, nil
		}
		if strings.Contains(call.System, "Paris") {
			return "Paris.", nil
		}
		return "I don't know.", nil
	}

	ch, err := chunker.New(5000, 500)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	m := metrics.New()
	idx := index.New(s.embedder, 4, nil)
	ingestSvc := service.NewIngestService(ingest.NewIngestor(t.TempDir(), 1<<20, nil), ch, idx, m, nil)
	orch := service.NewOrchestratorService(
		service.NewRewriter(s.generator),
		service.NewResponder(idx, s.generator, 0),
		history.NewMemory(),
		time.Second,
		m,
		nil,
	)
	cfg.AllowOrigins = []string{"*"}
	cfg.Metrics = m.Handler()
	s.router = SetupRouter(ingestSvc, orch, cfg)
	return s
}

func (s *server) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func chatRequest(sessionID, message string) *http.Request {
	b, _ := json.Marshal(domain.ChatRequest{SessionID: sessionID, Message: message})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthAndPage(t *testing.T) {
	s := newServer(t, "")

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "default_session") {
		t.Fatalf("page: %d", w.Code)
	}
}

func TestUploadThenChat(t *testing.T) {
	s := newServer(t, "")

	w := s.do(t, uploadRequest(t, map[string][]byte{"france.pdf": ingesttest.PDF("The capital of France is Paris.")}))
	if w.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	var ingested domain.IngestResult
	if err := json.Unmarshal(w.Body.Bytes(), &ingested); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ingested.Chunks != 1 || ingested.Pages != 1 || ingested.Documents[0] != "france.pdf" {
		t.Fatalf("ingest result = %+v", ingested)
	}

	w = s.do(t, chatRequest(domain.DefaultSessionID, "What is the capital of France?"))
	if w.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", w.Code, w.Body.String())
	}
	var resp domain.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != domain.DefaultSessionID || !strings.Contains(resp.Answer, "Paris") {
		t.Fatalf("chat response = %+v", resp)
	}
	if resp.StandaloneQuestion != "What is the capital of France?" || len(resp.Sources) != 1 {
		t.Fatalf("chat response = %+v", resp)
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/default_session/history", nil))
	var hist domain.HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist.Turns) != 2 || hist.Turns[0].Role != domain.RoleUser || hist.Turns[1].Text != "Paris." {
		t.Fatalf("history = %+v", hist)
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/index", nil))
	var stats domain.IndexStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !stats.Ready || stats.Chunks != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `askpdf_questions_total{outcome="success"} 1`) {
		t.Fatalf("metrics missing question counter")
	}
}

func TestUploadErrors(t *testing.T) {
	s := newServer(t, "")

	w := s.do(t, uploadRequest(t, map[string][]byte{"broken.pdf": ingesttest.Corrupted()}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("corrupted upload status = %d", w.Code)
	}
	w = s.do(t, uploadRequest(t, map[string][]byte{"notes.txt": []byte("hello")}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported upload status = %d", w.Code)
	}
	w = s.do(t, uploadRequest(t, nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty upload status = %d", w.Code)
	}

	s.embedder.Err = testutil.ErrUnavailable
	w = s.do(t, uploadRequest(t, map[string][]byte{"a.pdf": ingesttest.PDF("text")}))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("embedding failure status = %d", w.Code)
	}
}

// recordingIngester remembers what reached it.
type recordingIngester struct {
	batches [][]domain.File
	resets  int
}

func (r *recordingIngester) IngestBatch(ctx context.Context, files []domain.File) (*domain.IngestResult, error) {
	r.batches = append(r.batches, files)
	return &domain.IngestResult{Documents: []string{files[0].Name}}, nil
}

func (r *recordingIngester) Reset() { r.resets++ }

func (r *recordingIngester) Stats() domain.IndexStats { return domain.IndexStats{} }

func TestUploadLimits(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 8<<10)

	tests := []struct {
		name string
		cfg  RouterConfig
	}{
		{name: "file too large", cfg: RouterConfig{MaxUploadBytes: 1 << 10}},
		{name: "request too large", cfg: RouterConfig{MaxRequestBytes: 4 << 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &recordingIngester{}
			router := SetupRouter(ing, nil, tt.cfg)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, map[string][]byte{"big.pdf": big}))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), "exceeds") {
				t.Fatalf("body = %s", w.Body.String())
			}
			if len(ing.batches) != 0 {
				t.Fatalf("oversized upload reached the ingester")
			}
			if ing.resets != 1 {
				t.Fatalf("resets = %d, want 1", ing.resets)
			}
		})
	}

	ing := &recordingIngester{}
	router := SetupRouter(ing, nil, RouterConfig{MaxUploadBytes: 1 << 10, MaxRequestBytes: 4 << 10})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, map[string][]byte{"small.pdf": []byte("%PDF-1.4 small")}))
	if w.Code != http.StatusOK || len(ing.batches) != 1 {
		t.Fatalf("small upload: status=%d batches=%d", w.Code, len(ing.batches))
	}
}

func TestRejectedUploadDropsIndex(t *testing.T) {
	s := newServerConfig(t, RouterConfig{MaxUploadBytes: 4 << 10})

	w := s.do(t, uploadRequest(t, map[string][]byte{"france.pdf": ingesttest.PDF("The capital of France is Paris.")}))
	if w.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, uploadRequest(t, map[string][]byte{"big.pdf": bytes.Repeat([]byte("x"), 8<<10)}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized upload status = %d", w.Code)
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/index", nil))
	var stats domain.IndexStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Ready || stats.Chunks != 0 {
		t.Fatalf("index survived a rejected upload: %+v", stats)
	}
}

func TestChatErrors(t *testing.T) {
	s := newServer(t, "")

	w := s.do(t, chatRequest("s", ""))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d", w.Code)
	}
	w = s.do(t, chatRequest("s", "   "))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank message status = %d", w.Code)
	}

	s.generator.Reply = func(ctx context.Context, call testutil.Call) (string, error) {
		return "", domain.ErrGeneration
	}
	w = s.do(t, chatRequest("s", "hello?"))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("generation failure status = %d", w.Code)
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/s/history", nil))
	if !strings.Contains(w.Body.String(), `"turns":[]`) {
		t.Fatalf("failed questions must not be recorded: %s", w.Body.String())
	}
}

func TestChatGeneratesSessionID(t *testing.T) {
	s := newServer(t, "")
	w := s.do(t, chatRequest("", "hello?"))
	var resp domain.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatalf("expected a generated session id")
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if !strings.Contains(w.Body.String(), resp.SessionID) {
		t.Fatalf("sessions = %s", w.Body.String())
	}
}

func TestAPIKeyRequired(t *testing.T) {
	s := newServer(t, "secret")

	w := s.do(t, chatRequest("s", "hello?"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d", w.Code)
	}

	req := chatRequest("s", "hello?")
	req.Header.Set("X-API-Key", "secret")
	if w := s.do(t, req); w.Code != http.StatusOK {
		t.Fatalf("status with key = %d", w.Code)
	}

	if w := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusOK {
		t.Fatalf("health should stay public, got %d", w.Code)
	}
}
