package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/juskvi/internal/composer"
	"github.com/kalambet/juskvi/internal/config"
	"github.com/kalambet/juskvi/internal/synthesis"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(400)
		w.Write([]byte(`{"error":{"message":"invalid request body","type":"invalid_request_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskWith_PostsPromptAndImage(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/v6/synthesis": `{"visionary":"Yes.","skeptic":"No.","final_synthesis":"Maybe."}`,
	})

	res, err := askWith(ctx, ts.client(), synthesis.Request{Prompt: "Will it rain?", Image: "data:image/png;base64,aGk="})
	if err != nil {
		t.Fatalf("askWith: %v", err)
	}
	if res.FinalSynthesis != "Maybe." || res.Visionary != "Yes." || res.Skeptic != "No." {
		t.Errorf("result = %+v", res)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(ts.requests))
	}
	var sent map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sent); err != nil {
		t.Fatalf("decoding sent body: %v", err)
	}
	if sent["prompt"] != "Will it rain?" || sent["image"] != "data:image/png;base64,aGk=" {
		t.Errorf("sent = %v", sent)
	}
}

func TestAskWith_OmitsEmptyImage(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/v6/synthesis": `{"visionary":"","skeptic":"","final_synthesis":""}`,
	})

	if _, err := askWith(ctx, ts.client(), synthesis.Request{Prompt: "q"}); err != nil {
		t.Fatalf("askWith: %v", err)
	}
	if strings.Contains(ts.requests[0].Body, "image") {
		t.Errorf("body = %s, want no image field", ts.requests[0].Body)
	}
}

func TestAskWith_ServerError(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	_, err := askWith(ctx, ts.client(), synthesis.Request{Prompt: "q"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err = %v, want status 400", err)
	}
}

func TestAskWith_Unreachable(t *testing.T) {
	ts := newTestServer(t, nil)
	c := ts.client()
	ts.server.Close()

	_, err := askWith(ctx, c, synthesis.Request{Prompt: "q"})
	if err == nil || !strings.Contains(err.Error(), "is juskvi running") {
		t.Fatalf("err = %v", err)
	}
}

func TestFileDataURL(t *testing.T) {
	dir := t.TempDir()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pngPath := filepath.Join(dir, "chart.png")
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := fileDataURL(pngPath)
	if err != nil {
		t.Fatalf("fileDataURL: %v", err)
	}
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	pdfPath := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = fileDataURL(pdfPath)
	if err != nil {
		t.Fatalf("fileDataURL: %v", err)
	}
	if !strings.HasPrefix(got, "data:application/pdf;base64,") {
		t.Errorf("got %q", got)
	}

	if _, err := fileDataURL(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRenderResult_NoColor(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	out := renderResult(synthesis.Result{Visionary: "Bright.", Skeptic: "Risky.", FinalSynthesis: "Proceed slowly."})
	for _, want := range []string{"## The Visionary\n\nBright.", "## The Skeptic\n\nRisky.", "## Verdict\n\nProceed slowly."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStyled(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := bold("label"); got != "label" {
		t.Errorf("bold with noColor = %q, want plain text", got)
	}
}

func TestLocalURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"0.0.0.0", "http://127.0.0.1:5000"},
		{"", "http://127.0.0.1:5000"},
		{"192.168.1.10", "http://192.168.1.10:5000"},
	}
	for _, tt := range tests {
		cfg := config.Config{Server: config.ServerConfig{Host: tt.host, Port: 5000}}
		if got := localURL(cfg); got != tt.want {
			t.Errorf("localURL(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := pidFilePath(filepath.Join(t.TempDir(), "data"))
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removal")
	}
}

func TestAskCommand_RequiresPrompt(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error when prompt is missing")
	}
}

func TestVersionCommand(t *testing.T) {
	defer rootCmd.SetArgs(nil)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "juskvi version") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPersonaStatusLabels(t *testing.T) {
	if got := roleLabel(composer.RoleVisionary); got != "Visionary" {
		t.Errorf("roleLabel = %q", got)
	}
	if got := availability(false); got != "offline" {
		t.Errorf("availability(false) = %q", got)
	}

	cfg := config.Config{Groq: config.GroqConfig{APIKey: "gsk-test"}}
	runner, embed := providers(context.Background(), cfg)
	if embed != nil {
		t.Error("embedding engine should be nil without a Gemini key")
	}
	if runner.Configured(composer.DefaultVisionaryModel) {
		t.Error("gemini persona should be offline without a Gemini key")
	}
	if !runner.Configured(composer.DefaultSkepticModel) {
		t.Error("groq persona should be ready with a Groq key")
	}
}
