package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestPineconeQuery(t *testing.T) {
	var got queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/query" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "pc-key" {
			t.Errorf("Api-Key = %q", r.Header.Get("Api-Key"))
		}
		if r.Header.Get("X-Pinecone-API-Version") == "" {
			t.Error("missing API version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"matches":[
			{"id":"1700000000-ab12cd34","score":0.91,"metadata":{"text":"Proceed cautiously."}},
			{"id":"1700000001-ef56ab78","score":0.42}
		]}`)
	}))
	defer srv.Close()

	idx := NewPineconeIndex(PineconeConfig{APIKey: "pc-key", Host: srv.URL})
	matches, err := idx.Query(context.Background(), []float32{0.1, 0.2}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if got.TopK != 2 || !got.IncludeMetadata || len(got.Vector) != 2 {
		t.Errorf("request = %+v", got)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Text != "Proceed cautiously." || matches[0].Score != 0.91 {
		t.Errorf("matches[0] = %+v", matches[0])
	}
	if matches[1].Text != "" {
		t.Errorf("match without metadata text = %q, want empty", matches[1].Text)
	}
}

func TestPineconeUpsert(t *testing.T) {
	var got upsertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vectors/upsert" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"upsertedCount":1}`)
	}))
	defer srv.Close()

	idx := NewPineconeIndex(PineconeConfig{APIKey: "k", Host: srv.URL})
	err := idx.Upsert(context.Background(), []Vector{{ID: "1700000000-ab12cd34", Values: []float32{1, 0}, Text: "verdict"}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(got.Vectors) != 1 {
		t.Fatalf("got %d vectors, want 1", len(got.Vectors))
	}
	if got.Vectors[0].ID != "1700000000-ab12cd34" || got.Vectors[0].Metadata.Text != "verdict" {
		t.Errorf("vector = %+v", got.Vectors[0])
	}
}

func TestPineconeResolvesHostOnce(t *testing.T) {
	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"matches":[]}`)
	}))
	defer data.Close()

	var describes atomic.Int32
	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		describes.Add(1)
		if r.URL.Path != "/indexes/synthesis-memory" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprintf(w, `{"name":"synthesis-memory","host":%q}`, data.URL)
	}))
	defer control.Close()

	idx := NewPineconeIndex(PineconeConfig{APIKey: "k", ControlURL: control.URL})
	for i := 0; i < 3; i++ {
		if _, err := idx.Query(context.Background(), []float32{1}, 2); err != nil {
			t.Fatalf("Query %d: %v", i, err)
		}
	}
	if n := describes.Load(); n != 1 {
		t.Errorf("describe calls = %d, want 1", n)
	}
}

func TestPineconeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid api key"}`)
	}))
	defer srv.Close()

	idx := NewPineconeIndex(PineconeConfig{APIKey: "bad", Host: srv.URL})
	_, err := idx.Query(context.Background(), []float32{1}, 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"synthesis-memory-abc.svc.pinecone.io", "https://synthesis-memory-abc.svc.pinecone.io"},
		{"https://x.pinecone.io/", "https://x.pinecone.io"},
		{"http://127.0.0.1:9000", "http://127.0.0.1:9000"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeHost(tt.in); got != tt.want {
			t.Errorf("normalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPineconeBoundedOnlyByContext(t *testing.T) {
	idx := NewPineconeIndex(PineconeConfig{APIKey: "k", Host: "https://x.pinecone.io"})
	if idx.httpClient.Timeout != 0 {
		t.Errorf("http client timeout = %v, want none", idx.httpClient.Timeout)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	idx = NewPineconeIndex(PineconeConfig{APIKey: "k", Host: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := idx.Query(ctx, []float32{1}, 2); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
