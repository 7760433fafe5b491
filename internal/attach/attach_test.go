package attach

import (
	"encoding/base64"
	"testing"

	"github.com/kalambet/juskvi/internal/fault"
)

func TestDecode_Empty(t *testing.T) {
	p, err := Decode("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Image != nil || p.Text != "" {
		t.Errorf("expected empty payload, got %+v", p)
	}
}

func TestDecode_PNGKeepsDeclaredMIMEType(t *testing.T) {
	raw := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))
	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Image == nil {
		t.Fatal("expected image payload")
	}
	if p.Image.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want image/png", p.Image.MIMEType)
	}
	if string(p.Image.Data) != "\x89PNG fake" {
		t.Errorf("Data = %q", p.Image.Data)
	}
}

func TestDecode_MarkerOnlyDefaultsToJPEG(t *testing.T) {
	raw := "base64," + base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))
	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Image == nil || p.Image.MIMEType != DefaultMIMEType {
		t.Errorf("got %+v, want image with %s", p.Image, DefaultMIMEType)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no marker", "not-a-data-url"},
		{"bad base64", "data:image/png;base64,@@@not base64@@@"},
		{"empty payload", "data:image/png;base64,"},
		{"broken pdf", "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("not a pdf"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.raw)
			if err == nil {
				t.Fatalf("expected error, got payload %+v", p)
			}
			if fault.KindOf(err) != fault.KindMalformed {
				t.Errorf("kind = %v, want malformed", fault.KindOf(err))
			}
		})
	}
}

func TestParseMIMEType(t *testing.T) {
	tests := map[string]string{
		"data:image/webp;":         "image/webp",
		"data:IMAGE/PNG;":          "image/png",
		"data:image/png;charset=x": "image/png",
		"data:;":                   DefaultMIMEType,
		"":                         DefaultMIMEType,
		"garbage":                  DefaultMIMEType,
	}
	for in, want := range tests {
		if got := parseMIMEType(in); got != want {
			t.Errorf("parseMIMEType(%q) = %q, want %q", in, got, want)
		}
	}
}
