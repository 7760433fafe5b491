// Package attach decodes the optional binary payload of a synthesis request.
// Payloads arrive as data URLs ("data:<mime>;base64,<payload>"); images are
// handed to vision-capable models and PDFs are reduced to text.
package attach

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/juskvi/internal/fault"
)

const (
	// DefaultMIMEType is assumed when the payload header does not name one.
	DefaultMIMEType = "image/jpeg"

	// MaxDocumentChars caps text extracted from a document attachment.
	MaxDocumentChars = 8000

	base64Marker = "base64,"
)

// Image is binary image data with its MIME type.
type Image struct {
	MIMEType string
	Data     []byte
}

// Payload is a decoded attachment. Exactly one of Image or Text is set.
type Payload struct {
	Image *Image
	Text  string
}

// Decode parses a data URL. An empty string yields an empty Payload and no
// error. Anything without the base64 marker, or that fails to decode, is
// reported as a malformed-input error.
func Decode(raw string) (Payload, error) {
	if raw == "" {
		return Payload{}, nil
	}
	idx := strings.Index(raw, base64Marker)
	if idx < 0 {
		return Payload{}, fault.Malformed(fmt.Errorf("attachment has no %q marker", base64Marker))
	}

	mimeType := parseMIMEType(raw[:idx])
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw[idx+len(base64Marker):]))
	if err != nil {
		return Payload{}, fault.Malformed(fmt.Errorf("decoding base64 payload: %w", err))
	}
	if len(data) == 0 {
		return Payload{}, fault.Malformed(fmt.Errorf("empty attachment payload"))
	}

	if mimeType == "application/pdf" {
		text, err := extractPDFText(data)
		if err != nil {
			return Payload{}, fault.Malformed(fmt.Errorf("extracting pdf text: %w", err))
		}
		return Payload{Text: text}, nil
	}

	return Payload{Image: &Image{MIMEType: mimeType, Data: data}}, nil
}

// parseMIMEType extracts the MIME type from a "data:<mime>;" header.
func parseMIMEType(header string) string {
	header = strings.TrimPrefix(strings.TrimSpace(header), "data:")
	header = strings.TrimSuffix(header, ";")
	if i := strings.IndexByte(header, ';'); i >= 0 {
		header = header[:i]
	}
	header = strings.ToLower(strings.TrimSpace(header))
	if header == "" || !strings.Contains(header, "/") {
		return DefaultMIMEType
	}
	return header
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	text := strings.TrimSpace(buf.String())
	if runes := []rune(text); len(runes) > MaxDocumentChars {
		text = string(runes[:MaxDocumentChars])
	}
	return text, nil
}
