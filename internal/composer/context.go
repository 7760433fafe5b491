// Package composer builds the text handed to the reasoning agents: the shared
// context bundle, the persona definitions, and the judge prompt.
package composer

import "strings"

// Bundle is the shared context both personas read.
type Bundle struct {
	News       string
	Memory     string
	Prompt     string
	Attachment string
}

// Assemble combines the news digest, memory digest and raw prompt.
func Assemble(prompt, news, memory string) Bundle {
	return Bundle{News: news, Memory: memory, Prompt: prompt}
}

// WithAttachment returns a copy carrying text extracted from an attached document.
func (b Bundle) WithAttachment(text string) Bundle {
	b.Attachment = text
	return b
}

// String renders the bundle with fixed section labels. An empty attachment
// adds nothing.
func (b Bundle) String() string {
	var sb strings.Builder
	sb.WriteString("News: ")
	sb.WriteString(b.News)
	sb.WriteString("\nMemory: ")
	sb.WriteString(b.Memory)
	sb.WriteString("\nUser: ")
	sb.WriteString(b.Prompt)
	if b.Attachment != "" {
		sb.WriteString("\nAttachment: ")
		sb.WriteString(b.Attachment)
	}
	return sb.String()
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
