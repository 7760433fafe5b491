// Package memory is the long-term similarity memory of past verdicts: it
// embeds prompts, looks up close prior verdicts, and records new ones.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/juskvi/internal/fault"
)

const (
	// DefaultTopK is the number of neighbours fetched per lookup.
	DefaultTopK = 2
	// DefaultMinScore is the exclusive similarity floor for a match to count.
	DefaultMinScore = 0.75
	// DefaultMaxVerdictChars caps the stored verdict length.
	DefaultMaxVerdictChars = 1000

	digestLabel = "\nMEMORY:\n"
	matchPrefix = "PAST: "
)

// TextEmbedder turns text into a vector.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tunes a Store. Zero fields take the package defaults.
type Options struct {
	TopK            int
	MinScore        float32
	MaxVerdictChars int
}

// Store retrieves and saves verdicts. A Store with a nil index is valid and
// reports fault.ErrUnconfigured from every call without touching the embedder.
type Store struct {
	embedder TextEmbedder
	index    Index
	opts     Options
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore creates a Store.
func NewStore(embedder TextEmbedder, index Index, opts Options) *Store {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}
	if opts.MaxVerdictChars <= 0 {
		opts.MaxVerdictChars = DefaultMaxVerdictChars
	}
	return &Store{
		embedder: embedder,
		index:    index,
		opts:     opts,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// Configured reports whether a vector index is attached.
func (s *Store) Configured() bool { return s != nil && s.index != nil }

// Retrieve returns a digest of prior verdicts whose similarity to text is
// strictly above the score floor, or "" when none qualify.
func (s *Store) Retrieve(ctx context.Context, text string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("memory store: %w", fault.ErrUnconfigured)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", err
	}

	matches, err := s.index.Query(ctx, vec, s.opts.TopK)
	if err != nil {
		s.logger.Warn("memory query failed", "error", err)
		return "", fault.Transient(fmt.Errorf("querying memory: %w", err))
	}

	return s.digest(matches), nil
}

func (s *Store) digest(matches []Match) string {
	var lines []string
	for _, m := range matches {
		if m.Score > s.opts.MinScore {
			lines = append(lines, matchPrefix+m.Text)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return digestLabel + strings.Join(lines, "\n")
}

// Save embeds text and upserts the verdict, truncated to the configured
// length, under a new timestamp-derived ID.
func (s *Store) Save(ctx context.Context, text, verdict string) error {
	if !s.Configured() {
		return fmt.Errorf("memory store: %w", fault.ErrUnconfigured)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	rec := Vector{
		ID:        recordID(now),
		Values:    vec,
		Text:      truncate(verdict, s.opts.MaxVerdictChars),
		CreatedAt: now,
	}
	if err := s.index.Upsert(ctx, []Vector{rec}); err != nil {
		s.logger.Warn("memory upsert failed", "id", rec.ID, "error", err)
		return fault.Transient(fmt.Errorf("upserting memory: %w", err))
	}
	return nil
}

// recordID is the unix-seconds timestamp plus a short random suffix, so two
// saves in the same second do not overwrite each other.
func recordID(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + "-" + uuid.NewString()[:8]
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
