package memory

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/juskvi/internal/fault"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

type fakeIndex struct {
	matches  []Match
	queryErr error
	upserted []Vector
	topK     int
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int) ([]Match, error) {
	f.topK = topK
	return f.matches, f.queryErr
}

func (f *fakeIndex) Upsert(_ context.Context, vectors []Vector) error {
	f.upserted = append(f.upserted, vectors...)
	return nil
}

func TestRetrieve_FiltersByScore(t *testing.T) {
	idx := &fakeIndex{matches: []Match{
		{ID: "a", Score: 0.80, Text: "Adopt it."},
		{ID: "b", Score: 0.60, Text: "Reject it."},
	}}
	s := NewStore(&fakeEmbedder{}, idx, Options{})

	got, err := s.Retrieve(context.Background(), "should we adopt it?")
	require.NoError(t, err)
	assert.Equal(t, "\nMEMORY:\nPAST: Adopt it.", got)
	assert.Equal(t, DefaultTopK, idx.topK)
}

func TestRetrieve_ThresholdIsExclusive(t *testing.T) {
	idx := &fakeIndex{matches: []Match{{ID: "a", Score: 0.75, Text: "borderline"}}}
	s := NewStore(&fakeEmbedder{}, idx, Options{})

	got, err := s.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_JoinsMultipleMatches(t *testing.T) {
	idx := &fakeIndex{matches: []Match{
		{ID: "a", Score: 0.95, Text: "one"},
		{ID: "b", Score: 0.90, Text: "two"},
	}}
	s := NewStore(&fakeEmbedder{}, idx, Options{})

	got, err := s.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "\nMEMORY:\nPAST: one\nPAST: two", got)
}

func TestRetrieve_Unconfigured(t *testing.T) {
	emb := &fakeEmbedder{}
	s := NewStore(emb, nil, Options{})

	_, err := s.Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, fault.ErrUnconfigured)
	assert.Zero(t, emb.calls)

	err = s.Save(context.Background(), "q", "v")
	assert.ErrorIs(t, err, fault.ErrUnconfigured)
	assert.Zero(t, emb.calls)
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	idx := &fakeIndex{}
	s := NewStore(&fakeEmbedder{err: fault.Transient(errors.New("quota exceeded"))}, idx, Options{})

	_, err := s.Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, fault.KindTransient, fault.KindOf(err))
	assert.Zero(t, idx.topK, "index must not be queried")
}

func TestRetrieve_QueryFailure(t *testing.T) {
	idx := &fakeIndex{queryErr: errors.New("503")}
	s := NewStore(&fakeEmbedder{}, idx, Options{})

	_, err := s.Retrieve(context.Background(), "q")
	assert.Equal(t, fault.KindTransient, fault.KindOf(err))
}

func TestSave_TruncatesVerdict(t *testing.T) {
	idx := &fakeIndex{}
	s := NewStore(&fakeEmbedder{}, idx, Options{})
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	verdict := strings.Repeat("é", 1500)
	require.NoError(t, s.Save(context.Background(), "prompt", verdict))

	require.Len(t, idx.upserted, 1)
	rec := idx.upserted[0]
	assert.Equal(t, 1000, len([]rune(rec.Text)))
	assert.Regexp(t, regexp.MustCompile(`^1700000000-[0-9a-f]{8}$`), rec.ID)
	assert.Equal(t, []float32{1, 0, 0}, rec.Values)
}

func TestSave_IDsUniqueWithinSecond(t *testing.T) {
	idx := &fakeIndex{}
	s := NewStore(&fakeEmbedder{}, idx, Options{})
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, s.Save(context.Background(), "a", "x"))
	require.NoError(t, s.Save(context.Background(), "b", "y"))
	require.Len(t, idx.upserted, 2)
	assert.NotEqual(t, idx.upserted[0].ID, idx.upserted[1].ID)
}

func TestStore_WithSQLiteIndex(t *testing.T) {
	s := NewStore(&fakeEmbedder{}, openTestIndex(t), Options{})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "prompt", "Go with the pilot."))

	got, err := s.Retrieve(ctx, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "\nMEMORY:\nPAST: Go with the pilot.", got)
}
