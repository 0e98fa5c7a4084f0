package report

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "0:00:00"},
		{in: 3*time.Second + 250*time.Millisecond, want: "0:00:03.250000"},
		{in: time.Hour + 2*time.Minute + 3*time.Second + 4*time.Microsecond, want: "1:02:03.000004"},
		{in: 25 * time.Hour, want: "1 day, 1:00:00"},
		{in: 50*time.Hour + 500*time.Nanosecond, want: "2 days, 2:00:00"},
		{in: -time.Second, want: "0:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}

func TestWriteMeta(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "output")
	sink := &recordingSink{}
	r := New(dir, fixedIDs{id: "run-1"}, zaptest.NewLogger(t), sink)

	start := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	summary := r.Summarize(start, start.Add(90*time.Second+1500*time.Microsecond), 5, 42)
	require.Equal(t, "run-1", summary.RunID)
	require.NoError(t, r.Write(context.Background(), summary))

	f, err := os.Open(filepath.Join(dir, MetaFilename))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"time start", "time end", "duration", "downloaded pages", "downloaded notes"},
		{"09:05:07", "09:06:37", "0:01:30.001500", "5", "42"},
	}, rows)
	assert.Equal(t, []crawler.RunSummary{summary}, sink.got)
}

func TestWriteOverwritesPreviousMeta(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetaFilename), []byte("old,old\nold,old\nold,old\n"), 0o600))

	r := New(dir, nil, nil)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Write(context.Background(), r.Summarize(now, now, 1, 0)))

	data, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.Equal(t, "time start,time end,duration,downloaded pages,downloaded notes\n00:00:00,00:00:00,0:00:00,1,0\n", string(data))
}

func TestWriteReportsFailuresWithoutStopping(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	failing := &recordingSink{err: errors.New("db down")}
	healthy := &recordingSink{}
	r := New(file, fixedIDs{err: errors.New("entropy")}, zaptest.NewLogger(t), failing, healthy)

	now := time.Now()
	summary := r.Summarize(now, now, 1, 1)
	assert.Empty(t, summary.RunID)

	err := r.Write(context.Background(), summary)
	var se *crawler.StorageError
	require.ErrorAs(t, err, &se)
	assert.ErrorContains(t, err, "recording: db down")
	assert.Len(t, healthy.got, 1, "later sinks still run")
}

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) NewID() (string, error) { return f.id, f.err }

type recordingSink struct {
	got []crawler.RunSummary
	err error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Record(_ context.Context, summary crawler.RunSummary) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, summary)
	return nil
}
