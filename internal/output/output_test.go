package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Format
	}{
		{raw: "json", want: FormatJSON},
		{raw: "CSV", want: FormatCSV},
		{raw: " xlsx ", want: FormatXLSX},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("xml")
	var ce *crawler.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "format", ce.Field)
}

func TestFormatExt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".json", FormatJSON.Ext())
	assert.Equal(t, ".csv", FormatCSV.Ext())
	assert.Equal(t, ".xlsx", FormatXLSX.Ext())
	assert.Equal(t, "format(9)", Format(9).String())
}

func TestNewRequiresFilename(t *testing.T) {
	t.Parallel()

	_, err := New(FormatJSON, Config{Dir: t.TempDir()})
	var ce *crawler.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestNewTruncatesExistingOutput(t *testing.T) {
	t.Parallel()

	cfg := Config{Dir: t.TempDir(), Filename: "notes"}
	require.NoError(t, os.WriteFile(cfg.Path(FormatJSON), []byte("stale"), 0o600))

	w, err := New(FormatJSON, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(cfg.Path(FormatJSON))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	cfg := Config{Dir: t.TempDir(), Filename: "notes"}
	w, err := New(FormatJSON, cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.WritePage(ctx, crawler.PageResult{PageNumber: 1, Records: []crawler.Record{
		{Primary: "Zucchini <fresh>", Secondary: "10 min"},
		{Primary: "Apple pie", Secondary: "1 h"},
	}}))
	require.NoError(t, w.WritePage(ctx, crawler.PageResult{PageNumber: 2}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(cfg.Path(FormatJSON))
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"Zucchini <fresh>\": \"10 min\",\n    \"Apple pie\": \"1 h\"\n}\n{}\n", string(data))

	dec := json.NewDecoder(strings.NewReader(string(data)))
	var docs []map[string]string
	for {
		var doc map[string]string
		if err := dec.Decode(&doc); err == io.EOF {
			break
		} else {
			require.NoError(t, err)
		}
		docs = append(docs, doc)
	}
	require.Len(t, docs, 2)
	assert.Equal(t, "1 h", docs[0]["Apple pie"])

	err = w.WritePage(ctx, crawler.PageResult{PageNumber: 3})
	var se *crawler.StorageError
	require.ErrorAs(t, err, &se)
}

func TestCSVWriterHeaderOnceUnderConcurrency(t *testing.T) {
	t.Parallel()

	cfg := Config{Dir: t.TempDir(), Filename: "notes", Columns: []string{"dish", "preparing_time"}}
	w, err := New(FormatCSV, cfg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for page := 1; page <= 8; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			assert.NoError(t, w.WritePage(context.Background(), crawler.PageResult{
				PageNumber: page,
				Records: []crawler.Record{
					{Primary: "a", Secondary: "1"},
					{Primary: "b, with comma", Secondary: "2"},
				},
			}))
		}(page)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	f, err := os.Open(cfg.Path(FormatCSV))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 17)
	assert.Equal(t, []string{"dish", "preparing_time"}, rows[0])
	headers := 0
	for _, row := range rows {
		if row[0] == "dish" {
			headers++
		}
	}
	assert.Equal(t, 1, headers)
	assert.Contains(t, rows, []string{"b, with comma", "2"})
}

func TestCSVWriterDefaultColumns(t *testing.T) {
	t.Parallel()

	cfg := Config{Dir: t.TempDir(), Filename: "notes", Columns: []string{"only-one"}}
	w, err := New(FormatCSV, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(cfg.Path(FormatCSV))
	require.NoError(t, err)
	assert.Equal(t, "primary,secondary\n", string(data))
}

func TestXLSXWriterSheetPerPage(t *testing.T) {
	t.Parallel()

	cfg := Config{Dir: t.TempDir(), Filename: "notes"}
	w, err := New(FormatXLSX, cfg)
	require.NoError(t, err)

	ctx := context.Background()
	for _, page := range []int{2, 1, 3} {
		require.NoError(t, w.WritePage(ctx, crawler.PageResult{
			PageNumber: page,
			Records:    []crawler.Record{{Primary: "dish", Secondary: "5 min"}},
		}))
	}
	err = w.WritePage(ctx, crawler.PageResult{PageNumber: 1})
	require.ErrorContains(t, err, "already written")
	require.NoError(t, w.Close())

	book, err := excelize.OpenFile(filepath.Join(cfg.Dir, "notes.xlsx"))
	require.NoError(t, err)
	defer book.Close()

	assert.ElementsMatch(t, []string{"page 1", "page 2", "page 3"}, book.GetSheetList())
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"primary", "secondary"}, {"dish", "5 min"}}, rows, sheet)
	}
}

func TestXLSXWriterWithoutPagesKeepsDefaultSheet(t *testing.T) {
	t.Parallel()

	cfg := Config{Dir: t.TempDir(), Filename: "empty"}
	w, err := New(FormatXLSX, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	book, err := excelize.OpenFile(cfg.Path(FormatXLSX))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{defaultSheet}, book.GetSheetList())
}
