package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

const listingPage = `<html><body>
<div class="note"><span class="emotion-1j2opmb"> Alpha </span><span class="emotion-yelpk7">first</span></div>
<div class="note"><span class="emotion-1j2opmb">Beta</span><span class="emotion-yelpk7"> second </span></div>
<div class="note"><span class="emotion-1j2opmb">Gamma</span><span class="emotion-yelpk7">third</span></div>
</body></html>`

func TestExtractPairsByIndex(t *testing.T) {
	t.Parallel()

	records, err := New(Config{}).Extract([]byte(listingPage))
	require.NoError(t, err)
	assert.Equal(t, []crawler.Record{
		{Primary: "Alpha", Secondary: "first"},
		{Primary: "Beta", Secondary: "second"},
		{Primary: "Gamma", Secondary: "third"},
	}, records)
}

func TestExtractIsPure(t *testing.T) {
	t.Parallel()

	e := New(Config{})
	first, err := e.Extract([]byte(listingPage))
	require.NoError(t, err)
	second, err := e.Extract([]byte(listingPage))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractCollapsesDuplicatePrimaries(t *testing.T) {
	t.Parallel()

	markup := `<span class="emotion-1j2opmb">A</span><span class="emotion-yelpk7">1</span>
<span class="emotion-1j2opmb">B</span><span class="emotion-yelpk7">2</span>
<span class="emotion-1j2opmb">A</span><span class="emotion-yelpk7">3</span>`

	records, err := New(Config{}).Extract([]byte(markup))
	require.NoError(t, err)
	assert.Equal(t, []crawler.Record{
		{Primary: "A", Secondary: "3"},
		{Primary: "B", Secondary: "2"},
	}, records)
}

func TestExtractCountMismatch(t *testing.T) {
	t.Parallel()

	markup := `<span class="emotion-1j2opmb">A</span><span class="emotion-1j2opmb">B</span>
<span class="emotion-yelpk7">1</span>`

	records, err := New(Config{}).Extract([]byte(markup))
	require.Nil(t, records)
	var ee *crawler.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Reason, "found 2")
}

func TestExtractEmptyPage(t *testing.T) {
	t.Parallel()

	records, err := New(Config{}).Extract([]byte("<html><body></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtractCustomSelectors(t *testing.T) {
	t.Parallel()

	markup := `<ul><li><b>k1</b><i>v1</i></li><li><b>k2</b><i>v2</i></li></ul>`
	records, err := New(Config{PrimarySelector: "li b", SecondarySelector: "li i"}).Extract([]byte(markup))
	require.NoError(t, err)
	assert.Equal(t, []crawler.Record{
		{Primary: "k1", Secondary: "v1"},
		{Primary: "k2", Secondary: "v2"},
	}, records)
}
