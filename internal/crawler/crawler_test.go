package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/jobscraper/internal/render"
	crawlerrors "sjsage522/jobscraper/pkg/errors"
	"sjsage522/jobscraper/services/cache"
)

func TestNewJobRecordHasEveryKey(t *testing.T) {
	rec := NewJobRecord(SourceTalent, JobStub{URL: "https://in.talent.com/view?id=1"})
	assert.Equal(t, NotAvailable, rec.Title)

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))

	for _, key := range []string{
		"source", "title", "company", "url", "description", "experience", "salary",
		"job_function", "industry", "specialization", "graduate_courses",
		"post_graduate_courses", "employment_type", "job_type", "gender", "skills",
	} {
		assert.Contains(t, fields, key)
	}
	assert.Len(t, fields, 16)
	assert.Equal(t, "Talent.com", fields["source"])
}

func TestJobRecordSetGet(t *testing.T) {
	var rec JobRecord
	assert.True(t, rec.Set(FieldJobFunction, "IT Software"))
	assert.Equal(t, "IT Software", rec.JobFunction)
	assert.Equal(t, "IT Software", rec.Get(FieldJobFunction))
	assert.False(t, rec.Set("unknown", "x"))
	assert.Equal(t, "", rec.Get("unknown"))
}

func TestCollect(t *testing.T) {
	boom := errors.New("boom")
	var failed []int
	values := collect([]Outcome[string]{
		{Value: "a"},
		{Err: boom},
		{Value: "c"},
	}, func(i int, err error) {
		assert.ErrorIs(t, err, boom)
		failed = append(failed, i)
	})

	assert.Equal(t, []string{"a", "c"}, values)
	assert.Equal(t, []int{1}, failed)
}

func TestDedupStubs(t *testing.T) {
	stubs := []JobStub{
		{Title: "First", URL: "https://a/1"},
		{Title: "N/A", URL: "https://a/2"},
		{Title: "Second", URL: "https://a/1"},
		{Title: "", URL: "https://a/3"},
		{Title: "No link", URL: ""},
		{Title: "Third", URL: "https://a/2"},
	}

	got := dedupStubs(stubs)
	assert.Equal(t, []JobStub{
		{Title: "First", URL: "https://a/1"},
		{Title: "Third", URL: "https://a/2"},
	}, got)

	// deduplicating again changes nothing
	assert.Equal(t, got, dedupStubs(got))
}

func TestRunCollectsAllPages(t *testing.T) {
	r := newMockRenderer()
	r.pages[testSearchURL(1)] = listingPage(2, "1", "2")
	r.pages[testSearchURL(2)] = listingPage(2, "2", "3")
	for _, id := range []string{"1", "2", "3"} {
		r.pages[testDetailURL(id)] = detailPage(id)
	}

	c := newTestCrawler(r, testSourceConfig())
	records := c.Run(context.Background(), Query{Keyword: "go"})

	require.Len(t, records, 3)
	assert.Equal(t, "Job 1", records[0].Title)
	assert.Equal(t, "Company 1", records[0].Company)
	assert.Equal(t, testDetailURL("2"), records[1].URL)
	assert.Equal(t, "Job 3", records[2].Title)
	for _, rec := range records {
		assert.Equal(t, SourceTimesJobs, rec.Source)
	}

	// page 1 is rendered once and reused for pagination
	assert.Equal(t, 1, r.visitsMatching("page=1"))
	assert.Equal(t, 1, r.visitsMatching("/job/2"), "duplicate link visited once")
	assert.Equal(t, 1, r.acquired)
	assert.Equal(t, 1, r.closed)
}

func TestRunNoResultsShortCircuits(t *testing.T) {
	r := newMockRenderer()
	r.pages[testSearchURL(1)] = `<html><body><p>Sorry, no jobs matching your search.</p>` +
		`<a class="job" href="/job/1">Job 1</a><button>3</button></body></html>`

	c := newTestCrawler(r, testSourceConfig())
	records := c.Run(context.Background(), Query{})

	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Equal(t, []string{testSearchURL(1)}, r.visits)
	assert.Equal(t, 1, r.closed)
}

func TestRunNoResultsOnLaterPageStopsWalk(t *testing.T) {
	r := newMockRenderer()
	r.pages[testSearchURL(1)] = listingPage(4, "1")
	r.pages[testSearchURL(2)] = `<html><body>No results found</body></html>`
	r.pages[testSearchURL(3)] = listingPage(4, "3")
	r.pages[testDetailURL("1")] = detailPage("1")

	cfg := testSourceConfig()
	cfg.NoResultsPhrases = []string{"no results found"}
	records := newTestCrawler(r, cfg).Run(context.Background(), Query{})

	require.Len(t, records, 1)
	assert.Equal(t, 0, r.visitsMatching("page=3"))
}

func TestRunPageCap(t *testing.T) {
	tests := []struct {
		name      string
		limit     *int
		wantPages int
	}{
		{"no cap", nil, 3},
		{"zero means no cap", intPtr(0), 3},
		{"lower cap truncates", intPtr(2), 2},
		{"cap of one", intPtr(1), 1},
		{"higher cap has no effect", intPtr(10), 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newMockRenderer()
			for page := 1; page <= 3; page++ {
				r.pages[testSearchURL(page)] = listingPage(3)
			}

			newTestCrawler(r, testSourceConfig()).Run(context.Background(), Query{PageLimit: tc.limit})
			assert.Equal(t, tc.wantPages, r.visitsMatching("/search"))
		})
	}
}

func TestRunSkipsFailedPage(t *testing.T) {
	r := newMockRenderer()
	r.pages[testSearchURL(1)] = listingPage(3, "1")
	r.errs[testSearchURL(2)] = errors.New("navigation timeout")
	r.pages[testSearchURL(3)] = listingPage(3, "3")
	r.pages[testDetailURL("1")] = detailPage("1")
	r.pages[testDetailURL("3")] = detailPage("3")

	records := newTestCrawler(r, testSourceConfig()).Run(context.Background(), Query{})

	require.Len(t, records, 2)
	assert.Equal(t, "Job 1", records[0].Title)
	assert.Equal(t, "Job 3", records[1].Title)
}

func TestRunSkipsPageWhoseExtractionPanics(t *testing.T) {
	r := newMockRenderer()
	r.pages[testSearchURL(1)] = listingPage(3, "1")
	r.pages[testSearchURL(2)] = listingPage(3, "2")
	r.pages[testSearchURL(3)] = listingPage(3, "3")
	r.pages[testDetailURL("1")] = detailPage("1")
	r.pages[testDetailURL("3")] = detailPage("3")

	cfg := testSourceConfig()
	extract := cfg.ExtractStubs
	cfg.ExtractStubs = func(doc *goquery.Document, baseURL string) []JobStub {
		if doc.Find(`a[href="/job/2"]`).Length() > 0 {
			panic("unexpected card layout")
		}
		return extract(doc, baseURL)
	}

	var records []JobRecord
	assert.NotPanics(t, func() {
		records = newTestCrawler(r, cfg).Run(context.Background(), Query{})
	})

	require.Len(t, records, 2)
	assert.Equal(t, "Job 1", records[0].Title)
	assert.Equal(t, "Job 3", records[1].Title)
	assert.Equal(t, 0, r.visitsMatching("/job/2"))
}

func TestRunRecoversFromCrawlPanic(t *testing.T) {
	r := newMockRenderer()
	r.pages[testSearchURL(1)] = listingPage(2, "1")

	cfg := testSourceConfig()
	cfg.TotalPages = func(*goquery.Document) int {
		panic("pagination widget changed")
	}

	var records []JobRecord
	assert.NotPanics(t, func() {
		records = newTestCrawler(r, cfg).Run(context.Background(), Query{})
	})

	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Equal(t, 1, r.closed, "renderer released before the panic is recovered")
}

func TestRunIsolatesFailingJobs(t *testing.T) {
	r := newMockRenderer()
	r.pages[testSearchURL(1)] = listingPage(1, "1", "2", "3")
	r.pages[testDetailURL("1")] = detailPage("1")
	r.errs[testDetailURL("2")] = errors.New("tab crashed")
	r.pages[testDetailURL("3")] = detailPage("3")

	records := newTestCrawler(r, testSourceConfig()).Run(context.Background(), Query{})

	require.Len(t, records, 2)
	assert.Equal(t, testDetailURL("1"), records[0].URL)
	assert.Equal(t, testDetailURL("3"), records[1].URL)
}

func TestRunFieldMissUsesSentinel(t *testing.T) {
	r := newMockRenderer()
	r.pages[testSearchURL(1)] = listingPage(1, "1")
	r.pages[testDetailURL("1")] = `<html><body><h1>Nothing here</h1></body></html>`

	records := newTestCrawler(r, testSourceConfig()).Run(context.Background(), Query{})

	require.Len(t, records, 1)
	assert.Equal(t, NotAvailable, records[0].Company)
}

func TestRunWholeCrawlFailures(t *testing.T) {
	t.Run("renderer unavailable", func(t *testing.T) {
		c := NewSourceCrawler(testSourceConfig(), func(context.Context) (render.Renderer, error) {
			return nil, errors.New("chrome not found")
		}, nil, time.Minute)
		records := c.Run(context.Background(), Query{})
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("first page fails", func(t *testing.T) {
		r := newMockRenderer()
		r.errs[testSearchURL(1)] = errors.New("net::ERR_NAME_NOT_RESOLVED")

		records := newTestCrawler(r, testSourceConfig()).Run(context.Background(), Query{})
		assert.Empty(t, records)
		assert.Equal(t, 1, r.closed, "renderer released on failure")
	})

	t.Run("context cancelled", func(t *testing.T) {
		r := newMockRenderer()
		r.pages[testSearchURL(1)] = listingPage(1, "1")
		r.pages[testDetailURL("1")] = detailPage("1")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		records := newTestCrawler(r, testSourceConfig()).Run(ctx, Query{})
		assert.Empty(t, records)
		assert.Equal(t, 1, r.closed)
	})
}

func TestRunRateLimitMarker(t *testing.T) {
	mem := cache.NewMemoryCache()
	r := newMockRenderer()
	r.errs[testSearchURL(1)] = crawlerrors.NewRateLimit("test", "60")

	c := NewSourceCrawler(testSourceConfig(), r.factory(), mem, time.Minute)
	c.Sleep = noSleep

	assert.Empty(t, c.Run(context.Background(), Query{}))
	assert.True(t, cache.IsBlocked(mem, "test_rate_limited"))
	assert.Equal(t, 1, r.acquired)

	// a blocked source does not acquire a renderer
	assert.Empty(t, c.Run(context.Background(), Query{}))
	assert.Equal(t, 1, r.acquired)

	require.NoError(t, mem.Delete("test_rate_limited"))
	delete(r.errs, testSearchURL(1))
	r.pages[testSearchURL(1)] = listingPage(1)
	c.Run(context.Background(), Query{})
	assert.Equal(t, 2, r.acquired)
}

func TestRunRateLimitWithoutBlockTime(t *testing.T) {
	mem := cache.NewMemoryCache()
	r := newMockRenderer()
	r.errs[testSearchURL(1)] = crawlerrors.NewRateLimit("test", "60")

	c := NewSourceCrawler(testSourceConfig(), r.factory(), mem, 0)
	c.Sleep = noSleep

	assert.Empty(t, c.Run(context.Background(), Query{}))
	assert.False(t, cache.IsBlocked(mem, "test_rate_limited"))

	delete(r.errs, testSearchURL(1))
	r.pages[testSearchURL(1)] = listingPage(1)
	c.Run(context.Background(), Query{})
	assert.Equal(t, 2, r.acquired, "the next crawl is not blocked")
}

func TestRunPacesBetweenPages(t *testing.T) {
	r := newMockRenderer()
	for page := 1; page <= 3; page++ {
		r.pages[testSearchURL(page)] = listingPage(3)
	}

	cfg := testSourceConfig()
	cfg.PageDelayMin = 3 * time.Second
	cfg.PageDelayMax = 6 * time.Second

	var delays []time.Duration
	c := newTestCrawler(r, cfg)
	c.Sleep = func(_ context.Context, d time.Duration) { delays = append(delays, d) }
	c.Run(context.Background(), Query{})

	require.Len(t, delays, 2, "one pause before each page after the first")
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 6*time.Second)
	}
}
