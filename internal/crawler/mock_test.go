package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/jobscraper/helpers"
	"sjsage522/jobscraper/internal/render"
)

// mockRenderer serves canned HTML per URL and records every visit
type mockRenderer struct {
	mu       sync.Mutex
	pages    map[string]string
	errs     map[string]error
	visits   []string
	acquired int
	closed   int
}

func newMockRenderer() *mockRenderer {
	return &mockRenderer{
		pages: make(map[string]string),
		errs:  make(map[string]error),
	}
}

func (m *mockRenderer) Render(_ context.Context, url string, _ render.WaitOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.visits = append(m.visits, url)
	if err, ok := m.errs[url]; ok {
		return "", err
	}
	if html, ok := m.pages[url]; ok {
		return html, nil
	}
	return "", fmt.Errorf("no page for %s", url)
}

func (m *mockRenderer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed++
	return nil
}

func (m *mockRenderer) factory() render.Factory {
	return func(context.Context) (render.Renderer, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.acquired++
		return m, nil
	}
}

// visitsMatching counts visits whose URL contains fragment
func (m *mockRenderer) visitsMatching(fragment string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, v := range m.visits {
		if strings.Contains(v, fragment) {
			n++
		}
	}
	return n
}

func noSleep(context.Context, time.Duration) {}

const testBaseURL = "https://jobs.example"

func testSearchURL(page int) string {
	return fmt.Sprintf("%s/search?page=%d", testBaseURL, page)
}

func testDetailURL(id string) string {
	return testBaseURL + "/job/" + id
}

// testSourceConfig is a minimal site: links are a.job, pages are numbered buttons
func testSourceConfig() SourceConfig {
	return SourceConfig{
		Source:           SourceTimesJobs,
		Key:              "test",
		BaseURL:          testBaseURL,
		BuildURL:         func(_ Query, page int) string { return testSearchURL(page) },
		NoResultsPhrases: []string{"no jobs matching"},
		TotalPages: func(doc *goquery.Document) int {
			return maxNumericText(doc, "button")
		},
		ExtractStubs: func(doc *goquery.Document, baseURL string) []JobStub {
			var stubs []JobStub
			doc.Find("a.job").Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				stubs = append(stubs, JobStub{
					Title: strings.TrimSpace(a.Text()),
					URL:   helpers.ResolveURL(baseURL, href),
				})
			})
			return stubs
		},
		Fields: []FieldExtractor{
			{
				Field:    FieldCompany,
				Sentinel: NotAvailable,
				Matchers: []Matcher{StructuralMatch("company", "h3.company", 0)},
			},
		},
	}
}

// listingPage renders a search page with the given job ids and pagination buttons
func listingPage(totalPages int, ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<div class="card"><a class="job" href="/job/%s">Job %s</a></div>`, id, id)
	}
	b.WriteString(`<div class="pager">`)
	for i := 1; i <= totalPages; i++ {
		fmt.Fprintf(&b, "<button>%d</button>", i)
	}
	b.WriteString("<button>Next</button></div></body></html>")
	return b.String()
}

func detailPage(id string) string {
	return fmt.Sprintf(`<html><body><h1>Job %s</h1><h3 class="company">Company %s</h3></body></html>`, id, id)
}

func newTestCrawler(r *mockRenderer, cfg SourceConfig) *SourceCrawler {
	c := NewSourceCrawler(cfg, r.factory(), nil, time.Minute)
	c.Sleep = noSleep
	return c
}

func intPtr(v int) *int {
	return &v
}
