package crawler

import (
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/jobscraper/helpers"
	"sjsage522/jobscraper/internal/render"
)

const talentBaseURL = "https://in.talent.com"

// TalentConfig returns the configuration of the Talent.com crawler.
// siteURL replaces the site's scheme and host when not empty.
func TalentConfig(siteURL string) SourceConfig {
	baseURL := siteRoot(siteURL, talentBaseURL)
	searchURL := baseURL + "/jobs"

	return SourceConfig{
		Source:   SourceTalent,
		Key:      SourceTalent.Key(),
		BaseURL:  baseURL,
		BuildURL: func(q Query, page int) string { return talentSearchURL(searchURL, q, page) },
		ListingWait: render.WaitOptions{
			Settle: 5 * time.Second,
			Scroll: []render.ScrollStep{
				{Script: "window.scrollTo(0, document.body.scrollHeight/3);", Pause: 2 * time.Second},
			},
		},
		DetailWait: render.WaitOptions{
			ReadySelector: "h1",
			ReadyTimeout:  10 * time.Second,
		},
		NoResultsPhrases: []string{"no jobs matching", "no results found", "did not match any jobs"},
		TotalPages: func(doc *goquery.Document) int {
			return maxNumericText(doc, `a[href*="p="], .pagination a`)
		},
		ExtractStubs: talentStubs,
		Fields: []FieldExtractor{
			{
				Field:    FieldCompany,
				Sentinel: NotAvailable,
				Matchers: []Matcher{PreferredMatch("company", 0, "div.job-header__company", "span.hwHBRV")},
			},
			{
				Field:    FieldDescription,
				Sentinel: DescriptionNotFound,
				Matchers: []Matcher{
					StructuralMatch("rich-text", "div[class*='sc-fcd630a4-10']", DescriptionMinLength),
					ClimbMatch("b", "job description", 4, DescriptionMinLength),
					PreferredMatch("job-description", 0, "div#job-description", "div.job-description"),
				},
			},
		},
		PageDelayMin:   3 * time.Second,
		PageDelayMax:   6 * time.Second,
		DetailDelayMin: 2 * time.Second,
		DetailDelayMax: 4 * time.Second,
	}
}

// talentSearchURL builds the search URL; the site has no experience filter
func talentSearchURL(searchURL string, q Query, page int) string {
	var params [][2]string
	if q.Location != "" {
		params = append(params, [2]string{"l", q.Location})
	}
	if q.Keyword != "" {
		params = append(params, [2]string{"k", q.Keyword})
	}
	if page > 1 {
		params = append(params, [2]string{"p", strconv.Itoa(page)})
	}
	if len(params) == 0 {
		return searchURL
	}
	return searchURL + "?" + encodeOrdered(params)
}

// talentStubs reads the result cards. The obfuscated card class is tried first.
func talentStubs(doc *goquery.Document, baseURL string) []JobStub {
	cards := doc.Find("div.gXOxBJ")
	if cards.Length() == 0 {
		cards = doc.Find("div.link-job-wrap")
	}

	var stubs []JobStub
	cards.Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		title := NotAvailable
		for _, selector := range []string{"h2.card__job-title", "div.card__job-title", "h2"} {
			if t := card.Find(selector).First(); t.Length() > 0 {
				title = helpers.CleanText(t.Text())
				break
			}
		}
		stubs = append(stubs, JobStub{
			Title: title,
			URL:   helpers.ResolveURL(baseURL, href),
		})
	})
	return stubs
}
