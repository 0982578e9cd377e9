package crawler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/jobscraper/helpers"
	"sjsage522/jobscraper/internal/render"
)

const timesJobsBaseURL = "https://www.timesjobs.com"

// timesJobsLabels are the "Label: value" rows of a detail page and their fields
var timesJobsLabels = []struct {
	Label string
	Field string
}{
	{"Job Function", FieldJobFunction},
	{"Industry", FieldIndustry},
	{"Specialization", FieldSpecialization},
	{"Graduate Courses", FieldGraduateCourses},
	{"Post Graduate Courses", FieldPostGraduateCourses},
	{"Employment Type", FieldEmploymentType},
	{"Job Type", FieldJobType},
	{"Gender", FieldGender},
}

// skillExcludes mark sibling text that is page boilerplate rather than a skill
var skillExcludes = []string{
	"year", "experience", "about", "company", "description",
	"required", "please", "call", "opening", "job id", "location",
}

// timesJobsFactSpans holds experience at index 1 and salary at index 2
const timesJobsFactSpans = `span[class="mr-2 inline flex items-center"]`

// TimesJobsConfig returns the configuration of the TimesJobs crawler.
// siteURL replaces the site's scheme and host when not empty.
func TimesJobsConfig(siteURL string) SourceConfig {
	baseURL := siteRoot(siteURL, timesJobsBaseURL)
	searchURL := baseURL + "/job-search"

	fields := []FieldExtractor{
		{
			Field:    FieldCompany,
			Sentinel: NotAvailable,
			Matchers: []Matcher{StructuralMatch("company", "h3.inline.mr-2", 0)},
		},
		{
			Field:    FieldDescription,
			Sentinel: NotAvailable,
			Matchers: []Matcher{
				StructuralMatch("rtd-content", "div[class*='rtd-content']", DescriptionMinLength),
				StructuralMatch("description-block",
					"div[class*='jd-cont'], div[class*='job-desc'], "+
						"section[class*='jd-cont'], section[class*='job-desc'], "+
						"article[class*='jd-cont'], article[class*='job-desc']",
					DescriptionMinLength),
				HeadingSiblingMatch("h2, h3, h4, h5", "description"),
			},
		},
		{
			Field:    FieldSkills,
			Sentinel: NotAvailable,
			Matchers: []Matcher{SkillsMatch("h2, h3, h4, h5, heading", "key skill", skillExcludes)},
		},
		{
			Field:    FieldExperience,
			Sentinel: NotAvailable,
			Matchers: []Matcher{IndexMatch("experience", timesJobsFactSpans, 1, "")},
		},
		{
			Field:    FieldSalary,
			Sentinel: NotAvailable,
			Matchers: []Matcher{IndexMatch("salary", timesJobsFactSpans, 2, " ")},
		},
	}
	for _, l := range timesJobsLabels {
		fields = append(fields, FieldExtractor{
			Field:    l.Field,
			Sentinel: NotAvailable,
			Matchers: []Matcher{LabelMatch(l.Label)},
		})
	}

	return SourceConfig{
		Source:   SourceTimesJobs,
		Key:      SourceTimesJobs.Key(),
		BaseURL:  baseURL,
		BuildURL: func(q Query, page int) string { return timesJobsSearchURL(searchURL, q, page) },
		ListingWait: render.WaitOptions{
			ReadySelector: "a[href*='/job-detail/']",
			ReadyTimeout:  20 * time.Second,
			Settle:        4 * time.Second,
			Scroll:        render.ScrollBottomAndBack,
		},
		DetailWait: render.WaitOptions{
			ReadySelector: "h1, h2",
			ReadyTimeout:  10 * time.Second,
		},
		NoResultsPhrases: []string{"no jobs matching", "no results found"},
		TotalPages: func(doc *goquery.Document) int {
			return maxNumericText(doc, "button")
		},
		ExtractStubs:   timesJobsStubs,
		Fields:         fields,
		PageDelayMin:   3 * time.Second,
		PageDelayMax:   6 * time.Second,
		DetailDelayMin: time.Second,
		DetailDelayMax: 2 * time.Second,
	}
}

// timesJobsSearchURL encodes the query in the site's parameter order.
// Absent filters are left out; page is only sent past the first page.
func timesJobsSearchURL(searchURL string, q Query, page int) string {
	params := [][2]string{{"refreshed", "true"}}
	if q.Keyword != "" {
		params = append(params, [2]string{"keywords", `"` + q.Keyword + `"`})
	}
	if q.Location != "" {
		params = append(params, [2]string{"location", q.Location + ","})
	}
	if exp := q.experienceParam(); exp != "" {
		params = append(params, [2]string{"experience", exp})
	}
	if page > 1 {
		params = append(params, [2]string{"page", strconv.Itoa(page)})
	}
	return searchURL + "?" + encodeOrdered(params)
}

// timesJobsStubs takes every job-detail link and the h2 of its enclosing div
func timesJobsStubs(doc *goquery.Document, baseURL string) []JobStub {
	var stubs []JobStub
	doc.Find("a[href*='/job-detail/']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title := NotAvailable
		if heading := a.Closest("div").Find("h2").First(); heading.Length() > 0 {
			title = nodeText(heading, "")
		}
		stubs = append(stubs, JobStub{
			Title: title,
			URL:   helpers.ResolveURL(baseURL, href),
		})
	})
	return stubs
}

// siteRoot returns the scheme and host of searchURL, or fallback when it has none
func siteRoot(searchURL, fallback string) string {
	u, err := url.Parse(searchURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fallback
	}
	return u.Scheme + "://" + u.Host
}

// encodeOrdered is url.Values.Encode without the key sort
func encodeOrdered(params [][2]string) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p[0])+"="+url.QueryEscape(p[1]))
	}
	return strings.Join(parts, "&")
}
