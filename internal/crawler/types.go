package crawler

import (
	"context"
	"strconv"
	"strings"
)

// Source tags every record with the site it was scraped from
type Source string

const (
	SourceTimesJobs Source = "TimesJobs"
	SourceTalent    Source = "Talent.com"
)

// Key returns the short lowercase name used in configuration and file names
func (s Source) Key() string {
	switch s {
	case SourceTimesJobs:
		return "timesjobs"
	case SourceTalent:
		return "talent"
	}
	return strings.ToLower(strings.NewReplacer(".", "", " ", "_").Replace(string(s)))
}

// SourceForKey maps a Key back to its Source
func SourceForKey(key string) (Source, bool) {
	for _, s := range []Source{SourceTimesJobs, SourceTalent} {
		if s.Key() == key {
			return s, true
		}
	}
	return "", false
}

// Sentinel values written when a field cannot be located
const (
	NotAvailable         = "N/A"
	DescriptionNotFound  = "Description not found."
	DescriptionMinLength = 50
)

// Field names shared by extractors, the JSON schema and the text format
const (
	FieldTitle               = "title"
	FieldCompany             = "company"
	FieldURL                 = "url"
	FieldDescription         = "description"
	FieldExperience          = "experience"
	FieldSalary              = "salary"
	FieldJobFunction         = "job_function"
	FieldIndustry            = "industry"
	FieldSpecialization      = "specialization"
	FieldGraduateCourses     = "graduate_courses"
	FieldPostGraduateCourses = "post_graduate_courses"
	FieldEmploymentType      = "employment_type"
	FieldJobType             = "job_type"
	FieldGender              = "gender"
	FieldSkills              = "skills"
)

// JobRecord is one normalized job posting. Every key is always serialized.
type JobRecord struct {
	Source              Source `json:"source"`
	Title               string `json:"title"`
	Company             string `json:"company"`
	URL                 string `json:"url"`
	Description         string `json:"description"`
	Experience          string `json:"experience"`
	Salary              string `json:"salary"`
	JobFunction         string `json:"job_function"`
	Industry            string `json:"industry"`
	Specialization      string `json:"specialization"`
	GraduateCourses     string `json:"graduate_courses"`
	PostGraduateCourses string `json:"post_graduate_courses"`
	EmploymentType      string `json:"employment_type"`
	JobType             string `json:"job_type"`
	Gender              string `json:"gender"`
	Skills              string `json:"skills"`
}

// NewJobRecord starts a record for stub with every attribute present.
// Attributes a source does not extract stay empty; the title falls back to N/A.
func NewJobRecord(source Source, stub JobStub) JobRecord {
	title := stub.Title
	if title == "" {
		title = NotAvailable
	}
	return JobRecord{
		Source: source,
		Title:  title,
		URL:    stub.URL,
	}
}

// fieldRefs maps field names to the record's storage
func (r *JobRecord) fieldRefs() map[string]*string {
	return map[string]*string{
		FieldTitle:               &r.Title,
		FieldCompany:             &r.Company,
		FieldURL:                 &r.URL,
		FieldDescription:         &r.Description,
		FieldExperience:          &r.Experience,
		FieldSalary:              &r.Salary,
		FieldJobFunction:         &r.JobFunction,
		FieldIndustry:            &r.Industry,
		FieldSpecialization:      &r.Specialization,
		FieldGraduateCourses:     &r.GraduateCourses,
		FieldPostGraduateCourses: &r.PostGraduateCourses,
		FieldEmploymentType:      &r.EmploymentType,
		FieldJobType:             &r.JobType,
		FieldGender:              &r.Gender,
		FieldSkills:              &r.Skills,
	}
}

// Set assigns value to the named field and reports whether the name is known
func (r *JobRecord) Set(field, value string) bool {
	ref, ok := r.fieldRefs()[field]
	if !ok {
		return false
	}
	*ref = value
	return true
}

// Get returns the named field's value
func (r *JobRecord) Get(field string) string {
	if ref, ok := r.fieldRefs()[field]; ok {
		return *ref
	}
	return ""
}

// JobStub is a listing link discovered on a search page
type JobStub struct {
	Title string
	URL   string
}

// Query is the search a crawler runs. Empty strings and nil pointers mean "not filtered".
type Query struct {
	Keyword    string
	Location   string
	Experience *int
	PageLimit  *int
}

// experienceParam renders the experience filter, or "" when unset
func (q Query) experienceParam() string {
	if q.Experience == nil {
		return ""
	}
	return strconv.Itoa(*q.Experience)
}

// pageCap returns the positive page cap, or 0 for no cap
func (q Query) pageCap() int {
	if q.PageLimit == nil || *q.PageLimit <= 0 {
		return 0
	}
	return *q.PageLimit
}

// Crawler is implemented by every source crawler
type Crawler interface {
	// Run crawls the source for q. It never fails; errors yield fewer or no records.
	Run(ctx context.Context, q Query) []JobRecord

	// GetName returns the crawler's name for logging and identification
	GetName() string

	// GetSource returns the source tag written on every record
	GetSource() Source
}

// Outcome is the result of one per-item step: a value or an error, never both
type Outcome[T any] struct {
	Value T
	Err   error
}

// collect keeps the successful values in order and reports each failure to onErr
func collect[T any](outcomes []Outcome[T], onErr func(i int, err error)) []T {
	values := make([]T, 0, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			if onErr != nil {
				onErr(i, o.Err)
			}
			continue
		}
		values = append(values, o.Value)
	}
	return values
}
