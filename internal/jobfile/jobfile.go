// Package jobfile reads and writes the line-oriented job listing format:
//
//	Job #1
//	Title: Python Developer
//	Company: Acme Corp
//	...
//
// Records are separated by a blank line and values never span lines.
package jobfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sjsage522/jobscraper/internal/crawler"
)

const recordPrefix = "Job #"

// maxLineSize bounds a single line; descriptions can be long
const maxLineSize = 4 * 1024 * 1024

// Labels lists the written labels in output order with the fields they carry
var Labels = []struct {
	Label string
	Field string
}{
	{"Title", crawler.FieldTitle},
	{"Company", crawler.FieldCompany},
	{"Experience", crawler.FieldExperience},
	{"Salary", crawler.FieldSalary},
	{"Job Function", crawler.FieldJobFunction},
	{"Industry", crawler.FieldIndustry},
	{"Specialization", crawler.FieldSpecialization},
	{"Graduate Courses", crawler.FieldGraduateCourses},
	{"Post Graduate Courses", crawler.FieldPostGraduateCourses},
	{"Employment Type", crawler.FieldEmploymentType},
	{"Job Type", crawler.FieldJobType},
	{"Gender", crawler.FieldGender},
	{"URL", crawler.FieldURL},
	{"Description", crawler.FieldDescription},
	{"Skills", crawler.FieldSkills},
}

// Write renders records in the text format, numbering them from 1
func Write(w io.Writer, records []crawler.JobRecord) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "%s%d\n", recordPrefix, i+1)
		for _, l := range Labels {
			fmt.Fprintf(bw, "%s: %s\n", l.Label, singleLine(rec.Get(l.Field)))
		}
	}
	return bw.Flush()
}

// Parse reads records written by Write and tags them with source.
// Lines before the first "Job #" line and unknown lines are ignored.
func Parse(r io.Reader, source crawler.Source) ([]crawler.JobRecord, error) {
	var (
		records []crawler.JobRecord
		current *crawler.JobRecord
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.HasPrefix(line, recordPrefix) {
			if current != nil {
				records = append(records, *current)
			}
			current = &crawler.JobRecord{Source: source}
			continue
		}
		if current == nil {
			continue
		}
		for _, l := range Labels {
			if value, ok := strings.CutPrefix(line, l.Label+":"); ok {
				current.Set(l.Field, strings.TrimSpace(value))
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	if current != nil {
		records = append(records, *current)
	}
	return records, nil
}

// ParseFile reads a listing written by the text exporter. The source comes from
// the "<key>_jobs" prefix of the file name.
func ParseFile(path string) ([]crawler.JobRecord, error) {
	key, _, found := strings.Cut(filepath.Base(path), "_jobs")
	source, known := crawler.SourceForKey(key)
	if !found || !known {
		return nil, fmt.Errorf("cannot tell the source of %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f, source)
}

// singleLine folds line breaks so a value stays on its label's line
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
