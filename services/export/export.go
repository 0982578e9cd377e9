package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sjsage522/jobscraper/internal/crawler"
	"sjsage522/jobscraper/internal/jobfile"
	"sjsage522/jobscraper/logger"
	crawlerrors "sjsage522/jobscraper/pkg/errors"
)

// timestampLayout stamps every export file name
const timestampLayout = "20060102_150405"

// Exporter writes a merged result set somewhere and returns the paths it wrote
type Exporter interface {
	Export(records []crawler.JobRecord) ([]string, error)
}

// JSONExporter writes the whole result set as one indented JSON array
type JSONExporter struct {
	Dir string
	Now func() time.Time
	log *logger.Logger
}

// NewJSONExporter creates an exporter writing merged_jobs_<timestamp>.json into dir
func NewJSONExporter(dir string) *JSONExporter {
	return &JSONExporter{Dir: dir, Now: time.Now, log: logger.ForExporter()}
}

// Export writes records. An empty result set still produces a file holding [].
func (e *JSONExporter) Export(records []crawler.JobRecord) ([]string, error) {
	if records == nil {
		records = []crawler.JobRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, crawlerrors.NewExport("encode records", err)
	}

	name := fmt.Sprintf("merged_jobs_%s.json", stamp(e.Now))
	path, err := writeFile(e.Dir, name, buf.Bytes())
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("path", path).Int("records", len(records)).Msg("JSON export written")
	return []string{path}, nil
}

// TextExporter writes one text listing per source in the jobfile format
type TextExporter struct {
	Dir string
	Now func() time.Time
	log *logger.Logger
}

// NewTextExporter creates an exporter writing <source>_jobs_<timestamp>.txt files into dir
func NewTextExporter(dir string) *TextExporter {
	return &TextExporter{Dir: dir, Now: time.Now, log: logger.ForExporter()}
}

// Export groups records by source, keeping first-seen source order and
// record order within each source.
func (e *TextExporter) Export(records []crawler.JobRecord) ([]string, error) {
	var order []crawler.Source
	groups := make(map[crawler.Source][]crawler.JobRecord)
	for _, rec := range records {
		if _, ok := groups[rec.Source]; !ok {
			order = append(order, rec.Source)
		}
		groups[rec.Source] = append(groups[rec.Source], rec)
	}

	ts := stamp(e.Now)
	paths := make([]string, 0, len(order))
	for _, source := range order {
		var buf bytes.Buffer
		if err := jobfile.Write(&buf, groups[source]); err != nil {
			return paths, crawlerrors.NewExport("render text listing", err)
		}
		path, err := writeFile(e.Dir, fmt.Sprintf("%s_jobs_%s.txt", source.Key(), ts), buf.Bytes())
		if err != nil {
			return paths, err
		}
		e.log.Info().Str("path", path).Int("records", len(groups[source])).Msg("Text export written")
		paths = append(paths, path)
	}
	return paths, nil
}

func stamp(now func() time.Time) string {
	if now == nil {
		now = time.Now
	}
	return now().Format(timestampLayout)
}

func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", crawlerrors.NewExport("create output directory", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", crawlerrors.NewExport("write "+name, err)
	}
	return path, nil
}
