package pdfdate

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/ledongthuc/pdf"
)

// maxTextScan bounds how much extracted text the date scan looks at. Dates
// that matter (issue date, period headers) sit on the first page.
const maxTextScan = 16 * 1024

// Extractor pulls candidate dates out of PDF artifacts: the document info
// dictionary first, then a bounded scan of the page text. It is best effort
// throughout; a PDF it cannot parse yields no dates, not an error the caller
// has to handle specially.
type Extractor struct {
	baseDir string
}

func New(baseDir string) *Extractor {
	return &Extractor{baseDir: baseDir}
}

var (
	// D:20240115120000+01'00' as written by most generators
	pdfInfoDate = regexp.MustCompile(`D:(\d{4})(\d{2})(\d{2})`)

	textISODate  = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	textEuroDate = regexp.MustCompile(`\b(\d{2})/(\d{2})/(20\d{2})\b`)
)

func (e *Extractor) ExtractDates(_ context.Context, storageKey string) ([]time.Time, error) {
	path := filepath.Join(e.baseDir, storageKey)
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var out []time.Time
	seen := map[time.Time]bool{}
	add := func(t time.Time, ok bool) {
		if ok && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	info := reader.Trailer().Key("Info")
	for _, key := range []string{"CreationDate", "ModDate"} {
		add(parseInfoDate(info.Key(key).RawString()))
	}

	if text, err := reader.GetPlainText(); err == nil {
		add2 := func(dates []time.Time) {
			for _, d := range dates {
				add(d, true)
			}
		}
		raw, readErr := io.ReadAll(io.LimitReader(text, maxTextScan))
		if readErr == nil {
			add2(scanTextDates(string(raw)))
		}
	}

	return out, nil
}

func parseInfoDate(raw string) (time.Time, bool) {
	m := pdfInfoDate.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	return makeDate(m[1], m[2], m[3])
}

func scanTextDates(text string) []time.Time {
	var out []time.Time
	for _, m := range textISODate.FindAllStringSubmatch(text, -1) {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			out = append(out, d)
		}
	}
	for _, m := range textEuroDate.FindAllStringSubmatch(text, -1) {
		if d, ok := makeDate(m[3], m[2], m[1]); ok {
			out = append(out, d)
		}
	}
	return out
}

func makeDate(year, month, day string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if y < 2000 || y > 2100 || m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// reject 31/02 style near-misses that Date silently normalizes away
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}
