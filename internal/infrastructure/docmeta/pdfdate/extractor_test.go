package pdfdate

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseInfoDate(t *testing.T) {
	got, ok := parseInfoDate("D:20240115120000+01'00'")
	if !ok {
		t.Fatalf("expected a date")
	}
	if !got.Equal(day(2024, time.January, 15)) {
		t.Fatalf("unexpected date: %v", got)
	}

	if _, ok := parseInfoDate("garbage"); ok {
		t.Fatalf("garbage must not parse")
	}
	if _, ok := parseInfoDate(""); ok {
		t.Fatalf("empty must not parse")
	}
}

func TestScanTextDates(t *testing.T) {
	text := "Recibo correspondiente al periodo 2024-01-01 a 31/01/2024.\nEmitido: 05/02/2024"
	got := scanTextDates(text)
	if len(got) != 3 {
		t.Fatalf("want 3 dates, got %d: %v", len(got), got)
	}
	if !got[0].Equal(day(2024, time.January, 1)) {
		t.Fatalf("iso date wrong: %v", got[0])
	}
	if !got[1].Equal(day(2024, time.January, 31)) || !got[2].Equal(day(2024, time.February, 5)) {
		t.Fatalf("euro dates wrong: %v", got[1:])
	}
}

func TestMakeDateRejectsImpossibleDays(t *testing.T) {
	if _, ok := makeDate("2024", "02", "31"); ok {
		t.Fatalf("31 February must not parse")
	}
	if _, ok := makeDate("1999", "01", "01"); ok {
		t.Fatalf("out-of-range year must not parse")
	}
}
