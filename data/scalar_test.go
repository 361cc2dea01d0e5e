package data

import (
	"reflect"
	"testing"
)

type tagged struct {
	Mark *Tag
}

var taggedCfg = &Cfg{
	Kind: KindSequence,
	Type: reflect.TypeOf((*tagged)(nil)),
	Children: []*Cfg{
		{Kind: KindTag, Name: "mark", Field: "Mark"},
	},
}

func TestTagRoundTrip(t *testing.T) {
	v, err := Parse[tagged](taggedCfg, []byte(`[{"mark":[]}]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Mark == nil {
		t.Fatalf("expected tag set")
	}
	out, err := Print(taggedCfg, v)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if string(out) != `[{"mark":[]}]` {
		t.Fatalf("unexpected encoding: %s", out)
	}

	absent, err := Parse[tagged](taggedCfg, []byte(`[]`))
	if err != nil {
		t.Fatalf("Parse empty: %v", err)
	}
	if absent.Mark != nil {
		t.Fatalf("expected tag absent")
	}
}

type colored struct {
	Color *string
}

var colorEnum = &EnumMeta{Names: []string{"red", "green", "blue"}}

var coloredCfg = &Cfg{
	Kind: KindSequence,
	Type: reflect.TypeOf((*colored)(nil)),
	Children: []*Cfg{
		{Kind: KindEnum, Name: "color", Field: "Color", Enum: colorEnum},
	},
}

func TestEnumRejectsUnknownValue(t *testing.T) {
	if _, err := Parse[colored](coloredCfg, []byte(`[{"color":"purple"}]`)); err == nil {
		t.Fatalf("expected error for out-of-range enum value")
	}
	v, err := Parse[colored](coloredCfg, []byte(`[{"color":"green"}]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if *v.Color != "green" {
		t.Fatalf("unexpected color: %v", *v.Color)
	}
}

func TestDurationParsePrint(t *testing.T) {
	d, err := parseDuration("PT1H30M15S")
	if err != nil {
		t.Fatalf("parseDuration: %v", err)
	}
	if d.Hours != 1 || d.Minutes != 30 || d.Seconds != 15 {
		t.Fatalf("unexpected duration: %+v", d)
	}
	if got := d.String(); got != "PT1H30M15S" {
		t.Fatalf("unexpected print: %q", got)
	}
	neg := d
	neg.Negative = true
	if got := neg.String(); got != "-PT1H30M15S" {
		t.Fatalf("unexpected negated print: %q", got)
	}
}

func TestDateTimeAddDurationMonthOverflow(t *testing.T) {
	dt, err := parseDateTime("2024-01-31T00:00:00Z")
	if err != nil {
		t.Fatalf("parseDateTime: %v", err)
	}
	d, err := parseDuration("P1M")
	if err != nil {
		t.Fatalf("parseDuration: %v", err)
	}
	got := dt.AddDuration(d)
	if got.Date.Year != 2024 || got.Date.Month != 2 || got.Date.Day != 29 {
		t.Fatalf("expected leap-year clamp to Feb 29, got %+v", got.Date)
	}
}

func TestAbsoluteOrRelativeTimeTriesDurationFirst(t *testing.T) {
	v, err := parseAbsoluteOrRelativeTime("PT5M")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.IsAbsolute {
		t.Fatalf("expected relative (Duration) parse")
	}
	v2, err := parseAbsoluteOrRelativeTime("2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !v2.IsAbsolute {
		t.Fatalf("expected absolute (DateTime) parse")
	}
}
