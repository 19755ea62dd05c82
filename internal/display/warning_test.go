package display

import (
	"bytes"
	"strings"
	"testing"
)

func TestWarningDisplay(t *testing.T) {
	tests := []struct {
		name     string
		warning  Warning
		contains []string
		excludes []string
	}{
		{
			name:     "title only",
			warning:  Warning{Title: "Something odd"},
			contains: []string{"⚠️  Warning: Something odd\n"},
			excludes: []string{"Affected", "Suggestion", "\x1b["},
		},
		{
			name:     "single item",
			warning:  Warning{Title: "t", Items: []string{"a.csv"}, ItemNoun: "file"},
			contains: []string{"    Affected file:\n", "      1. a.csv\n"},
		},
		{
			name:     "plural items default noun",
			warning:  Warning{Title: "t", Items: []string{"a", "b"}},
			contains: []string{"    Affected items:\n", "      2. b\n"},
		},
		{
			name:     "message and suggestion",
			warning:  Warning{Title: "t", Message: "details", Suggestion: "do this"},
			contains: []string{"    details\n", "    Suggestion:\n    do this\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.warning.Display(&buf)
			out := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(out, bad) {
					t.Errorf("output should not contain %q:\n%s", bad, out)
				}
			}
		})
	}
}

func TestWarnDroppedTraces(t *testing.T) {
	if _, ok := WarnDroppedTraces("traces.csv", 0); ok {
		t.Error("expected no warning when nothing was dropped")
	}

	w, ok := WarnDroppedTraces("traces.csv", 3)
	if !ok {
		t.Fatal("expected a warning")
	}
	if w.Title != "traces.csv: 3 trace(s) dropped" {
		t.Errorf("unexpected title %q", w.Title)
	}
}

func TestWarnFailedBuckets(t *testing.T) {
	w := WarnFailedBuckets("log.csv", []string{"2018-03-03", "2018-03-05"})

	var buf bytes.Buffer
	w.Display(&buf)
	out := buf.String()

	for _, want := range []string{"log.csv: 2 bucket(s) failed", "Affected buckets:", "1. 2018-03-03", "2. 2018-03-05"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
