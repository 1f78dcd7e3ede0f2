package learn_test

import (
	"slices"
	"testing"

	"github.com/batonhq/baton/learn"
)

func TestKeywordsFiltersStopwordsAndShortTokens(t *testing.T) {
	got := learn.Keywords("Send the quarterly report to finance and archive a copy")
	want := []string{"send", "quarterly", "report", "finance", "archive", "copy"}
	if !slices.Equal(got, want) {
		t.Fatalf("Keywords = %v, want %v", got, want)
	}
}

func TestKeywordsDeduplicatesKeepingFirstOccurrence(t *testing.T) {
	got := learn.Keywords("report report REPORT on the report")
	want := []string{"report"}
	if !slices.Equal(got, want) {
		t.Fatalf("Keywords = %v, want %v", got, want)
	}
}

func TestKeywordsSplitsOnPunctuation(t *testing.T) {
	got := learn.Keywords("upload invoice.pdf, then email bob@example.com")
	want := []string{"upload", "invoice", "pdf", "then", "email", "bob", "example", "com"}
	if !slices.Equal(got, want) {
		t.Fatalf("Keywords = %v, want %v", got, want)
	}
}

func TestKeywordsEmptyWhenNothingSurvives(t *testing.T) {
	if got := learn.Keywords("to do it on an up"); len(got) != 0 {
		t.Fatalf("Keywords = %v, want none", got)
	}
	if got := learn.Keywords(""); len(got) != 0 {
		t.Fatalf("Keywords(\"\") = %v, want none", got)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"send", "report"}, []string{"send", "report"}, 1.0},
		{"reordered", []string{"send", "report"}, []string{"report", "send"}, 1.0},
		{"disjoint", []string{"send", "report"}, []string{"book", "meeting"}, 0.0},
		{"half", []string{"send", "report", "finance"}, []string{"report", "finance", "archive"}, 0.5},
		{"both empty", nil, nil, 0.0},
		{"one empty", []string{"send"}, nil, 0.0},
		{"duplicates collapse", []string{"send", "send"}, []string{"send"}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := learn.Jaccard(tt.a, tt.b); got != tt.want {
				t.Errorf("Jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
