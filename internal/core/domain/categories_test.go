package domain

import (
	"reflect"
	"testing"
)

func TestCategoriesLoadsEmbeddedVocabulary(t *testing.T) {
	v := Categories()
	if len(v.Labels()) != 20 {
		t.Fatalf("expected 20 labels, got %d", len(v.Labels()))
	}
	if v.Fallback() != "Other" {
		t.Fatalf("expected fallback Other, got %q", v.Fallback())
	}
}

func TestValidateStripsUnknownLabels(t *testing.T) {
	got := Categories().Validate([]string{"Made-up Category", "Information Technology"})
	want := []string{"Information Technology"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Validate() = %v, want %v", got, want)
	}
}

func TestValidateDeduplicatesAndCanonicalizesCase(t *testing.T) {
	got := Categories().Validate([]string{"legal services", "Legal Services", " Manufacturing "})
	want := []string{"Legal Services", "Manufacturing"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Validate() = %v, want %v", got, want)
	}
}

func TestValidateFallsBackWhenNothingMatches(t *testing.T) {
	got := Categories().Validate([]string{"Space Tourism"})
	if !reflect.DeepEqual(got, []string{"Other"}) {
		t.Fatalf("Validate() = %v, want [Other]", got)
	}
	got = Categories().Validate(nil)
	if !reflect.DeepEqual(got, []string{"Other"}) {
		t.Fatalf("Validate(nil) = %v, want [Other]", got)
	}
}

func TestParseVocabularyRejectsUnknownFallback(t *testing.T) {
	_, err := ParseVocabulary([]byte("fallback: Misc\ncategories:\n  - Manufacturing\n"))
	if err == nil {
		t.Fatalf("expected error for fallback outside vocabulary")
	}
}
