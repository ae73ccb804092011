package usecase

import (
	"reflect"
	"testing"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

func TestParseEnrichmentReplyFindsObjectInProse(t *testing.T) {
	reply, err := parseEnrichmentReply("Here you go:\n```json\n{\"summary\": \" Road works \", \"categories\": [\"Construction & Infrastructure\"]}\n```")
	if err != nil {
		t.Fatalf("parseEnrichmentReply() error = %v", err)
	}
	if reply.Summary != "Road works" {
		t.Fatalf("unexpected summary %q", reply.Summary)
	}
	if !reflect.DeepEqual([]string(reply.Categories), []string{"Construction & Infrastructure"}) {
		t.Fatalf("unexpected categories %v", reply.Categories)
	}
}

func TestParseEnrichmentReplySkipsBrokenBraces(t *testing.T) {
	reply, err := parseEnrichmentReply(`Use {curly} braces. {"summary":"ok","categories":"Legal Services"}`)
	if err != nil {
		t.Fatalf("parseEnrichmentReply() error = %v", err)
	}
	if reply.Summary != "ok" || !reflect.DeepEqual([]string(reply.Categories), []string{"Legal Services"}) {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestParseEnrichmentReplyRejectsMissingObject(t *testing.T) {
	if _, err := parseEnrichmentReply("no json here"); !domain.IsKind(err, domain.ErrUnusableOutput) {
		t.Fatalf("expected ErrUnusableOutput, got %v", err)
	}
}

func TestParseEnrichmentReplyRejectsEmptySummary(t *testing.T) {
	if _, err := parseEnrichmentReply(`{"summary":"   ","categories":["Other"]}`); !domain.IsKind(err, domain.ErrUnusableOutput) {
		t.Fatalf("expected ErrUnusableOutput, got %v", err)
	}
}
