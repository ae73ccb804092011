package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

const notSpecified = "Not specified"

func buildEnrichmentPrompt(t domain.Tender, vocabulary []string) string {
	value := notSpecified
	if t.Value != "" {
		value = "AUD " + t.Value
	}
	location := orDefault(t.Location, notSpecified)
	closeDate := notSpecified
	if t.CloseDate != nil {
		closeDate = t.CloseDate.UTC().Format("2 January 2006")
	}

	var b strings.Builder
	b.WriteString("You analyse Australian government tenders for businesses deciding whether to bid.\n\n")
	b.WriteString("Write a plain-language summary of two to three short paragraphs covering what is being procured, ")
	b.WriteString("who is buying it and any key requirements or deadlines. ")
	b.WriteString("Then choose between one and three categories, using only labels from this list:\n")
	for _, label := range vocabulary {
		b.WriteString("- ")
		b.WriteString(label)
		b.WriteByte('\n')
	}
	b.WriteString("\nTender details:\n")
	fmt.Fprintf(&b, "Title: %s\n", t.Title)
	fmt.Fprintf(&b, "Agency: %s\n", t.Agency)
	fmt.Fprintf(&b, "Description: %s\n", t.Description)
	fmt.Fprintf(&b, "Value: %s\n", value)
	fmt.Fprintf(&b, "Location: %s\n", location)
	fmt.Fprintf(&b, "Status: %s\n", t.Status)
	fmt.Fprintf(&b, "Closing date: %s\n", closeDate)
	b.WriteString("\nRespond with a single JSON object and nothing else:\n")
	b.WriteString(`{"summary": "...", "categories": ["..."]}`)
	return b.String()
}

type enrichmentReply struct {
	Summary    string     `json:"summary"`
	Categories stringList `json:"categories"`
}

// stringList accepts either a JSON array of strings or a single string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("categories must be a string or list of strings")
	}
	*l = []string{one}
	return nil
}

// parseEnrichmentReply decodes the first JSON object embedded in free text.
func parseEnrichmentReply(raw string) (enrichmentReply, error) {
	for offset := 0; offset < len(raw); {
		idx := strings.IndexByte(raw[offset:], '{')
		if idx < 0 {
			break
		}
		start := offset + idx

		var reply enrichmentReply
		dec := json.NewDecoder(strings.NewReader(raw[start:]))
		if err := dec.Decode(&reply); err == nil {
			if strings.TrimSpace(reply.Summary) == "" {
				return enrichmentReply{}, domain.WrapError(domain.ErrUnusableOutput, "parse enrichment reply", fmt.Errorf("summary is empty"))
			}
			reply.Summary = strings.TrimSpace(reply.Summary)
			return reply, nil
		}
		offset = start + 1
	}
	return enrichmentReply{}, domain.WrapError(domain.ErrUnusableOutput, "parse enrichment reply", fmt.Errorf("no json object in model output"))
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
