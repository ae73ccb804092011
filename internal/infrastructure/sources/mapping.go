package sources

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

// MinDescriptionLength is the shortest normalized description a record may carry.
const MinDescriptionLength = 5

// CleanText applies NFC normalization and collapses runs of whitespace.
func CleanText(raw string) string {
	return strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
}

// UsableDescription reports whether a cleaned description passes the quality gate.
func UsableDescription(cleaned string) bool {
	return utf8.RuneCountInString(cleaned) >= MinDescriptionLength
}

// Categories deduplicates hints in first-seen order, ignoring case, and
// falls back to the sentinel category when nothing is left.
func Categories(hints ...string) []string {
	seen := make(map[string]struct{}, len(hints))
	out := make([]string, 0, len(hints))
	for _, hint := range hints {
		hint = CleanText(hint)
		if hint == "" {
			continue
		}
		key := strings.ToLower(hint)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, hint)
	}
	if len(out) == 0 {
		return []string{domain.SentinelCategory}
	}
	return out
}

// Status derives the lifecycle state: an award marker wins, then the close date.
func Status(awarded bool, closeDate *time.Time, now time.Time) domain.TenderStatus {
	if awarded {
		return domain.StatusAwarded
	}
	if closeDate != nil && closeDate.Before(now) {
		return domain.StatusClosed
	}
	return domain.StatusOpen
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Truncate cuts s to limit runes and appends an ellipsis when it did so.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

// ParseTime tries each layout in turn. Empty input yields nil.
func ParseTime(raw string, layouts ...string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if len(layouts) == 0 {
		layouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("unrecognised time %q", raw)
}

var plainDecimal = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Amount keeps a monetary value as decimal text. It accepts a JSON number
// or a numeric string and never round-trips through float64.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if raw == "" {
			*a = ""
			return nil
		}
	}
	text, err := DecimalText(raw)
	if err != nil {
		return err
	}
	*a = Amount(text)
	return nil
}

// DecimalText validates a decimal literal. Plain literals are returned as-is;
// exponent forms are expanded exactly to two fractional digits.
func DecimalText(raw string) (string, error) {
	if plainDecimal.MatchString(raw) {
		return raw, nil
	}
	r, ok := new(big.Rat).SetString(raw)
	if !ok {
		return "", fmt.Errorf("invalid decimal %q", raw)
	}
	return r.FloatString(2), nil
}
