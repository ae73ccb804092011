package domain

import "time"

type TenderStatus string

const (
	StatusOpen    TenderStatus = "Open"
	StatusClosed  TenderStatus = "Closed"
	StatusAwarded TenderStatus = "Awarded"
)

// SentinelCategory is applied when a source provides no taxonomy hints.
const SentinelCategory = "Government Procurement"

// Tender is a persisted tender row. AI fields are written only by enrichment.
type Tender struct {
	ID          int64        `json:"id"`
	ExternalID  string       `json:"external_id,omitempty"`
	Source      string       `json:"source"`
	Title       string       `json:"title"`
	Agency      string       `json:"agency"`
	Description string       `json:"description"`
	Status      TenderStatus `json:"status"`
	Value       string       `json:"value,omitempty"`
	Location    string       `json:"location,omitempty"`
	PublishDate *time.Time   `json:"publish_date,omitempty"`
	CloseDate   *time.Time   `json:"close_date,omitempty"`
	Categories  []string     `json:"categories"`
	MatchScore  int          `json:"match_score"`

	AISummary    string     `json:"ai_summary,omitempty"`
	AICategories []string   `json:"ai_categories,omitempty"`
	AIEnriched   bool       `json:"ai_enriched"`
	AIEnrichedAt *time.Time `json:"ai_enriched_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenderCandidate is the adapter-produced shape. It has no id and no AI fields,
// so a sync-driven write cannot carry enrichment data.
type TenderCandidate struct {
	ExternalID  string
	Source      string
	Title       string
	Agency      string
	Description string
	Status      TenderStatus
	Value       string
	Location    string
	PublishDate *time.Time
	CloseDate   *time.Time
	Categories  []string
}

// Enrichment is the AI-derived patch applied to a tender.
// An empty Summary denotes the defaulted terminal state.
type Enrichment struct {
	Summary    string
	Categories []string
	EnrichedAt time.Time
}

type EnrichmentResult struct {
	TenderID   int64    `json:"tender_id"`
	Summary    string   `json:"summary"`
	Categories []string `json:"categories"`
	Cached     bool     `json:"cached"`
}

// SyncResult is the per-source tally for one sync run.
type SyncResult struct {
	Source  string `json:"source"`
	Fetched int    `json:"fetched"`
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	Errors  int    `json:"errors"`
}

type ConnectionStatus struct {
	Source    string `json:"source"`
	Reachable bool   `json:"reachable"`
}

type FetchWindow struct {
	Since time.Time
	Until time.Time
}

func (w FetchWindow) IsZero() bool {
	return w.Since.IsZero() && w.Until.IsZero()
}

type TenderFilter struct {
	Search   string
	Source   string
	Category string
	Page     int
	Limit    int
}

type TenderPage struct {
	Tenders []Tender `json:"tenders"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
}
