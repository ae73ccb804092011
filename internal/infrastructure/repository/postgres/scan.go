package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTender(row rowScanner) (*domain.Tender, error) {
	var (
		t             domain.Tender
		externalID    sql.NullString
		status        string
		value         sql.NullString
		location      sql.NullString
		publishDate   sql.NullTime
		closeDate     sql.NullTime
		categoriesRaw []byte
		aiSummary     sql.NullString
		aiCategories  []byte
		aiEnrichedAt  sql.NullTime
	)
	err := row.Scan(
		&t.ID, &externalID, &t.Source, &t.Title, &t.Agency, &t.Description, &status, &value, &location,
		&publishDate, &closeDate, &categoriesRaw, &t.MatchScore,
		&aiSummary, &aiCategories, &t.AIEnriched, &aiEnrichedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ExternalID = externalID.String
	t.Status = domain.TenderStatus(status)
	t.Value = value.String
	t.Location = location.String
	t.PublishDate = timePtr(publishDate)
	t.CloseDate = timePtr(closeDate)
	t.AISummary = aiSummary.String
	t.AIEnrichedAt = timePtr(aiEnrichedAt)

	if err := json.Unmarshal(categoriesRaw, &t.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if len(aiCategories) > 0 {
		if err := json.Unmarshal(aiCategories, &t.AICategories); err != nil {
			return nil, fmt.Errorf("unmarshal ai categories: %w", err)
		}
	}
	return &t, nil
}

func collectTenders(rows *sql.Rows) ([]domain.Tender, error) {
	defer rows.Close()

	out := make([]domain.Tender, 0)
	for rows.Next() {
		t, err := scanTender(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tender: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenders: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
