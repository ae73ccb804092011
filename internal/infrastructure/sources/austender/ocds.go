package austender

import (
	"encoding/json"

	"github.com/adamantic/aussietenders/internal/infrastructure/sources"
)

type releasePackage struct {
	Releases []json.RawMessage `json:"releases"`
	Links    struct {
		Next string `json:"next"`
	} `json:"links"`
}

type release struct {
	OCID      string     `json:"ocid"`
	ID        string     `json:"id"`
	Date      string     `json:"date"`
	Tag       []string   `json:"tag"`
	Parties   []party    `json:"parties"`
	Contracts []contract `json:"contracts"`
	Tender    *struct {
		ID                       string `json:"id"`
		ProcurementMethod        string `json:"procurementMethod"`
		ProcurementMethodDetails string `json:"procurementMethodDetails"`
	} `json:"tender"`
}

type party struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Roles   []string `json:"roles"`
	Address *struct {
		Locality string `json:"locality"`
		Region   string `json:"region"`
	} `json:"address"`
}

type contract struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Value       *struct {
		Amount   sources.Amount `json:"amount"`
		Currency string         `json:"currency"`
	} `json:"value"`
	Period *struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"period"`
	Items []struct {
		ID             string `json:"id"`
		Classification *struct {
			Scheme      string `json:"scheme"`
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"classification"`
	} `json:"items"`
}

func (r release) partyWithRole(role string) *party {
	for i := range r.Parties {
		for _, candidate := range r.Parties[i].Roles {
			if candidate == role {
				return &r.Parties[i]
			}
		}
	}
	return nil
}

func (p *party) region() string {
	if p == nil || p.Address == nil {
		return ""
	}
	return p.Address.Region
}

func (p *party) name() string {
	if p == nil {
		return ""
	}
	return p.Name
}
