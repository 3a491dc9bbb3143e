package model

import "time"

// Unknown is stored for text profile fields the data source omits.
const Unknown = "Unknown"

// CompanyProfile is the descriptive metadata of a listed company, keyed by Symbol.
type CompanyProfile struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Sector        string    `json:"sector"`
	Industry      string    `json:"industry"`
	Description   string    `json:"description"`
	MarketCap     int64     `json:"market_cap"`
	PERatio       float64   `json:"pe_ratio"`
	DividendYield float64   `json:"dividend_yield"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ApplyDefaults fills omitted text fields with Unknown. Numeric fields already default to 0.
func (p *CompanyProfile) ApplyDefaults() {
	for _, f := range []*string{&p.Name, &p.Sector, &p.Industry, &p.Description} {
		if *f == "" {
			*f = Unknown
		}
	}
}
