package entities

// Diagnosis is a best-effort explanation of why a source failed.
type Diagnosis struct {
	Explanation  string  `json:"explanation"`
	SuggestedFix *string `json:"suggested_fix"`
}

type FailedSource struct {
	Module    string     `json:"module"`
	Error     string     `json:"error"`
	Diagnosis *Diagnosis `json:"diagnosis"`
}

// Report is the outcome of one ingestion cycle.
type Report struct {
	Added          int            `json:"added"`
	Total          int64          `json:"total"`
	FailedScrapers []FailedSource `json:"failed_scrapers"`
}
