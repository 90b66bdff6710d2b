// Package enrich turns raw registry records into classified person
// records. The primary path is the external NER enrichment service; a
// rule-based fallback keeps ingestion alive when it is unreachable.
package enrich

// Result is the enrichment outcome for one raw record, in the same order
// as the submitted batch.
type Result struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Age          *int                `json:"age"`
	Gender       string              `json:"gender"`
	Location     string              `json:"location"`
	Description  string              `json:"description"`
	PhotoDataURL string              `json:"photo_url"`
	Priority     string              `json:"priority"`
	Category     string              `json:"category"`
	RiskFactors  []string            `json:"risk_factors"`
	Features     map[string][]string `json:"extracted_features"`
}
