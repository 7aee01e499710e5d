package notify

import (
	"encoding/json"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
)

// AnalysisCompleted announces a finished analysis run.
type AnalysisCompleted struct {
	RunID           string    `json:"run_id"`
	Source          string    `json:"source"`
	Rows            int       `json:"rows"`
	TotalSpend      float64   `json:"total_spend"`
	BaseCurrency    string    `json:"base_currency"`
	FragmentedItems int       `json:"fragmented_items"`
	VarianceItems   int       `json:"variance_items"`
	HighRiskGroups  []string  `json:"high_risk_groups,omitempty"`
	Insights        []string  `json:"insights"`
	Warnings        []string  `json:"warnings,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewAnalysisCompleted summarizes res under runID.
func NewAnalysisCompleted(runID string, res *analysis.Result, now time.Time) *AnalysisCompleted {
	m := &AnalysisCompleted{
		RunID:           runID,
		Source:          res.Source,
		Rows:            res.KPIs.Lines,
		TotalSpend:      res.KPIs.TotalSpend,
		BaseCurrency:    res.BaseCurrency,
		FragmentedItems: len(res.Fragmentation),
		VarianceItems:   len(res.Variance),
		Insights:        res.Insights,
		Warnings:        res.Warnings,
		Timestamp:       now.UTC(),
	}
	for _, g := range res.HighRisk() {
		m.HighRiskGroups = append(m.HighRiskGroups, g.MaterialGroup)
	}
	return m
}

// ToJSON converts the message to JSON bytes.
func (m *AnalysisCompleted) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AnalysisCompletedFromJSON decodes a message body.
func AnalysisCompletedFromJSON(data []byte) (*AnalysisCompleted, error) {
	var m AnalysisCompleted
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
