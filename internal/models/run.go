package models

import "strings"

// DatasetPair holds the two source tables read from the workbook.
// Both are treated as read-only once the Collector returns them.
type DatasetPair struct {
	EDW     *Table
	Journal *Table
}

// RunStats summarises a finished reconciliation run.
type RunStats struct {
	Matched     int `json:"matched"`
	Unmatched   int `json:"unmatched"`
	Partial     int `json:"partial"`
	Other       int `json:"other"`
	Suggestions int `json:"suggestions"`
	EDWRows     int `json:"edw_rows"`
	JournalRows int `json:"journal_rows"`
}

// Total returns the number of reconciliation rows counted.
func (s RunStats) Total() int {
	return s.Matched + s.Unmatched + s.Partial + s.Other
}

// Anomaly records an enumerated cell whose value is outside the allowed set.
// Row is the zero-based data row index.
type Anomaly struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// RunResult is the successful outcome of one run.
type RunResult struct {
	RunID     string    `json:"run_id"`
	Report    []byte    `json:"-"`
	Logs      LogTrail  `json:"logs"`
	Stats     RunStats  `json:"stats"`
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// ComputeStats counts statuses in the reconciliation table and sizes of the other tables.
// Status values outside the enumerated set are counted as Other.
func ComputeStats(recon, suggestions *Table, pair DatasetPair) RunStats {
	stats := RunStats{
		Suggestions: suggestions.Len(),
		EDWRows:     pair.EDW.Len(),
		JournalRows: pair.Journal.Len(),
	}
	if recon == nil {
		return stats
	}

	for i := range recon.Rows {
		switch strings.ToUpper(strings.TrimSpace(recon.Value(i, ColumnStatus))) {
		case StatusMatched:
			stats.Matched++
		case StatusUnmatched:
			stats.Unmatched++
		case StatusPartial:
			stats.Partial++
		default:
			stats.Other++
		}
	}
	return stats
}
