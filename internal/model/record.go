package model

// StoryRecord is one submitted story, the unit of storage in the dataset.
// The record schema carries only the text; timestamps live in the
// operational metadata of the hosting repo (commit messages, pending
// file names), never in the record itself.
type StoryRecord struct {
	Text string `json:"story"`
}

// PendingEntry is the JSONL payload written under the pending/ area of
// the dataset repo. Status marks entries the merge job has not picked
// up yet.
type PendingEntry struct {
	Story        string `json:"story"`
	TimestampUTC string `json:"timestamp_utc"`
	Status       string `json:"status"`
}

// StatsSnapshot is a derived summary of the corpus. It is recomputed
// from the dataset on demand; cached copies expire on a short TTL.
type StatsSnapshot struct {
	TotalRecords int64   `json:"total_records"`
	TotalChars   int64   `json:"total_chars"`
	AvgChars     float64 `json:"avg_chars"`
}
