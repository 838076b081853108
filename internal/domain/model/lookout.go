package model

import "time"

// AttentionCounts are the headline numbers of a lookout report.
type AttentionCounts struct {
	ChangesRequested int `json:"changes_requested"`
	Unreviewed       int `json:"unreviewed"`
	Stale            int `json:"stale"`
}

// LookoutReport is the digest of activity since the previous lookout run.
type LookoutReport struct {
	Repo                string          `json:"repo,omitempty"`
	PeriodStart         time.Time       `json:"period_start"`
	PeriodEnd           time.Time       `json:"period_end"`
	FirstRun            bool            `json:"first_run,omitempty"`
	NewEntries          EntryCounts     `json:"new_entries"`
	Attention           AttentionCounts `json:"attention"`
	UnaddressedFeedback []Entry         `json:"unaddressed_feedback,omitempty"`
}

// Quiet reports whether the period saw no new activity and nothing needs
// attention.
func (r LookoutReport) Quiet() bool {
	return r.NewEntries.Total() == 0 &&
		r.Attention.ChangesRequested == 0 &&
		r.Attention.Unreviewed == 0 &&
		r.Attention.Stale == 0 &&
		len(r.UnaddressedFeedback) == 0
}
