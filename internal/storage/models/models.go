package models

import "time"

// TurnAudit is one answered turn as persisted for offline review. It
// mirrors the response's audit fields, not the session's in-memory state.
type TurnAudit struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	TurnNumber     int       `json:"turn_number"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	FinalDecision  string    `json:"final_decision"`
	ResponseMode   string    `json:"response_mode"`
	Confidence     float64   `json:"confidence"`
	Threshold      float64   `json:"threshold"`
	DocumentsFound int       `json:"documents_found"`
	Success        bool      `json:"success"`
	LatencyMS      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Feedback is a user's verdict on one answered turn.
type Feedback struct {
	TurnID        string    `json:"turn_id"`
	Helpful       bool      `json:"helpful"`
	IssueCategory string    `json:"issue_category,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
