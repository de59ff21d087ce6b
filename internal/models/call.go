package models

import "time"

// CallRecord is the persisted outcome of one survey call.
type CallRecord struct {
	CallID          string            `db:"call_id"               json:"call_id"`
	SurveyID        string            `db:"survey_id"             json:"survey_id"`
	RecipientNumber string            `db:"recipient_number"      json:"recipient_number"`
	StartedAt       time.Time         `db:"call_start_time"       json:"call_start_time"`
	DurationSeconds float64           `db:"call_duration_seconds" json:"call_duration_seconds"`
	Completed       bool              `db:"completed"             json:"completed"`
	EndReason       string            `db:"end_reason"            json:"end_reason"`
	CallbackTime    string            `db:"callback_time"         json:"callback_time,omitempty"`
	Transcript      []TranscriptEntry `db:"-"                     json:"transcript"`
}

// TranscriptEntry is one recorded answer in call order.
type TranscriptEntry struct {
	QuestionID string    `json:"question_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	RecordedAt time.Time `json:"timestamp"`
}

// LinkRequest asks for the survey link to be sent to the recipient so that they can answer in their own time.
type LinkRequest struct {
	CallID    string
	SurveyID  string
	SurveyURL string
	Email     string
	Name      string
}
