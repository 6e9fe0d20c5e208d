package types

import "time"

// Article is one feed entry. URL is its identity everywhere downstream.
type Article struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Tag       string    `json:"tag"`
	Published time.Time `json:"published"`
}

// Outcome is how processing one article ended.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Engagement records what the bot did on one article.
type Engagement struct {
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	Tag       string    `json:"tag"`
	Clapped   bool      `json:"clapped"`
	Claps     int       `json:"claps"`
	Followed  bool      `json:"followed"`
	Commented bool      `json:"commented"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// SessionStats summarises one bot run.
type SessionStats struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Processed  int       `json:"processed"`
	Clapped    int       `json:"clapped"`
	Followed   int       `json:"followed"`
	Commented  int       `json:"commented"`
	Failed     int       `json:"failed"`
}
