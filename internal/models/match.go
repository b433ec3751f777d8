package models

import "time"

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchAccepted  MatchStatus = "accepted"
	MatchCompleted MatchStatus = "completed"
)

// CanAdvanceTo: единственный разрешённый переход pending → accepted.
func (s MatchStatus) CanAdvanceTo(next MatchStatus) bool {
	return s == MatchPending && next == MatchAccepted
}

type Match struct {
	ID        string      `json:"id"`
	PostID    string      `json:"postId"`
	LearnerID string      `json:"learnerId"`
	MentorID  string      `json:"mentorId"`
	Status    MatchStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Participant reports whether userID is the learner or the mentor.
func (m Match) Participant(userID string) bool {
	return userID != "" && (m.LearnerID == userID || m.MentorID == userID)
}

// Counterpart returns the other side of the match for userID.
func (m Match) Counterpart(userID string) string {
	if m.LearnerID == userID {
		return m.MentorID
	}
	return m.LearnerID
}
