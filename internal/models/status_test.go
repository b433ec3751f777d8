package models

import "testing"

func TestPostStatus_OnlyOpenToMatched(t *testing.T) {
	all := []PostStatus{PostOpen, PostMatched, PostCompleted}
	for _, from := range all {
		for _, to := range all {
			got := from.CanAdvanceTo(to)
			want := from == PostOpen && to == PostMatched
			if got != want {
				t.Fatalf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestMatchStatus_CompletedUnreachable(t *testing.T) {
	all := []MatchStatus{MatchPending, MatchAccepted, MatchCompleted}
	for _, from := range all {
		if from.CanAdvanceTo(MatchCompleted) {
			t.Fatalf("%s -> completed must be rejected", from)
		}
	}
	if !MatchPending.CanAdvanceTo(MatchAccepted) {
		t.Fatal("pending -> accepted must be allowed")
	}
	if MatchAccepted.CanAdvanceTo(MatchAccepted) {
		t.Fatal("accepted -> accepted must be rejected")
	}
}

func TestMatch_Participant(t *testing.T) {
	m := Match{LearnerID: "a", MentorID: "b"}
	if !m.Participant("a") || !m.Participant("b") {
		t.Fatal("learner and mentor are participants")
	}
	if m.Participant("c") || m.Participant("") {
		t.Fatal("outsider is not a participant")
	}
	if m.Counterpart("a") != "b" || m.Counterpart("b") != "a" {
		t.Fatal("counterpart mismatch")
	}
}
