package domain

import (
	"reflect"
	"testing"
)

func TestApplyVote(t *testing.T) {
	tests := []struct {
		name  string
		votes []Vote
		user  string
		value int
		want  []Vote
	}{
		{"first vote appends", []Vote{}, "V", VoteUp, []Vote{{"V", 1}}},
		{"same value toggles off", []Vote{{"V", 1}}, "V", VoteUp, []Vote{}},
		{"opposite value flips", []Vote{{"V", 1}}, "V", VoteDown, []Vote{{"V", -1}}},
		{"other voters untouched", []Vote{{"A", 1}, {"V", -1}, {"B", -1}}, "V", VoteUp, []Vote{{"A", 1}, {"V", 1}, {"B", -1}}},
		{"nil input", nil, "V", VoteDown, []Vote{{"V", -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyVote(tt.votes, tt.user, tt.value)
			if got == nil {
				t.Fatal("ApplyVote returned nil")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ApplyVote() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyVote_DoesNotMutateInput(t *testing.T) {
	in := []Vote{{"V", 1}, {"W", -1}}
	_ = ApplyVote(in, "V", VoteDown)
	if in[0].Value != 1 || len(in) != 2 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestApplyVote_TwiceRestoresOriginal(t *testing.T) {
	start := []Vote{{"A", 1}, {"B", -1}}
	for _, value := range []int{VoteUp, VoteDown} {
		got := ApplyVote(ApplyVote(start, "V", value), "V", value)
		if !reflect.DeepEqual(got, start) {
			t.Errorf("value %d: got %v, want %v", value, got, start)
		}
	}
}

func TestApplyVote_Sequence(t *testing.T) {
	// up, up, down, up, down from one voter ends with a single downvote
	votes := []Vote{}
	for _, value := range []int{VoteUp, VoteUp, VoteDown, VoteUp, VoteDown} {
		votes = ApplyVote(votes, "V", value)
		if n := SumVotes(votes); n < -1 || n > 1 {
			t.Fatalf("net votes out of range: %d", n)
		}
	}

	if got := SumVotes(votes); got != -1 {
		t.Errorf("SumVotes() = %d, want -1", got)
	}
	if !reflect.DeepEqual(votes, []Vote{{"V", -1}}) {
		t.Errorf("votes = %v, want [{V -1}]", votes)
	}
}

func TestVoteValue(t *testing.T) {
	for in, want := range map[string]int{"upvote": 1, "up": 1, "downvote": -1, "down": -1} {
		got, ok := VoteValue(in)
		if !ok || got != want {
			t.Errorf("VoteValue(%q) = %d, %v", in, got, ok)
		}
	}
	if _, ok := VoteValue("sideways"); ok {
		t.Error("VoteValue accepted an unknown direction")
	}
}
