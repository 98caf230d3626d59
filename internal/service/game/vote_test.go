package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ballotWithVotes(kind string, votes map[string]bool) *Ballot {
	ids := make([]string, 0, len(votes))
	for id := range votes {
		ids = append(ids, id)
	}

	b := NewBallot(kind, ids)
	for id, v := range votes {
		if err := b.Submit(id, v); err != nil {
			panic(err)
		}
	}
	return b
}

func TestBallot_Submit(t *testing.T) {
	b := NewBallot(BALLOT_TEAM, []string{"a", "b", "c"})

	require.NoError(t, b.Submit("a", true))

	assert.ErrorIs(t, b.Submit("a", false), ErrAlreadyVoted)
	assert.ErrorIs(t, b.Submit("x", true), ErrNotEligible)

	// 非法提交不改变已有选票
	assert.Equal(t, 1, b.VoteCount())
	assert.True(t, b.Votes()["a"])
}

func TestBallot_SubmitAfterResolve(t *testing.T) {
	b := ballotWithVotes(BALLOT_TEAM, map[string]bool{"a": true, "b": false})

	_, err := b.ResolveTeam(2)
	require.NoError(t, err)

	assert.ErrorIs(t, b.Submit("a", true), ErrBallotClosed)
}

func TestResolveTeam_StrictMajority(t *testing.T) {
	tests := []struct {
		rosterSize int
		approves   int
		want       bool
	}{
		{6, 4, true},
		{6, 3, false}, // 平票视为否决
		{6, 2, false},
		{7, 4, true},
		{7, 3, false},
		{12, 7, true},
		{12, 6, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.approves, tt.rosterSize), func(t *testing.T) {
			votes := make(map[string]bool, tt.rosterSize)
			for i := 0; i < tt.rosterSize; i++ {
				votes[fmt.Sprintf("p%d", i)] = i < tt.approves
			}

			b := ballotWithVotes(BALLOT_TEAM, votes)

			approved, err := b.ResolveTeam(tt.rosterSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, approved)
		})
	}
}

func TestResolveTeam_Unfilled(t *testing.T) {
	b := NewBallot(BALLOT_TEAM, []string{"a", "b"})
	require.NoError(t, b.Submit("a", true))

	_, err := b.ResolveTeam(2)
	assert.ErrorIs(t, err, ErrBallotUnfilled)
}

func TestResolveMission_FailThreshold(t *testing.T) {
	tests := []struct {
		name          string
		votes         map[string]bool
		requiredFails int
		wantSuccess   bool
	}{
		{
			name:          "no fails",
			votes:         map[string]bool{"a": true, "b": true, "c": true},
			requiredFails: 1,
			wantSuccess:   true,
		},
		{
			name:          "one fail meets threshold",
			votes:         map[string]bool{"a": true, "b": false, "c": true},
			requiredFails: 1,
			wantSuccess:   false,
		},
		{
			// 8 人局第 4 轮任务：一张失败票不够
			name:          "one fail below double threshold",
			votes:         map[string]bool{"a": true, "b": false, "c": true, "d": true, "e": true},
			requiredFails: 2,
			wantSuccess:   true,
		},
		{
			name:          "two fails meet double threshold",
			votes:         map[string]bool{"a": true, "b": false, "c": false, "d": true, "e": true},
			requiredFails: 2,
			wantSuccess:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ballotWithVotes(BALLOT_MISSION, tt.votes)

			success, err := b.ResolveMission(tt.requiredFails)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, success)
		})
	}
}

func TestRemoveEligible_AllowsCompletion(t *testing.T) {
	b := NewBallot(BALLOT_TEAM, []string{"a", "b", "c"})
	require.NoError(t, b.Submit("a", true))
	require.NoError(t, b.Submit("b", true))

	// c 离场后投票即视为收齐，且它已投的票会被一并丢弃
	assert.False(t, b.IsComplete())
	b.RemoveEligible("c")
	assert.True(t, b.IsComplete())

	approved, err := b.ResolveTeam(2)
	require.NoError(t, err)
	assert.True(t, approved)
}

func TestRemoveEligible_DropsCastVote(t *testing.T) {
	b := NewBallot(BALLOT_MISSION, []string{"a", "b"})
	require.NoError(t, b.Submit("a", false))

	b.RemoveEligible("a")

	assert.Equal(t, 0, b.FailCount())
	assert.Equal(t, 1, b.EligibleCount())
}
