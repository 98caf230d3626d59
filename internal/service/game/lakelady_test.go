package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLakeLady_InitHolder(t *testing.T) {
	order := []string{"a", "b", "c", "d", "e", "f"}

	tests := []struct {
		leaderID   string
		wantHolder string
	}{
		{"c", "b"},
		{"a", "f"}, // 队长是首位时令牌绕到末位
		{"f", "e"},
	}

	for _, tt := range tests {
		tr := NewLakeLadyTracker(true)
		tr.InitHolder(order, tt.leaderID)
		assert.Equal(t, tt.wantHolder, tr.HolderID, "leader %s", tt.leaderID)
	}
}

func TestLakeLady_AvailableFor(t *testing.T) {
	tr := NewLakeLadyTracker(true)

	assert.False(t, tr.AvailableFor(1))
	assert.True(t, tr.AvailableFor(2))
	assert.True(t, tr.AvailableFor(4))

	disabled := NewLakeLadyTracker(false)
	assert.False(t, disabled.AvailableFor(2))
}

func TestLakeLady_SelectAndConfirm(t *testing.T) {
	order := []string{"a", "b", "c", "d", "e", "f"}

	tr := NewLakeLadyTracker(true)
	tr.InitHolder(order, "b") // holder = a

	assert.ErrorIs(t, tr.Select(2, "a"), ErrLakeLadySelfTarget)

	require.NoError(t, tr.Select(2, "d"))
	assert.Equal(t, "d", tr.PendingTarget())

	newHolder, err := tr.Confirm(2)
	require.NoError(t, err)

	// 确认后令牌转移到被查验者手中，本轮不能再次查验
	assert.Equal(t, "d", newHolder)
	assert.Equal(t, "d", tr.HolderID)
	assert.False(t, tr.AvailableFor(2))
	assert.True(t, tr.AvailableFor(3))
}

func TestLakeLady_SelectionLockedUntilConfirm(t *testing.T) {
	order := []string{"a", "b", "c", "d", "e", "f"}

	tr := NewLakeLadyTracker(true)
	tr.InitHolder(order, "b") // holder = a

	require.NoError(t, tr.Select(2, "c"))

	// 选定即透露结果，换目标等于一轮查验两个人
	assert.ErrorIs(t, tr.Select(2, "d"), ErrLakeLadyLocked)
	assert.Equal(t, "c", tr.PendingTarget())

	_, err := tr.Confirm(2)
	require.NoError(t, err)
}

func TestLakeLady_ConfirmWithoutSelection(t *testing.T) {
	tr := NewLakeLadyTracker(true)
	tr.InitHolder([]string{"a", "b", "c"}, "b")

	_, err := tr.Confirm(2)
	assert.ErrorIs(t, err, ErrLakeLadyNoSelection)
}

func TestLakeLady_InspectedCannotBeTargetAgain(t *testing.T) {
	order := []string{"a", "b", "c", "d", "e", "f"}

	tr := NewLakeLadyTracker(true)
	tr.InitHolder(order, "b")

	require.NoError(t, tr.Select(2, "d"))
	_, err := tr.Confirm(2)
	require.NoError(t, err)

	// d 成为新持有者后不能再查验已被查验过的座位
	assert.ErrorIs(t, tr.Select(3, "d"), ErrLakeLadySelfTarget)

	targets := tr.AvailableTargets(order)
	assert.NotContains(t, targets, "d")
}

func TestLakeLady_AvailableTargets(t *testing.T) {
	order := []string{"a", "b", "c", "d"}

	tr := NewLakeLadyTracker(true)
	tr.InitHolder(order, "b") // holder = a

	assert.ElementsMatch(t, []string{"b", "c", "d"}, tr.AvailableTargets(order))
}

func TestLakeLady_OnSeatRemoved(t *testing.T) {
	order := []string{"a", "b", "c", "d"}

	tr := NewLakeLadyTracker(true)
	tr.InitHolder(order, "b") // holder = a

	// 非持有者离场不影响令牌
	tr.OnSeatRemoved("c", order)
	assert.Equal(t, "a", tr.HolderID)

	// 持有者离场时令牌顺延给座位序列中的下一位
	tr.OnSeatRemoved("a", order)
	assert.Equal(t, "b", tr.HolderID)
}

func TestLakeLady_OnSeatRemovedClearsPendingTarget(t *testing.T) {
	order := []string{"a", "b", "c", "d"}

	tr := NewLakeLadyTracker(true)
	tr.InitHolder(order, "b")

	require.NoError(t, tr.Select(2, "c"))
	tr.OnSeatRemoved("c", order)

	assert.Empty(t, tr.PendingTarget())
}
