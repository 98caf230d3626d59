package game

import "errors"

// 投票类型
const (
	BALLOT_TEAM    = "team"
	BALLOT_MISSION = "mission"
)

var (
	ErrBallotClosed   = errors.New("当前没有进行中的投票")
	ErrNotEligible    = errors.New("你不在本轮投票的名单中")
	ErrAlreadyVoted   = errors.New("你已投票，不能重复投票")
	ErrBallotUnfilled = errors.New("投票尚未收齐")
)

// Ballot 收集一轮投票：队伍表决时全员参与，任务表决时仅队员参与。
// 非法提交不改变任何状态，结算是确定性的、无弃权无悬置
type Ballot struct {
	kind     string
	open     bool
	eligible map[string]bool
	// key: 座位 ID, value: 赞成（队伍票）或成功（任务票）
	votes map[string]bool
}

func NewBallot(kind string, voterIDs []string) *Ballot {
	eligible := make(map[string]bool, len(voterIDs))
	for _, id := range voterIDs {
		eligible[id] = true
	}

	return &Ballot{
		kind:     kind,
		open:     true,
		eligible: eligible,
		votes:    make(map[string]bool, len(voterIDs)),
	}
}

func (b *Ballot) Kind() string {
	return b.kind
}

// Submit 记录一张选票，座位不在名单中或已投过票时拒绝
func (b *Ballot) Submit(seatID string, value bool) error {
	if b == nil || !b.open {
		return ErrBallotClosed
	}
	if !b.eligible[seatID] {
		return ErrNotEligible
	}
	if _, voted := b.votes[seatID]; voted {
		return ErrAlreadyVoted
	}

	b.votes[seatID] = value
	return nil
}

func (b *Ballot) IsComplete() bool {
	return b != nil && len(b.votes) == len(b.eligible)
}

func (b *Ballot) VoteCount() int {
	if b == nil {
		return 0
	}
	return len(b.votes)
}

func (b *Ballot) EligibleCount() int {
	if b == nil {
		return 0
	}
	return len(b.eligible)
}

func (b *Ballot) ApproveCount() int {
	count := 0
	for _, v := range b.votes {
		if v {
			count++
		}
	}
	return count
}

func (b *Ballot) FailCount() int {
	count := 0
	for _, v := range b.votes {
		if !v {
			count++
		}
	}
	return count
}

// Votes 返回每个座位的投票明细副本
func (b *Ballot) Votes() map[string]bool {
	out := make(map[string]bool, len(b.votes))
	for id, v := range b.votes {
		out[id] = v
	}
	return out
}

// RemoveEligible 在投票进行中移除一个座位（座位离场时调用），
// 同时丢弃它已投出的票，使剩余玩家仍然可以凑齐投票
func (b *Ballot) RemoveEligible(seatID string) {
	if b == nil {
		return
	}
	delete(b.eligible, seatID)
	delete(b.votes, seatID)
}

// ResolveTeam 结算队伍表决：赞成票严格过半才通过，平票视为否决
func (b *Ballot) ResolveTeam(rosterSize int) (approved bool, err error) {
	if !b.IsComplete() {
		return false, ErrBallotUnfilled
	}

	b.open = false
	return b.ApproveCount() > rosterSize/2, nil
}

// ResolveMission 结算任务表决：失败票数达到阈值任务才失败
func (b *Ballot) ResolveMission(requiredFails int) (success bool, err error) {
	if !b.IsComplete() {
		return false, ErrBallotUnfilled
	}

	b.open = false
	return b.FailCount() < requiredFails, nil
}
