package game

import "errors"

// 湖中女神从第 2 轮任务开始可用
const LAKE_LADY_MIN_MISSION = 2

var (
	ErrLakeLadySelfTarget  = errors.New("不能查验自己的阵营")
	ErrLakeLadyUsed        = errors.New("本轮任务已经使用过湖中女神")
	ErrLakeLadyInspected   = errors.New("该玩家已经被查验过")
	ErrLakeLadyNoSelection = errors.New("尚未选择查验目标")
	ErrLakeLadyLocked      = errors.New("本轮已选定查验目标，不能更换")
)

// LakeLadyTracker 管理湖中女神令牌：持有者、每轮一次的使用限制，
// 以及确认后令牌转移到被查验者手中的轮换规则
type LakeLadyTracker struct {
	Enabled  bool   `json:"enabled"`
	HolderID string `json:"holder_id"`

	// 已经使用过湖中女神的任务轮次
	usedMissions map[int]bool
	// 曾被查验过的座位，不能再次成为目标
	inspected map[string]bool
	// 当前轮已选定、等待确认的目标
	pendingTarget string
}

func NewLakeLadyTracker(enabled bool) *LakeLadyTracker {
	return &LakeLadyTracker{
		Enabled:      enabled,
		usedMissions: make(map[int]bool),
		inspected:    make(map[string]bool),
	}
}

// InitHolder 游戏开局时调用：令牌从首任队长在座位序列上的前一位开始
func (t *LakeLadyTracker) InitHolder(order []string, leaderID string) {
	if len(order) == 0 {
		return
	}

	for i, id := range order {
		if id == leaderID {
			t.HolderID = order[(i-1+len(order))%len(order)]
			return
		}
	}

	t.HolderID = order[len(order)-1]
}

// AvailableFor 判断第 mission 轮任务结束后是否应进入湖中女神阶段
func (t *LakeLadyTracker) AvailableFor(mission int) bool {
	return t != nil && t.Enabled &&
		mission >= LAKE_LADY_MIN_MISSION &&
		!t.usedMissions[mission]
}

// AvailableTargets 返回可查验的座位，排除持有者自己和已查验过的座位
func (t *LakeLadyTracker) AvailableTargets(order []string) []string {
	targets := make([]string, 0, len(order))
	for _, id := range order {
		if id == t.HolderID || t.inspected[id] {
			continue
		}
		targets = append(targets, id)
	}
	return targets
}

// Select 登记查验目标，等待持有者确认。
// 选定即锁定：结果在选定时就会透露给持有者，所以不允许换目标
func (t *LakeLadyTracker) Select(mission int, targetID string) error {
	if t.usedMissions[mission] {
		return ErrLakeLadyUsed
	}
	if t.pendingTarget != "" {
		return ErrLakeLadyLocked
	}
	if targetID == t.HolderID {
		return ErrLakeLadySelfTarget
	}
	if t.inspected[targetID] {
		return ErrLakeLadyInspected
	}

	t.pendingTarget = targetID
	return nil
}

func (t *LakeLadyTracker) PendingTarget() string {
	return t.pendingTarget
}

// Confirm 确认本次查验：标记本轮已使用，令牌转移给被查验者
func (t *LakeLadyTracker) Confirm(mission int) (newHolder string, err error) {
	if t.pendingTarget == "" {
		return "", ErrLakeLadyNoSelection
	}

	target := t.pendingTarget
	t.usedMissions[mission] = true
	t.inspected[target] = true
	t.pendingTarget = ""
	t.HolderID = target

	return target, nil
}

// OnSeatRemoved 座位离场时的令牌善后：持有者离开则令牌顺延给下一个座位
func (t *LakeLadyTracker) OnSeatRemoved(seatID string, order []string) {
	if t == nil {
		return
	}

	if t.pendingTarget == seatID {
		t.pendingTarget = ""
	}

	if t.HolderID != seatID {
		return
	}

	for i, id := range order {
		if id == seatID {
			t.HolderID = order[(i+1)%len(order)]
			if t.HolderID == seatID {
				// 只剩这一个座位
				t.HolderID = ""
			}
			return
		}
	}

	// 座位已不在序列中，随便指定序列首位兜底
	if len(order) > 0 {
		t.HolderID = order[0]
	} else {
		t.HolderID = ""
	}
}
