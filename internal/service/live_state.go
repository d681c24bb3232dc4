package service

import (
	"sort"
	"sync"
	"time"

	"unilms_backend/internal/model"
	"unilms_backend/internal/util"
)

// CheckpointState 签到问题在房间内的生命周期状态
type CheckpointState string

const (
	CheckpointActive   CheckpointState = "ACTIVE"
	CheckpointTimedOut CheckpointState = "TIMED_OUT"
	CheckpointStopped  CheckpointState = "STOPPED"
)

// LiveTally 实时统计快照，广播给房间内所有成员
type LiveTally struct {
	CheckpointID uint           `json:"checkpointId"`
	Counts       map[string]int `json:"counts"` // optionID -> 选择人数
	Responded    int            `json:"responded"`
	Participants int            `json:"participants"`
}

// liveAnswer 单个成员通过socket提交的作答，保留提交时刻用于落库
type liveAnswer struct {
	Selected    []string
	SubmittedAt time.Time
}

// ActiveCheckpoint 房间内唯一进行中的问题及其共享截止时间
type ActiveCheckpoint struct {
	Checkpoint model.Checkpoint
	Deadline   time.Time
	State      CheckpointState

	counts    map[string]int
	responded map[uint]liveAnswer
}

// roomState 单个会话房间的答题状态，所有访问都经过互斥锁
type roomState struct {
	mu     sync.Mutex
	active *ActiveCheckpoint

	// 注入时间便于测试
	now func() time.Time
}

func newRoomState() *roomState {
	return &roomState{now: time.Now}
}

// RemainingSeconds 按截止时间计算剩余秒数，向上取整且不为负。
// 客户端倒计时一律基于服务端下发的deadline换算，不信任本地时钟。
func RemainingSeconds(deadline, now time.Time) int {
	ms := deadline.Sub(now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}

// Start 激活一个问题。同一房间同时只允许一个进行中的问题。
func (r *roomState) Start(cp model.Checkpoint) (*ActiveCheckpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil && r.active.State == CheckpointActive {
		return nil, util.ErrCheckpointActive
	}

	deadline := r.now().Add(time.Duration(cp.TimeLimit) * time.Second)
	r.active = &ActiveCheckpoint{
		Checkpoint: cp,
		Deadline:   deadline,
		State:      CheckpointActive,
		counts:     make(map[string]int),
		responded:  make(map[uint]liveAnswer),
	}
	return r.snapshotLocked(), nil
}

// Stop 终止当前问题。重复调用和超时后调用都是幂等的no-op。
// 返回值表示状态是否真的发生了变化。
func (r *roomState) Stop(state CheckpointState) (*ActiveCheckpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil || r.active.State != CheckpointActive {
		return r.snapshotLocked(), false
	}
	r.active.State = state
	return r.snapshotLocked(), true
}

// Submit 记录一次作答并返回最新统计。
// 校验：问题进行中、未过截止时间、选项非空且合法、每人只能提交一次。
func (r *roomState) Submit(userID uint, checkpointID uint, selected []string) (*LiveTally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil || r.active.Checkpoint.ID != checkpointID {
		return nil, util.ErrCheckpointNotActive
	}
	if r.active.State != CheckpointActive {
		return nil, util.ErrCheckpointNotActive
	}
	if !r.now().Before(r.active.Deadline) {
		return nil, util.ErrCheckpointExpired
	}
	if len(selected) == 0 {
		return nil, util.ErrEmptySelection
	}
	if _, done := r.active.responded[userID]; done {
		return nil, util.ErrAlreadySubmitted
	}

	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if !r.active.Checkpoint.HasOption(id) {
			return nil, util.ErrUnknownOption
		}
		if seen[id] {
			return nil, util.ErrUnknownOption
		}
		seen[id] = true
	}

	r.active.responded[userID] = liveAnswer{Selected: selected, SubmittedAt: r.now()}
	for _, id := range selected {
		r.active.counts[id]++
	}

	return r.tallyLocked(), nil
}

// HasResponded 该用户是否已对当前问题作答
func (r *roomState) HasResponded(userID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return false
	}
	_, ok := r.active.responded[userID]
	return ok
}

// Current 当前问题快照，没有进行中的问题时返回nil
func (r *roomState) Current() *ActiveCheckpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Tally 当前统计快照
func (r *roomState) Tally() *LiveTally {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return r.tallyLocked()
}

// Responses 当前问题的所有作答(含各自的提交时刻)，供问题关闭时批量落库
func (r *roomState) Responses() map[uint]liveAnswer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	out := make(map[uint]liveAnswer, len(r.active.responded))
	for uid, ans := range r.active.responded {
		sel := make([]string, len(ans.Selected))
		copy(sel, ans.Selected)
		out[uid] = liveAnswer{Selected: sel, SubmittedAt: ans.SubmittedAt}
	}
	return out
}

func (r *roomState) snapshotLocked() *ActiveCheckpoint {
	if r.active == nil {
		return nil
	}
	snap := *r.active
	snap.counts = nil
	snap.responded = nil
	return &snap
}

func (r *roomState) tallyLocked() *LiveTally {
	counts := make(map[string]int, len(r.active.counts))
	for k, v := range r.active.counts {
		counts[k] = v
	}
	return &LiveTally{
		CheckpointID: r.active.Checkpoint.ID,
		Counts:       counts,
		Responded:    len(r.active.responded),
	}
}

// SortedEqual 判断两个选项集合在排序后是否完全一致，
// 多选题的正确性与选择顺序无关。
func SortedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]string, len(a))
	bs := make([]string, len(b))
	copy(as, a)
	copy(bs, b)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
