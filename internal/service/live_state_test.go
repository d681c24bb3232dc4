package service

import (
	"testing"
	"time"

	"unilms_backend/internal/model"
	"unilms_backend/internal/util"
)

func testCheckpoint(id uint) model.Checkpoint {
	cp := model.Checkpoint{
		PresentationID: 1,
		Page:           3,
		Question:       "下列哪些属于排序算法？",
		Options: []model.CheckpointOption{
			{ID: "A", Label: "快速排序"},
			{ID: "B", Label: "归并排序"},
			{ID: "C", Label: "二分查找"},
		},
		CorrectIDs: []string{"A", "B"},
		TimeLimit:  60,
	}
	cp.ID = id
	return cp
}

func TestRemainingSeconds(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline time.Time
		now      time.Time
		want     int
	}{
		{name: "整秒", deadline: base.Add(30 * time.Second), now: base, want: 30},
		{name: "不足一秒向上取整", deadline: base.Add(29*time.Second + 500*time.Millisecond), now: base, want: 30},
		{name: "刚好到期", deadline: base, now: base, want: 0},
		{name: "已过期不为负", deadline: base, now: base.Add(5 * time.Second), want: 0},
		{name: "剩一毫秒算一秒", deadline: base.Add(time.Millisecond), now: base, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingSeconds(tt.deadline, tt.now); got != tt.want {
				t.Errorf("RemainingSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRoomStateStart(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := newRoomState()
	r.now = func() time.Time { return base }

	active, err := r.Start(testCheckpoint(1))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if want := base.Add(60 * time.Second); !active.Deadline.Equal(want) {
		t.Errorf("Deadline = %v, want %v", active.Deadline, want)
	}
	if active.State != CheckpointActive {
		t.Errorf("State = %v, want %v", active.State, CheckpointActive)
	}

	// 同一房间不允许第二个进行中的问题
	if _, err := r.Start(testCheckpoint(2)); err != util.ErrCheckpointActive {
		t.Errorf("Start() second error = %v, want %v", err, util.ErrCheckpointActive)
	}

	// 停止后可以再次激活
	r.Stop(CheckpointStopped)
	if _, err := r.Start(testCheckpoint(2)); err != nil {
		t.Errorf("Start() after stop error = %v", err)
	}
}

func TestRoomStateSubmit(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		setup    func(r *roomState)
		userID   uint
		cpID     uint
		selected []string
		wantErr  error
	}{
		{
			name:     "单选提交",
			userID:   1,
			cpID:     1,
			selected: []string{"A"},
		},
		{
			name:     "多选提交",
			userID:   1,
			cpID:     1,
			selected: []string{"A", "C"},
		},
		{
			name:     "空选择",
			userID:   1,
			cpID:     1,
			selected: nil,
			wantErr:  util.ErrEmptySelection,
		},
		{
			name:     "未知选项",
			userID:   1,
			cpID:     1,
			selected: []string{"D"},
			wantErr:  util.ErrUnknownOption,
		},
		{
			name:     "选项重复",
			userID:   1,
			cpID:     1,
			selected: []string{"A", "A"},
			wantErr:  util.ErrUnknownOption,
		},
		{
			name:     "问题ID不匹配",
			userID:   1,
			cpID:     99,
			selected: []string{"A"},
			wantErr:  util.ErrCheckpointNotActive,
		},
		{
			name: "重复提交",
			setup: func(r *roomState) {
				if _, err := r.Submit(1, 1, []string{"B"}); err != nil {
					t.Fatalf("setup Submit() error = %v", err)
				}
			},
			userID:   1,
			cpID:     1,
			selected: []string{"A"},
			wantErr:  util.ErrAlreadySubmitted,
		},
		{
			name: "超过截止时间",
			setup: func(r *roomState) {
				r.now = func() time.Time { return base.Add(61 * time.Second) }
			},
			userID:   1,
			cpID:     1,
			selected: []string{"A"},
			wantErr:  util.ErrCheckpointExpired,
		},
		{
			name: "已停止的问题",
			setup: func(r *roomState) {
				r.Stop(CheckpointStopped)
			},
			userID:   1,
			cpID:     1,
			selected: []string{"A"},
			wantErr:  util.ErrCheckpointNotActive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoomState()
			r.now = func() time.Time { return base }
			if _, err := r.Start(testCheckpoint(1)); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if tt.setup != nil {
				tt.setup(r)
			}

			_, err := r.Submit(tt.userID, tt.cpID, tt.selected)
			if err != tt.wantErr {
				t.Errorf("Submit() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("没有进行中的问题", func(t *testing.T) {
		r := newRoomState()
		if _, err := r.Submit(1, 1, []string{"A"}); err != util.ErrCheckpointNotActive {
			t.Errorf("Submit() error = %v, want %v", err, util.ErrCheckpointNotActive)
		}
	})
}

func TestRoomStateTally(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := newRoomState()
	r.now = func() time.Time { return base }
	if _, err := r.Start(testCheckpoint(1)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := r.Submit(1, 1, []string{"A", "B"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := r.Submit(2, 1, []string{"A"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	tally, err := r.Submit(3, 1, []string{"C"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if tally.Responded != 3 {
		t.Errorf("Responded = %d, want 3", tally.Responded)
	}
	wantCounts := map[string]int{"A": 2, "B": 1, "C": 1}
	for id, want := range wantCounts {
		if tally.Counts[id] != want {
			t.Errorf("Counts[%s] = %d, want %d", id, tally.Counts[id], want)
		}
	}

	// 快照不应暴露内部map
	tally.Counts["A"] = 100
	if got := r.Tally().Counts["A"]; got != 2 {
		t.Errorf("Counts[A] after mutation = %d, want 2", got)
	}
}

func TestRoomStateStopIdempotent(t *testing.T) {
	r := newRoomState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	if _, err := r.Start(testCheckpoint(1)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	active, changed := r.Stop(CheckpointTimedOut)
	if !changed {
		t.Fatal("Stop() changed = false, want true")
	}
	if active.State != CheckpointTimedOut {
		t.Errorf("State = %v, want %v", active.State, CheckpointTimedOut)
	}

	// 重复停止是no-op，终态不被覆盖
	active, changed = r.Stop(CheckpointStopped)
	if changed {
		t.Error("Stop() second changed = true, want false")
	}
	if active.State != CheckpointTimedOut {
		t.Errorf("State after second stop = %v, want %v", active.State, CheckpointTimedOut)
	}
}

func TestRoomStateResponses(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	r := newRoomState()
	r.now = func() time.Time { return clock }
	if _, err := r.Start(testCheckpoint(1)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	clock = base.Add(5 * time.Second)
	if _, err := r.Submit(7, 1, []string{"B", "A"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	clock = base.Add(20 * time.Second)
	if _, err := r.Submit(8, 1, []string{"C"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	clock = base.Add(60 * time.Second)
	r.Stop(CheckpointTimedOut)

	// 关闭后作答记录仍然可读，供落库
	responses := r.Responses()
	if len(responses) != 2 {
		t.Fatalf("Responses() len = %d, want 2", len(responses))
	}
	if got := responses[7].Selected; len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Errorf("Responses()[7].Selected = %v, want [B A]", got)
	}

	// 每条作答保留自己的提交时刻，不取关闭时刻
	if got, want := responses[7].SubmittedAt, base.Add(5*time.Second); !got.Equal(want) {
		t.Errorf("Responses()[7].SubmittedAt = %v, want %v", got, want)
	}
	if got, want := responses[8].SubmittedAt, base.Add(20*time.Second); !got.Equal(want) {
		t.Errorf("Responses()[8].SubmittedAt = %v, want %v", got, want)
	}
	if responses[7].SubmittedAt.Equal(responses[8].SubmittedAt) {
		t.Error("两条作答的提交时刻不应相同")
	}
}

func TestSortedEqual(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		want bool
	}{
		{name: "相同顺序", a: []string{"A", "B"}, b: []string{"A", "B"}, want: true},
		{name: "不同顺序", a: []string{"B", "A"}, b: []string{"A", "B"}, want: true},
		{name: "子集", a: []string{"A"}, b: []string{"A", "B"}, want: false},
		{name: "超集", a: []string{"A", "B", "C"}, b: []string{"A", "B"}, want: false},
		{name: "完全不同", a: []string{"C"}, b: []string{"A"}, want: false},
		{name: "都为空", a: nil, b: nil, want: true},
		{name: "一边为空", a: []string{"A"}, b: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SortedEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("SortedEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
