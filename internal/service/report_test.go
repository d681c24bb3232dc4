package service

import (
	"testing"
	"time"

	"unilms_backend/internal/model"
)

func TestBuildSessionReport(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	session := &model.LiveSession{PresentationID: 1, HostID: 10, Name: "第3讲"}
	session.ID = 5

	cp1 := testCheckpoint(1) // page 3, correct [A,B]
	cp2 := testCheckpoint(2)
	cp2.Page = 7
	cp2.CorrectIDs = []string{"C"}

	alice := &model.User{Name: "Alice", StudentNo: "2023001"}
	bob := &model.User{Name: "Bob", StudentNo: "2023002"}

	responses := []model.CheckpointResponse{
		// 顺序不同但集合相同，判为正确
		{SessionID: 5, CheckpointID: 1, UserID: 1, Selected: []string{"B", "A"}, SubmittedAt: now, User: alice},
		// 只选了一半，判为错误
		{SessionID: 5, CheckpointID: 1, UserID: 2, Selected: []string{"A"}, SubmittedAt: now, User: bob},
	}

	report := BuildSessionReport(session, []model.Checkpoint{cp1, cp2}, responses)

	if len(report.Checkpoints) != 2 {
		t.Fatalf("Checkpoints len = %d, want 2", len(report.Checkpoints))
	}

	first := report.Checkpoints[0]
	if first.Checkpoint.ID != 1 {
		t.Errorf("first checkpoint ID = %d, want 1", first.Checkpoint.ID)
	}
	if first.Responded != 2 {
		t.Errorf("Responded = %d, want 2", first.Responded)
	}
	if first.CorrectCount != 1 {
		t.Errorf("CorrectCount = %d, want 1", first.CorrectCount)
	}
	if first.Counts["A"] != 2 || first.Counts["B"] != 1 {
		t.Errorf("Counts = %v, want A:2 B:1", first.Counts)
	}

	for _, entry := range first.Responses {
		switch entry.UserID {
		case 1:
			if !entry.Correct {
				t.Error("user 1 Correct = false, want true (顺序无关)")
			}
			if entry.Name != "Alice" || entry.StudentNo != "2023001" {
				t.Errorf("user 1 identity = %s/%s", entry.Name, entry.StudentNo)
			}
		case 2:
			if entry.Correct {
				t.Error("user 2 Correct = true, want false (子集不算对)")
			}
		default:
			t.Errorf("unexpected userID %d", entry.UserID)
		}
	}

	// 无人作答的问题仍然出现在报告里，Responses为空列表而非nil
	second := report.Checkpoints[1]
	if second.Checkpoint.ID != 2 {
		t.Errorf("second checkpoint ID = %d, want 2", second.Checkpoint.ID)
	}
	if second.Responses == nil {
		t.Error("second Responses = nil, want empty slice")
	}
	if second.Responded != 0 || second.CorrectCount != 0 {
		t.Errorf("second Responded/CorrectCount = %d/%d, want 0/0", second.Responded, second.CorrectCount)
	}

	// 参与人数按去重用户计算
	if report.Participants != 2 {
		t.Errorf("Participants = %d, want 2", report.Participants)
	}
}

func TestBuildSessionReportNoResponses(t *testing.T) {
	session := &model.LiveSession{PresentationID: 1}
	report := BuildSessionReport(session, []model.Checkpoint{testCheckpoint(1)}, nil)

	if report.Participants != 0 {
		t.Errorf("Participants = %d, want 0", report.Participants)
	}
	if len(report.Checkpoints) != 1 {
		t.Fatalf("Checkpoints len = %d, want 1", len(report.Checkpoints))
	}
	if report.Checkpoints[0].Responses == nil {
		t.Error("Responses = nil, want empty slice")
	}
}

func TestGenerateJoinCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := generateJoinCode()
		if len(code) != 6 {
			t.Fatalf("len(code) = %d, want 6", len(code))
		}
		for _, r := range code {
			if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
				t.Fatalf("code %q contains invalid char %q", code, r)
			}
		}
		seen[code] = true
	}
	// uuid来源的短码几乎不可能在100次内全部相同
	if len(seen) < 2 {
		t.Error("generateJoinCode() produced no variety")
	}
}
