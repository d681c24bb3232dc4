package service

import (
	"testing"

	"unilms_backend/internal/config"
	"unilms_backend/internal/model"
)

func TestValidateCheckpoint(t *testing.T) {
	svc := &PresentationService{
		Cfg: &config.Config{Live: config.LiveConfig{MaxTimeLimit: 600}},
	}
	deck := &model.Presentation{Title: "算法导论", PageCount: 30}

	valid := func() *CheckpointRequest {
		return &CheckpointRequest{
			Page:     5,
			Question: "时间复杂度是多少？",
			Options: []model.CheckpointOption{
				{ID: "A", Label: "O(n)"},
				{ID: "B", Label: "O(n log n)"},
			},
			CorrectIDs: []string{"B"},
			TimeLimit:  60,
		}
	}

	tests := []struct {
		name    string
		mutate  func(req *CheckpointRequest)
		wantErr bool
	}{
		{name: "合法定义", mutate: func(req *CheckpointRequest) {}},
		{
			name:    "页码超出总页数",
			mutate:  func(req *CheckpointRequest) { req.Page = 31 },
			wantErr: true,
		},
		{
			name: "选项ID重复",
			mutate: func(req *CheckpointRequest) {
				req.Options = append(req.Options, model.CheckpointOption{ID: "A", Label: "重复"})
			},
			wantErr: true,
		},
		{
			name: "选项缺少label",
			mutate: func(req *CheckpointRequest) {
				req.Options[0].Label = ""
			},
			wantErr: true,
		},
		{
			name:    "正确答案不在选项中",
			mutate:  func(req *CheckpointRequest) { req.CorrectIDs = []string{"C"} },
			wantErr: true,
		},
		{
			name:    "正确答案重复",
			mutate:  func(req *CheckpointRequest) { req.CorrectIDs = []string{"B", "B"} },
			wantErr: true,
		},
		{
			name:   "多个正确答案",
			mutate: func(req *CheckpointRequest) { req.CorrectIDs = []string{"A", "B"} },
		},
		{
			name:    "时长超过上限",
			mutate:  func(req *CheckpointRequest) { req.TimeLimit = 601 },
			wantErr: true,
		},
		{
			name: "未设置总页数时不校验页码",
			mutate: func(req *CheckpointRequest) {
				req.Page = 9999
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)

			p := deck
			if tt.name == "未设置总页数时不校验页码" {
				p = &model.Presentation{Title: "无页数"}
			}

			err := svc.validateCheckpoint(p, req)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateCheckpoint() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckpointHasOption(t *testing.T) {
	cp := testCheckpoint(1)
	if !cp.HasOption("A") {
		t.Error("HasOption(A) = false, want true")
	}
	if cp.HasOption("Z") {
		t.Error("HasOption(Z) = true, want false")
	}
}
