package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"unilms_backend/internal/model"
	"unilms_backend/internal/repository"
	"unilms_backend/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionService 处理直播会话的业务逻辑
type SessionService struct {
	SessionRepo      *repository.SessionRepository
	PresentationRepo *repository.PresentationRepository
	Storage          *StorageService
}

func NewSessionService(
	sessionRepo *repository.SessionRepository,
	presentationRepo *repository.PresentationRepository,
	storage *StorageService,
) *SessionService {
	return &SessionService{
		SessionRepo:      sessionRepo,
		PresentationRepo: presentationRepo,
		Storage:          storage,
	}
}

type CreateSessionRequest struct {
	PresentationID uint   `json:"presentationId" binding:"required"`
	Name           string `json:"name" binding:"required,max=255"`
}

type SubmitResponseRequest struct {
	CheckpointID uint     `json:"checkpointId" binding:"required"`
	Selected     []string `json:"selected" binding:"required,min=1"`
}

// generateJoinCode 生成6位大写短码供学生加入
func generateJoinCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:6])
}

// Create 开启一场直播会话。同一份演示文稿同时只允许一场进行中的会话。
func (s *SessionService) Create(hostID uint, isAdmin bool, req *CreateSessionRequest) (*model.LiveSession, error) {
	p, err := s.PresentationRepo.FindByID(req.PresentationID)
	if err != nil {
		return nil, util.ErrPresentationNotFound
	}
	if p.OwnerID != hostID && !isAdmin {
		return nil, util.ErrPermissionDenied
	}

	active, err := s.SessionRepo.HasActiveForPresentation(req.PresentationID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, util.ErrCheckpointLocked
	}

	session := &model.LiveSession{
		PresentationID: req.PresentationID,
		HostID:         hostID,
		Name:           req.Name,
		IsActive:       true,
		StartedAt:      time.Now(),
	}

	// 短码撞上唯一索引时重试
	for i := 0; i < 5; i++ {
		session.Code = generateJoinCode()
		if err = s.SessionRepo.Create(session); err == nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("生成会话短码失败: %v", err)
}

func (s *SessionService) Get(id uint) (*model.LiveSession, error) {
	session, err := s.SessionRepo.FindByID(id)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrSessionNotFound
	}
	return session, err
}

// Join 学生通过短码加入，只返回进行中的会话
func (s *SessionService) Join(code string) (*model.LiveSession, error) {
	session, err := s.SessionRepo.FindByCode(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, util.ErrSessionNotFound
	}
	if !session.IsActive {
		return nil, util.ErrSessionEnded
	}
	return session, nil
}

func (s *SessionService) ListByHost(hostID uint, page, limit int) ([]model.LiveSession, int64, error) {
	return s.SessionRepo.ListByHost(hostID, page, limit)
}

// End 结束会话，幂等
func (s *SessionService) End(id, userID uint, isAdmin bool) (*model.LiveSession, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if session.HostID != userID && !isAdmin {
		return nil, util.ErrPermissionDenied
	}
	if !session.IsActive {
		return session, nil
	}

	if err := s.SessionRepo.End(id); err != nil {
		return nil, err
	}
	return s.Get(id)
}

// FindCheckpointForSession 校验问题属于该会话绑定的演示文稿
func (s *SessionService) FindCheckpointForSession(session *model.LiveSession, checkpointID uint) (*model.Checkpoint, error) {
	cp, err := s.PresentationRepo.FindCheckpointByID(checkpointID)
	if err != nil || cp.PresentationID != session.PresentationID {
		return nil, util.ErrCheckpointNotFound
	}
	return cp, nil
}

// SubmitResponse REST提交路径：会话进行中即可提交，不受答题窗口约束，
// 供断线重连后补交。去重与选项合法性照常校验。
func (s *SessionService) SubmitResponse(sessionID, userID uint, req *SubmitResponseRequest) (*model.CheckpointResponse, error) {
	session, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, util.ErrSessionEnded
	}

	cp, err := s.FindCheckpointForSession(session, req.CheckpointID)
	if err != nil {
		return nil, err
	}

	if len(req.Selected) == 0 {
		return nil, util.ErrEmptySelection
	}
	seen := make(map[string]bool, len(req.Selected))
	for _, id := range req.Selected {
		if !cp.HasOption(id) || seen[id] {
			return nil, util.ErrUnknownOption
		}
		seen[id] = true
	}

	if _, err := s.SessionRepo.FindResponse(sessionID, req.CheckpointID, userID); err == nil {
		return nil, util.ErrAlreadySubmitted
	}

	resp := &model.CheckpointResponse{
		SessionID:    sessionID,
		CheckpointID: req.CheckpointID,
		UserID:       userID,
		Selected:     req.Selected,
		SubmittedAt:  time.Now(),
	}
	if err := s.SessionRepo.CreateResponse(resp); err != nil {
		// 并发提交落在唯一索引上
		return nil, util.ErrAlreadySubmitted
	}
	return resp, nil
}

// ReportEntry 单个学生对单个问题的作答结果
type ReportEntry struct {
	UserID      uint      `json:"userId"`
	Name        string    `json:"name"`
	StudentNo   string    `json:"studentNo"`
	Selected    []string  `json:"selected"`
	Correct     bool      `json:"correct"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// CheckpointReport 单个问题的汇总，无人作答时Responses为空列表
type CheckpointReport struct {
	Checkpoint   model.Checkpoint `json:"checkpoint"`
	Responses    []ReportEntry    `json:"responses"`
	Counts       map[string]int   `json:"counts"`
	Responded    int              `json:"responded"`
	CorrectCount int              `json:"correctCount"`
}

// SessionReport 会话结束后的完整报告
type SessionReport struct {
	Session      *model.LiveSession `json:"session"`
	Checkpoints  []CheckpointReport `json:"checkpoints"`
	Participants int                `json:"participants"` // 作答过的去重人数
}

// BuildSessionReport 纯函数，问题按页码顺序排列，
// 正确性按排序后的集合相等判断，与选择顺序无关。
func BuildSessionReport(session *model.LiveSession, checkpoints []model.Checkpoint, responses []model.CheckpointResponse) *SessionReport {
	byCheckpoint := make(map[uint][]model.CheckpointResponse)
	participants := make(map[uint]bool)
	for _, r := range responses {
		byCheckpoint[r.CheckpointID] = append(byCheckpoint[r.CheckpointID], r)
		participants[r.UserID] = true
	}

	reports := make([]CheckpointReport, 0, len(checkpoints))
	for _, cp := range checkpoints {
		report := CheckpointReport{
			Checkpoint: cp,
			Responses:  []ReportEntry{},
			Counts:     make(map[string]int),
		}
		for _, r := range byCheckpoint[cp.ID] {
			entry := ReportEntry{
				UserID:      r.UserID,
				Selected:    r.Selected,
				Correct:     SortedEqual(r.Selected, cp.CorrectIDs),
				SubmittedAt: r.SubmittedAt,
			}
			if r.User != nil {
				entry.Name = r.User.Name
				entry.StudentNo = r.User.StudentNo
			}
			if entry.Correct {
				report.CorrectCount++
			}
			for _, id := range r.Selected {
				report.Counts[id]++
			}
			report.Responses = append(report.Responses, entry)
		}
		report.Responded = len(report.Responses)
		reports = append(reports, report)
	}

	return &SessionReport{
		Session:      session,
		Checkpoints:  reports,
		Participants: len(participants),
	}
}

// Report 生成会话报告，会话仍在进行中时拒绝
func (s *SessionService) Report(sessionID, userID uint, isAdmin bool) (*SessionReport, error) {
	session, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session.HostID != userID && !isAdmin {
		return nil, util.ErrPermissionDenied
	}
	if session.IsActive {
		return nil, util.ErrSessionStillActive
	}

	checkpoints, err := s.PresentationRepo.ListCheckpoints(session.PresentationID)
	if err != nil {
		return nil, err
	}
	responses, err := s.SessionRepo.ListResponses(sessionID)
	if err != nil {
		return nil, err
	}

	return BuildSessionReport(session, checkpoints, responses), nil
}

// AttachRecording 上传课堂录像：先落到临时文件探测时长，再交给存储后端
func (s *SessionService) AttachRecording(ctx context.Context, sessionID, userID uint, isAdmin bool, header *multipart.FileHeader) (*model.LiveSession, error) {
	session, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session.HostID != userID && !isAdmin {
		return nil, util.ErrPermissionDenied
	}
	if session.IsActive {
		return nil, util.ErrSessionStillActive
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, e := range util.AllowedRecordingExtensions {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, util.ErrRecordingNotSupported
	}

	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "recording-*"+ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		return nil, err
	}

	info, err := util.ProbeRecording(tmp.Name())
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("recordings/%d/%s%s", sessionID, model.GenerateUUID(), ext)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = util.MimeOctetStream
	}
	url, err := s.Storage.UploadFile(ctx, filename, tmp.Name(), contentType)
	if err != nil {
		return nil, err
	}

	session.RecordingURL = url
	session.RecordingSeconds = info.Duration
	if err := s.SessionRepo.Update(session); err != nil {
		return nil, err
	}
	return session, nil
}
