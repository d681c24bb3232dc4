package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"unilms_backend/internal/config"
	"unilms_backend/internal/model"
	"unilms_backend/internal/repository"
	"unilms_backend/internal/util"

	"gorm.io/gorm"
)

// PresentationService 处理演示文稿与签到问题的业务逻辑
type PresentationService struct {
	PresentationRepo *repository.PresentationRepository
	SessionRepo      *repository.SessionRepository
	Storage          *StorageService
	Cfg              *config.Config
}

func NewPresentationService(
	presentationRepo *repository.PresentationRepository,
	sessionRepo *repository.SessionRepository,
	storage *StorageService,
	cfg *config.Config,
) *PresentationService {
	return &PresentationService{
		PresentationRepo: presentationRepo,
		SessionRepo:      sessionRepo,
		Storage:          storage,
		Cfg:              cfg,
	}
}

type CreatePresentationRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	PageCount   int    `json:"pageCount" binding:"omitempty,min=1"`
}

type UpdatePresentationRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	PageCount   int    `json:"pageCount" binding:"omitempty,min=1"`
}

type CheckpointRequest struct {
	Page       int                      `json:"page" binding:"required,min=1"`
	Question   string                   `json:"question" binding:"required"`
	Options    []model.CheckpointOption `json:"options" binding:"required,min=2"`
	CorrectIDs []string                 `json:"correctAnswer" binding:"required,min=1"`
	TimeLimit  int                      `json:"timeLimit" binding:"required,min=5"`
}

func (s *PresentationService) Create(ownerID uint, req *CreatePresentationRequest) (*model.Presentation, error) {
	p := &model.Presentation{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     ownerID,
		PageCount:   req.PageCount,
	}
	if err := s.PresentationRepo.Create(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get 返回完整文稿(含正确答案)，仅限所有者或管理员查看
func (s *PresentationService) Get(id, userID uint, isAdmin bool) (*model.Presentation, error) {
	if _, err := s.mustOwn(id, userID, isAdmin); err != nil {
		return nil, err
	}
	p, err := s.PresentationRepo.FindByIDWithCheckpoints(id)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrPresentationNotFound
	}
	return p, err
}

func (s *PresentationService) List(ownerID uint, page, limit int) ([]model.Presentation, int64, error) {
	return s.PresentationRepo.ListByOwner(ownerID, page, limit)
}

func (s *PresentationService) Update(id, userID uint, isAdmin bool, req *UpdatePresentationRequest) (*model.Presentation, error) {
	p, err := s.mustOwn(id, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	p.Title = req.Title
	p.Description = req.Description
	if req.PageCount > 0 {
		p.PageCount = req.PageCount
	}
	if err := s.PresentationRepo.Update(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PresentationService) Delete(id, userID uint, isAdmin bool) error {
	if _, err := s.mustOwn(id, userID, isAdmin); err != nil {
		return err
	}

	locked, err := s.SessionRepo.HasActiveForPresentation(id)
	if err != nil {
		return err
	}
	if locked {
		return util.ErrCheckpointLocked
	}

	return s.PresentationRepo.Delete(id)
}

// UploadDeck 上传课件文件并回填元信息
func (s *PresentationService) UploadDeck(ctx context.Context, id, userID uint, isAdmin bool, header *multipart.FileHeader) (*model.Presentation, error) {
	p, err := s.mustOwn(id, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, e := range util.AllowedDeckExtensions {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("不支持的课件格式: %s", ext)
	}

	if ct := header.Header.Get("Content-Type"); ct != "" && ct != util.MimeOctetStream {
		switch ct {
		case util.MimePDF, util.MimePPT, util.MimePPTX:
		default:
			return nil, fmt.Errorf("不支持的课件类型: %s", ct)
		}
	}

	uploaded, err := s.Storage.UploadMultipart(ctx, "decks", header)
	if err != nil {
		return nil, err
	}

	p.FileURL = uploaded.URL
	p.FileSize = uploaded.Size
	p.FileType = uploaded.Type
	if err := s.PresentationRepo.Update(p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateCheckpoint 新建签到问题，进行中的会话会锁定整份演示文稿
func (s *PresentationService) CreateCheckpoint(presentationID, userID uint, isAdmin bool, req *CheckpointRequest) (*model.Checkpoint, error) {
	p, err := s.mustOwn(presentationID, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUnlocked(presentationID); err != nil {
		return nil, err
	}

	if err := s.validateCheckpoint(p, req); err != nil {
		return nil, err
	}

	c := &model.Checkpoint{
		PresentationID: presentationID,
		Page:           req.Page,
		Question:       req.Question,
		Options:        req.Options,
		CorrectIDs:     req.CorrectIDs,
		TimeLimit:      req.TimeLimit,
	}
	if err := s.PresentationRepo.CreateCheckpoint(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PresentationService) UpdateCheckpoint(presentationID, checkpointID, userID uint, isAdmin bool, req *CheckpointRequest) (*model.Checkpoint, error) {
	p, err := s.mustOwn(presentationID, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	c, err := s.PresentationRepo.FindCheckpointByID(checkpointID)
	if err != nil || c.PresentationID != presentationID {
		return nil, util.ErrCheckpointNotFound
	}

	if err := s.ensureUnlocked(presentationID); err != nil {
		return nil, err
	}

	if err := s.validateCheckpoint(p, req); err != nil {
		return nil, err
	}

	c.Page = req.Page
	c.Question = req.Question
	c.Options = req.Options
	c.CorrectIDs = req.CorrectIDs
	c.TimeLimit = req.TimeLimit
	if err := s.PresentationRepo.UpdateCheckpoint(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PresentationService) DeleteCheckpoint(presentationID, checkpointID, userID uint, isAdmin bool) error {
	if _, err := s.mustOwn(presentationID, userID, isAdmin); err != nil {
		return err
	}

	c, err := s.PresentationRepo.FindCheckpointByID(checkpointID)
	if err != nil || c.PresentationID != presentationID {
		return util.ErrCheckpointNotFound
	}

	if err := s.ensureUnlocked(presentationID); err != nil {
		return err
	}

	return s.PresentationRepo.DeleteCheckpoint(checkpointID)
}

// ListCheckpoints 返回含正确答案的问题列表，仅限所有者或管理员查看
func (s *PresentationService) ListCheckpoints(presentationID, userID uint, isAdmin bool) ([]model.Checkpoint, error) {
	if _, err := s.mustOwn(presentationID, userID, isAdmin); err != nil {
		return nil, err
	}
	return s.PresentationRepo.ListCheckpoints(presentationID)
}

func (s *PresentationService) mustOwn(id, userID uint, isAdmin bool) (*model.Presentation, error) {
	p, err := s.PresentationRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrPresentationNotFound
	}
	if p.OwnerID != userID && !isAdmin {
		return nil, util.ErrPermissionDenied
	}
	return p, nil
}

func (s *PresentationService) ensureUnlocked(presentationID uint) error {
	locked, err := s.SessionRepo.HasActiveForPresentation(presentationID)
	if err != nil {
		return err
	}
	if locked {
		return util.ErrCheckpointLocked
	}
	return nil
}

// validateCheckpoint 校验问题定义：页码范围、选项、正确答案、时长
func (s *PresentationService) validateCheckpoint(p *model.Presentation, req *CheckpointRequest) error {
	if p.PageCount > 0 && req.Page > p.PageCount {
		return fmt.Errorf("页码 %d 超出课件总页数 %d", req.Page, p.PageCount)
	}

	seen := make(map[string]bool, len(req.Options))
	for _, o := range req.Options {
		if o.ID == "" || o.Label == "" {
			return fmt.Errorf("选项必须包含id和label")
		}
		if seen[o.ID] {
			return fmt.Errorf("选项ID重复: %s", o.ID)
		}
		seen[o.ID] = true
	}

	correctSeen := make(map[string]bool, len(req.CorrectIDs))
	for _, id := range req.CorrectIDs {
		if !seen[id] {
			return fmt.Errorf("正确答案 %s 不在选项列表中", id)
		}
		if correctSeen[id] {
			return fmt.Errorf("正确答案重复: %s", id)
		}
		correctSeen[id] = true
	}

	if req.TimeLimit > s.Cfg.Live.MaxTimeLimit {
		return fmt.Errorf("答题时长超过上限 %d 秒", s.Cfg.Live.MaxTimeLimit)
	}
	return nil
}
