package repository

import (
	"time"

	"unilms_backend/internal/model"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(s *model.LiveSession) error {
	return r.DB.Create(s).Error
}

func (r *SessionRepository) FindByID(id uint) (*model.LiveSession, error) {
	var s model.LiveSession
	err := r.DB.Preload("Presentation").First(&s, id).Error
	return &s, err
}

func (r *SessionRepository) FindByCode(code string) (*model.LiveSession, error) {
	var s model.LiveSession
	err := r.DB.Preload("Presentation").Where("code = ?", code).First(&s).Error
	return &s, err
}

func (r *SessionRepository) Update(s *model.LiveSession) error {
	return r.DB.Save(s).Error
}

func (r *SessionRepository) End(id uint) error {
	now := time.Now()
	return r.DB.Model(&model.LiveSession{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "ended_at": &now}).Error
}

func (r *SessionRepository) ListByHost(hostID uint, page, limit int) ([]model.LiveSession, int64, error) {
	var ss []model.LiveSession
	var total int64
	query := r.DB.Model(&model.LiveSession{}).Where("host_id = ?", hostID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("started_at desc").Offset(offset).Limit(limit).Find(&ss).Error
	return ss, total, err
}

// HasActiveForPresentation 该演示文稿当前是否有进行中的会话
func (r *SessionRepository) HasActiveForPresentation(presentationID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.LiveSession{}).
		Where("presentation_id = ? AND is_active = ?", presentationID, true).
		Count(&count).Error
	return count > 0, err
}

// Response related methods
func (r *SessionRepository) CreateResponse(resp *model.CheckpointResponse) error {
	return r.DB.Create(resp).Error
}

func (r *SessionRepository) FindResponse(sessionID, checkpointID, userID uint) (*model.CheckpointResponse, error) {
	var resp model.CheckpointResponse
	err := r.DB.Where("session_id = ? AND checkpoint_id = ? AND user_id = ?",
		sessionID, checkpointID, userID).First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *SessionRepository) ListResponses(sessionID uint) ([]model.CheckpointResponse, error) {
	var resps []model.CheckpointResponse
	err := r.DB.Preload("User").Where("session_id = ?", sessionID).
		Order("submitted_at asc").Find(&resps).Error
	return resps, err
}
