package repository

import (
	"unilms_backend/internal/model"

	"gorm.io/gorm"
)

type PresentationRepository struct {
	DB *gorm.DB
}

func NewPresentationRepository(db *gorm.DB) *PresentationRepository {
	return &PresentationRepository{DB: db}
}

func (r *PresentationRepository) Create(p *model.Presentation) error {
	return r.DB.Create(p).Error
}

func (r *PresentationRepository) FindByID(id uint) (*model.Presentation, error) {
	var p model.Presentation
	err := r.DB.First(&p, id).Error
	return &p, err
}

// FindByIDWithCheckpoints 预加载签到问题，按页码排序
func (r *PresentationRepository) FindByIDWithCheckpoints(id uint) (*model.Presentation, error) {
	var p model.Presentation
	err := r.DB.Preload("Checkpoints", func(db *gorm.DB) *gorm.DB {
		return db.Order("page asc, id asc")
	}).First(&p, id).Error
	return &p, err
}

func (r *PresentationRepository) ListByOwner(ownerID uint, page, limit int) ([]model.Presentation, int64, error) {
	var ps []model.Presentation
	var total int64
	query := r.DB.Model(&model.Presentation{}).Where("owner_id = ?", ownerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ps).Error
	return ps, total, err
}

func (r *PresentationRepository) Update(p *model.Presentation) error {
	return r.DB.Save(p).Error
}

func (r *PresentationRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Presentation{}, id).Error
}

// Checkpoint related methods
func (r *PresentationRepository) CreateCheckpoint(c *model.Checkpoint) error {
	return r.DB.Create(c).Error
}

func (r *PresentationRepository) FindCheckpointByID(id uint) (*model.Checkpoint, error) {
	var c model.Checkpoint
	err := r.DB.First(&c, id).Error
	return &c, err
}

func (r *PresentationRepository) ListCheckpoints(presentationID uint) ([]model.Checkpoint, error) {
	var cs []model.Checkpoint
	err := r.DB.Where("presentation_id = ?", presentationID).
		Order("page asc, id asc").Find(&cs).Error
	return cs, err
}

func (r *PresentationRepository) UpdateCheckpoint(c *model.Checkpoint) error {
	return r.DB.Save(c).Error
}

func (r *PresentationRepository) DeleteCheckpoint(id uint) error {
	return r.DB.Delete(&model.Checkpoint{}, id).Error
}
