package model

// CheckpointOption 单个选项，选项ID由前端生成（如 "A"、"B" 或 uuid）
type CheckpointOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// swagger:model Presentation
type Presentation struct {
	BaseModel
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	OwnerID     uint         `gorm:"index;type:bigint unsigned" json:"ownerId"`
	FileURL     string       `gorm:"size:500" json:"fileUrl"`
	FileSize    int64        `gorm:"default:0" json:"fileSize"`
	FileType    string       `gorm:"size:100" json:"fileType"` // MIME
	PageCount   int          `gorm:"default:0" json:"pageCount"`
	Checkpoints []Checkpoint `gorm:"foreignKey:PresentationID" json:"checkpoints,omitempty"`
}

func (Presentation) TableName() string {
	return "presentations"
}

// Checkpoint 绑定到具体页码的签到问题，会话进行期间不可修改
type Checkpoint struct {
	BaseModel
	PresentationID uint               `gorm:"index;type:bigint unsigned" json:"presentationId"`
	Page           int                `gorm:"not null" json:"page"`
	Question       string             `gorm:"type:text;not null" json:"question"`
	Options        []CheckpointOption `gorm:"type:json;serializer:json" json:"options"`
	CorrectIDs     []string           `gorm:"type:json;serializer:json" json:"correctAnswer"`
	TimeLimit      int                `gorm:"default:60" json:"timeLimit"` // Seconds
}

func (Checkpoint) TableName() string {
	return "checkpoints"
}

// HasOption 校验选项ID是否属于该问题
func (c *Checkpoint) HasOption(optionID string) bool {
	for _, o := range c.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}
