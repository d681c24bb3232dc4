package model

import (
	"time"
)

// swagger:model LiveSession
type LiveSession struct {
	BaseModel
	PresentationID   uint       `gorm:"index;type:bigint unsigned" json:"presentationId"`
	HostID           uint       `gorm:"index;type:bigint unsigned" json:"hostId"`
	Name             string     `gorm:"size:255;not null" json:"name"`
	Code             string     `gorm:"size:8;uniqueIndex" json:"code"` // 学生加入用的短码
	IsActive         bool       `gorm:"default:true" json:"isActive"`
	StartedAt        time.Time  `json:"startedAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	RecordingURL     string     `gorm:"size:500" json:"recordingUrl,omitempty"`
	RecordingSeconds float64    `gorm:"default:0" json:"recordingSeconds,omitempty"`

	Presentation *Presentation `gorm:"foreignKey:PresentationID" json:"presentation,omitempty"`
}

func (LiveSession) TableName() string {
	return "live_sessions"
}

// CheckpointResponse 一名学生对一次会话中某个问题的作答
// (session, checkpoint, user) 三元组唯一
type CheckpointResponse struct {
	BaseModel
	SessionID    uint      `gorm:"uniqueIndex:idx_session_checkpoint_user;type:bigint unsigned" json:"sessionId"`
	CheckpointID uint      `gorm:"uniqueIndex:idx_session_checkpoint_user;type:bigint unsigned" json:"checkpointId"`
	UserID       uint      `gorm:"uniqueIndex:idx_session_checkpoint_user;type:bigint unsigned" json:"userId"`
	Selected     []string  `gorm:"type:json;serializer:json" json:"selected"`
	SubmittedAt  time.Time `json:"submittedAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (CheckpointResponse) TableName() string {
	return "checkpoint_responses"
}
