package model

import "time"

// InteractionLog is the durable analytics row written for every answered
// query. Feedback callbacks update the row in place.
type InteractionLog struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	InteractionID        string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"interactionId"`
	ChatID               string    `gorm:"type:varchar(64);index;not null" json:"chatId"`
	Question             string    `gorm:"type:text;not null" json:"question"`
	PreprocessedQuestion string    `gorm:"type:text" json:"preprocessedQuestion"`
	Answer               string    `gorm:"type:text;not null" json:"answer"`
	SourceKeys           string    `gorm:"type:text" json:"sourceKeys"` // comma-separated object keys
	Feedback             string    `gorm:"type:varchar(16)" json:"feedback"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (InteractionLog) TableName() string {
	return "interaction_logs"
}
