package models

import "time"

// Student is the author of essay submissions. Ids are assigned by the caller.
type Student struct {
	ID          uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	StudentName string    `gorm:"size:100;not null" json:"studentName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
