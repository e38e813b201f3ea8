package models

import "time"

// Event is a couple's event session: the root entity every answer, swipe and
// request hangs off. Created on the first setup-stage submission and updated
// in place by stage transitions and field edits. Never hard-deleted here;
// deletion is an admin-side concern.
type Event struct {
	ID          string `gorm:"primaryKey;size:32" json:"id"`
	ShareToken  string `gorm:"size:64;uniqueIndex" json:"shareToken"`
	Type        string `gorm:"size:32;default:wedding" json:"type"`
	CoupleNames string `gorm:"size:128" json:"coupleNames"`
	EventDate   string `gorm:"size:32" json:"eventDate"`
	Venue       string `gorm:"size:128" json:"venue"`
	Phone       string `gorm:"size:20;index" json:"phone"`
	DJID        string `gorm:"size:32;index" json:"djId"`
	// CurrentStage is one of the five questionnaire stages (0-4). Advances
	// by completing a stage; explicit rollback at stage boundaries is legal
	// and overwrites, not branches, the stored value.
	CurrentStage int       `gorm:"default:0" json:"currentStage"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
