package models

import (
	"encoding/json"
	"time"
)

// Answer is a couple's answer to a single question. Unique per
// (event, question); re-answering overwrites rather than appends.
type Answer struct {
	ID         string `gorm:"primaryKey;size:32" json:"id"`
	EventID    string `gorm:"size:32;not null;uniqueIndex:idx_event_question" json:"eventId"`
	QuestionID string `gorm:"size:64;not null;uniqueIndex:idx_event_question" json:"questionId"`
	// Value is the JSON-encoded answer: a string, an array of strings, or a
	// number depending on the question type.
	Value      string    `gorm:"type:json" json:"value"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// EncodeValue marshals an answer value (string, []string or number) into the
// Value column.
func (a *Answer) EncodeValue(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.Value = string(data)
	return nil
}

// DecodeValue unmarshals the Value column into out.
func (a *Answer) DecodeValue(out interface{}) error {
	if a.Value == "" {
		return nil
	}
	return json.Unmarshal([]byte(a.Value), out)
}
