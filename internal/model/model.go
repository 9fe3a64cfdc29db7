// Package model defines the render log persisted with GORM and the JSON
// shapes returned by the school API.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringArray is a custom type for storing string arrays in SQLite
type StringArray []string

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, s)
}

// JSONMap is a custom type for storing JSON maps in SQLite
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, j)
}

// RenderStatus is the outcome of a render invocation
type RenderStatus string

const (
	RenderStatusSuccess RenderStatus = "success"
	RenderStatusFailed  RenderStatus = "failed"
)

// RenderSource identifies what triggered a render
type RenderSource string

const (
	RenderSourceCLI RenderSource = "cli"
	RenderSourceAPI RenderSource = "api"
)

// RenderLog records one render invocation. Document bodies are never stored.
type RenderLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Document identification
	DocumentID string `gorm:"size:20;index" json:"document_id,omitempty"` // xid, empty on failure
	Kind       string `gorm:"size:32;not null;index" json:"kind"`
	Title      string `gorm:"size:255" json:"title"`
	SubjectID  string `gorm:"size:64;index" json:"subject_id,omitempty"` // contract, guardian, gradebook or student id

	// Outcome
	Status   RenderStatus `gorm:"size:20;not null;index" json:"status"`
	Error    string       `gorm:"type:text" json:"error,omitempty"`
	Pages    int          `json:"pages"`
	Degraded bool         `json:"degraded"`
	Missing  StringArray  `gorm:"type:text" json:"missing,omitempty"` // placeholders left unresolved

	// Delivery
	Source     RenderSource `gorm:"size:20;not null;default:api" json:"source"`
	Sink       string       `gorm:"size:20" json:"sink,omitempty"`
	DurationMs int64        `json:"duration_ms"`
	Meta       JSONMap      `gorm:"type:text" json:"meta,omitempty"`
}

// TableName specifies the table name for RenderLog
func (RenderLog) TableName() string {
	return "render_logs"
}

// RenderLogQuery represents query parameters for listing render logs
type RenderLogQuery struct {
	Kind   string       `json:"kind,omitempty"`
	Status RenderStatus `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// AllModels returns every model migrated into the render log database
func AllModels() []interface{} {
	return []interface{}{
		&RenderLog{},
	}
}
