package models

import "time"

// CacheAction names a management operation on the cache
type CacheAction string

const (
	ActionClear     CacheAction = "clear"
	ActionPattern   CacheAction = "pattern"
	ActionTimeRange CacheAction = "timerange"
	ActionCoin      CacheAction = "coin"
	ActionCleanup   CacheAction = "cleanup"
	ActionJanitor   CacheAction = "janitor"
)

// CacheEvent is one audited management operation
type CacheEvent struct {
	ID        string      `json:"id" gorm:"primaryKey"`
	Action    CacheAction `json:"action" gorm:"not null;index"`
	Selector  string      `json:"selector,omitempty"`
	Removed   int         `json:"removed"`
	FullWipe  bool        `json:"fullWipe,omitempty"`
	Actor     string      `json:"actor,omitempty"`
	CreatedAt time.Time   `json:"createdAt" gorm:"index"`
}

// TableName specifies the table name for CacheEvent Model
func (CacheEvent) TableName() string {
	return "cache_events"
}
