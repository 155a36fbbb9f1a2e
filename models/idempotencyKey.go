package models

import "time"

// IdempotencyKey provides durable, DB-backed deduplication for mutating
// coordinator operations. Unique constraint: (handler_name, request_key).
// The row is inserted inside the operation's own transaction, so its
// presence always means the operation committed; an aborted attempt leaves
// no row behind.
type IdempotencyKey struct {
	ID          int       `gorm:"primary_key" json:"id"`
	HandlerName string    `gorm:"size:100;not null;index:uniq_idem,unique" json:"handler_name"`
	RequestKey  string    `gorm:"size:255;not null;index:uniq_idem,unique" json:"request_key"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
