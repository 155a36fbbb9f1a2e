package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/utils"
	"gorm.io/gorm"
)

// AuditLog is the append-only trail of every mutation to a tracked entity.
// One row is written inside the same transaction as the mutation it describes,
// so audit and domain state cannot diverge under rollback.
type AuditLog struct {
	ID            int         `gorm:"primary_key" json:"id"`
	ActorKind     ActorKind   `gorm:"type:enum('User','Employee');not null;index" json:"actor_kind"`
	ActorId       int         `gorm:"not null;index" json:"actor_id"`
	ActorName     string      `gorm:"size:100" json:"actor_name"`
	Action        AuditAction `gorm:"type:enum('CREATE','UPDATE','DELETE','LOGIN','LOGOUT');not null;index" json:"action"`
	ReferenceType string      `gorm:"size:255;index:idx_audit_ref,priority:1" json:"reference_type"`
	ReferenceID   int         `gorm:"index:idx_audit_ref,priority:2" json:"reference_id"`
	Before        string      `gorm:"type:text" json:"before"`
	After         string      `gorm:"type:text" json:"after"`
	Description   string      `gorm:"type:text" json:"description"`
	Ip            string      `gorm:"size:45" json:"ip"`
	UserAgent     string      `gorm:"size:255" json:"user_agent"`
	CorrelationId string      `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
}

func (obj AuditLog) GetId() int {
	return obj.ID
}

// Audit rows are append-only.

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("append-only audit log: entries cannot be updated")
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return errors.New("append-only audit log: entries cannot be deleted")
}

func createAudit(tx *gorm.DB,
	action AuditAction,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) (err error) {

	var audit AuditLog

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	ctx := tx.Statement.Context
	// actor context is mandatory on every mutating call
	actorId, ok := utils.GetActorIdFromContext(ctx)
	if !ok {
		return errors.New("actor id is required")
	}
	actorKind, ok := utils.GetActorKindFromContext(ctx)
	if !ok || !ActorKind(actorKind).Valid() {
		return errors.New("actor kind is required")
	}
	actorName, _ := utils.GetActorNameFromContext(ctx)
	ip, _ := utils.GetClientIpFromContext(ctx)
	userAgent, _ := utils.GetUserAgentFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	audit.ActorKind = ActorKind(actorKind)
	audit.ActorId = actorId
	audit.ActorName = actorName
	audit.Action = action
	audit.ReferenceType = referenceType
	audit.ReferenceID = referenceId
	audit.Before = string(b)
	audit.After = string(a)
	audit.Description = description
	audit.Ip = ip
	audit.UserAgent = userAgent
	audit.CorrelationId = correlationId

	err = tx.Create(&audit).Error
	return err
}

func SaveAuditCreate(tx *gorm.DB, referenceType string, id int, obj interface{}, description string) error {
	return createAudit(tx, AuditActionCreate, id, referenceType, nil, obj, description)
}

func SaveAuditUpdate(tx *gorm.DB, referenceType string, id int, before interface{}, after interface{}, description string) error {
	return createAudit(tx, AuditActionUpdate, id, referenceType, before, after, description)
}

func SaveAuditDelete(tx *gorm.DB, referenceType string, id int, obj interface{}, description string) error {
	return createAudit(tx, AuditActionDelete, id, referenceType, obj, nil, description)
}

// RecordLoginAudit and RecordLogoutAudit are invoked by the (external) session
// layer; they share the same append-only trail.
func RecordLoginAudit(ctx context.Context) (*AuditLog, error) {
	return recordSessionAudit(ctx, AuditActionLogin, "logged in")
}

func RecordLogoutAudit(ctx context.Context) (*AuditLog, error) {
	return recordSessionAudit(ctx, AuditActionLogout, "logged out")
}

func recordSessionAudit(ctx context.Context, action AuditAction, description string) (*AuditLog, error) {
	actorId, ok := utils.GetActorIdFromContext(ctx)
	if !ok {
		return nil, errors.New("actor id is required")
	}
	actorKind, ok := utils.GetActorKindFromContext(ctx)
	if !ok || !ActorKind(actorKind).Valid() {
		return nil, errors.New("actor kind is required")
	}
	actorName, _ := utils.GetActorNameFromContext(ctx)
	ip, _ := utils.GetClientIpFromContext(ctx)
	userAgent, _ := utils.GetUserAgentFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	audit := AuditLog{
		ActorKind:     ActorKind(actorKind),
		ActorId:       actorId,
		ActorName:     actorName,
		Action:        action,
		Description:   actorName + " " + description,
		Ip:            ip,
		UserAgent:     userAgent,
		CorrelationId: correlationId,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&audit).Error; err != nil {
		return nil, err
	}
	return &audit, nil
}

// GetAuditLogs returns trail entries filtered by entity, actor and date range,
// newest first.
func GetAuditLogs(ctx context.Context, referenceType *string, referenceId *int, actorId *int, action *AuditAction, fromDate *time.Time, toDate *time.Time) ([]*AuditLog, error) {

	db := config.GetDB()
	var results []*AuditLog

	dbCtx := db.WithContext(ctx)
	if referenceType != nil && len(*referenceType) > 0 {
		dbCtx = dbCtx.Where("reference_type = ?", *referenceType)
	}
	if referenceId != nil && *referenceId > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", *referenceId)
	}
	if actorId != nil && *actorId > 0 {
		dbCtx = dbCtx.Where("actor_id = ?", *actorId)
	}
	if action != nil && *action != "" {
		dbCtx = dbCtx.Where("action = ?", *action)
	}
	if fromDate != nil && toDate != nil {
		dbCtx = dbCtx.Where("created_at BETWEEN ? AND ?", *fromDate, *toDate)
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
