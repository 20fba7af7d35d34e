package models

import "reflect"

// AuditAction tags what happened in an audit entry.
type AuditAction string

const (
	AuditActionCreate   AuditAction = "create"
	AuditActionUpdate   AuditAction = "update"
	AuditActionDelete   AuditAction = "delete"
	AuditActionStockIn  AuditAction = "stock_in"
	AuditActionStockOut AuditAction = "stock_out"
	AuditActionApprove  AuditAction = "approve"
	AuditActionReject   AuditAction = "reject"
	AuditActionWithdraw AuditAction = "withdraw"
)

// FieldChange holds the before and after value of one field.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// ChangeSet maps field names to their change.
type ChangeSet map[string]FieldChange

// Diff returns the fields whose values differ between before and after.
// A nil map on either side records a creation or a deletion.
func Diff(before, after map[string]interface{}) ChangeSet {
	cs := ChangeSet{}
	for k, oldV := range before {
		newV, ok := after[k]
		if !ok || !reflect.DeepEqual(oldV, newV) {
			cs[k] = FieldChange{Old: oldV, New: newV}
		}
	}
	for k, newV := range after {
		if _, ok := before[k]; !ok {
			cs[k] = FieldChange{Old: nil, New: newV}
		}
	}
	if len(cs) == 0 {
		return nil
	}
	return cs
}

// AuditLog records administrative actions for forensic reconstruction.
// ActorID is nil for system actions.
type AuditLog struct {
	LogBase
	ActorID      *string     `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	Action       AuditAction `gorm:"not null;index" json:"action"`
	ResourceType string      `gorm:"index:idx_audit_logs_resource" json:"resource_type,omitempty"`
	ResourceID   string      `gorm:"index:idx_audit_logs_resource" json:"resource_id,omitempty"`
	Changes      ChangeSet   `gorm:"serializer:json;type:text" json:"changes,omitempty"`
	Description  string      `gorm:"type:text" json:"description"`
}
