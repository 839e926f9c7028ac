package models

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Endpoint{},
		&BlacklistEntry{},
		&ApprovalRequest{},
		&AuditEvent{},
		&NotificationProvider{},
	}
}
