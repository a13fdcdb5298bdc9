package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"docapp/internal/model"
	"docapp/internal/repository"
)

// AuditLogger records duplicate-key rejections on a best-effort basis.
type AuditLogger interface {
	LogDuplicate(ctx context.Context, entityType, duplicateValue, detail string)
}

type auditLogger struct {
	repo repository.DuplicateLogRepository
	log  *logrus.Logger
	now  func() time.Time
}

// NewAuditLogger constructs an AuditLogger writing through repo.
// Write failures go to log only and are never returned.
func NewAuditLogger(repo repository.DuplicateLogRepository, log *logrus.Logger) AuditLogger {
	return &auditLogger{repo: repo, log: log, now: time.Now}
}

func (a *auditLogger) LogDuplicate(ctx context.Context, entityType, duplicateValue, detail string) {
	entry := model.DuplicateLogEntry{
		EntityType:     entityType,
		DuplicateValue: duplicateValue,
		Context:        detail,
		Timestamp:      a.now().UTC(),
	}
	fields := logrus.Fields{
		"component":       "audit",
		"entity_type":     entityType,
		"duplicate_value": duplicateValue,
		"context":         detail,
	}

	// The entry must survive the caller giving up on the request.
	if err := a.repo.Insert(context.WithoutCancel(ctx), entry); err != nil {
		a.log.WithFields(fields).WithError(err).Error("failed to log duplicate entry")
		return
	}
	a.log.WithFields(fields).Info("duplicate logged")
}
