package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// AuditMirror receives a copy of every committed audit entry.
type AuditMirror interface {
	Publish(ctx context.Context, entry domain.AuditEntry) error
}

// AuditLedger is the append-only record of state-changing decisions.
type AuditLedger struct {
	repo    repository.AuditRepository
	mirrors []AuditMirror
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditLedger creates the ledger. Mirrors are optional.
func NewAuditLedger(repo repository.AuditRepository, logger *zap.Logger, mirrors ...AuditMirror) *AuditLedger {
	return &AuditLedger{
		repo:    repo,
		mirrors: mirrors,
		logger:  logger.Named("audit"),
		now:     time.Now,
	}
}

// Record appends entry and returns its id. Only the primary write can fail the
// call; mirror errors are logged and counted.
func (l *AuditLedger) Record(ctx context.Context, entry domain.AuditEntry) (string, error) {
	if entry.IssueID == "" {
		return "", errors.New("audit entry requires an issue id")
	}
	if entry.ActorID == "" {
		entry.ActorID = domain.SystemActor
	}
	if entry.Detail == nil {
		entry.Detail = map[string]any{}
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = l.now().UTC()

	if err := l.repo.Create(ctx, &entry); err != nil {
		return "", fmt.Errorf("append audit entry: %w", err)
	}

	for _, mirror := range l.mirrors {
		if err := mirror.Publish(ctx, entry); err != nil {
			observability.AuditWriteFailures.WithLabelValues("mirror").Inc()
			l.logger.Warn("audit mirror write failed",
				zap.String("audit_id", entry.ID),
				zap.String("issue_id", entry.IssueID),
				zap.Error(err))
		}
	}
	return entry.ID, nil
}

// History returns entries for one issue or one actor, newest first.
func (l *AuditLedger) History(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	if (q.IssueID == "") == (q.ActorID == "") {
		return nil, errors.New("audit history requires exactly one of issue or actor")
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultHistoryLimit
	case q.Limit > maxHistoryLimit:
		q.Limit = maxHistoryLimit
	}
	return l.repo.List(ctx, q)
}
