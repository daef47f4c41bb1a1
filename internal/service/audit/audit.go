package audit

import (
	"context"

	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Service persists and queries the request audit trail.
// Records are append-only: nothing here updates or deletes them.
type Service struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *Service {
	return &Service{storage: storage}
}

func (s *Service) Record(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error) {
	return s.storage.Audit().Create(ctx, record)
}

// List returns a filtered page of records, newest first, with the total
// count of records matching the filter. Limit is clamped.
func (s *Service) List(ctx context.Context, opts repository.ListAuditOpts) ([]models.AuditRecord, int64, error) {
	if opts.Limit < 1 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	return s.storage.Audit().List(ctx, opts)
}
