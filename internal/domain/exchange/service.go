package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) SearchRecords(ctx context.Context, p SearchParams, limit, offset int) ([]*Record, int, error) {
	return s.repo.Search(ctx, p, limit, offset)
}

// DeleteRecord marks the record Deleted. The row itself is kept.
func (s *Service) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := rec.MarkDeleted(s.now()); err != nil {
		return err
	}
	return s.repo.Update(ctx, rec)
}
