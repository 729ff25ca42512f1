package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository"
	apperrors "github.com/homebase/referral-api/pkg/errors"
	"github.com/homebase/referral-api/pkg/logger"
)

// Service resolves review fraud flags. Same status-transition-with-notes
// convention as the referral fraud void: open flags resolve exactly once.
type Service struct {
	flags  repository.ReviewFlagRepository
	logger *logger.Logger
}

func NewService(flags repository.ReviewFlagRepository, logger *logger.Logger) *Service {
	return &Service{flags: flags, logger: logger}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.ReviewFlag, error) {
	return s.flags.Get(ctx, id)
}

// Resolve transitions an open flag to upheld or dismissed, recording the
// moderator's notes.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, status model.ReviewFlagStatus, notes string) (*model.ReviewFlag, error) {
	if status != model.ReviewFlagUpheld && status != model.ReviewFlagDismissed {
		return nil, apperrors.BadRequest(fmt.Sprintf("cannot transition flag to %q", status), nil)
	}

	flag, err := s.flags.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if flag.Status != model.ReviewFlagOpen {
		return nil, apperrors.Conflict(fmt.Sprintf("flag already resolved as %s", flag.Status), nil)
	}

	if err := s.flags.UpdateStatus(ctx, id, status, notes); err != nil {
		return nil, err
	}

	flag.Status = status
	flag.Notes = notes
	s.logger.Info("review flag resolved",
		"flag_id", id.String(),
		"status", string(status),
	)
	return flag, nil
}
