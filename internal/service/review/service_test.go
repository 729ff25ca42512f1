package review

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository/memory"
	apperrors "github.com/homebase/referral-api/pkg/errors"
	"github.com/homebase/referral-api/pkg/logger"
)

func newService(t *testing.T) (*Service, *memory.ReviewFlagRepository) {
	t.Helper()
	flags := memory.NewReviewFlagRepository()
	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	return NewService(flags, log), flags
}

func seedOpenFlag(flags *memory.ReviewFlagRepository) *model.ReviewFlag {
	flag := &model.ReviewFlag{
		ID:       uuid.New(),
		ReviewID: uuid.New(),
		Status:   model.ReviewFlagOpen,
	}
	flags.Seed(flag)
	return flag
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("upholds an open flag", func(t *testing.T) {
		svc, flags := newService(t)
		flag := seedOpenFlag(flags)

		resolved, err := svc.Resolve(ctx, flag.ID, model.ReviewFlagUpheld, "confirmed spam")
		require.NoError(t, err)
		assert.Equal(t, model.ReviewFlagUpheld, resolved.Status)
		assert.Equal(t, "confirmed spam", resolved.Notes)

		stored, err := svc.Get(ctx, flag.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReviewFlagUpheld, stored.Status)
	})

	t.Run("dismisses an open flag", func(t *testing.T) {
		svc, flags := newService(t)
		flag := seedOpenFlag(flags)

		resolved, err := svc.Resolve(ctx, flag.ID, model.ReviewFlagDismissed, "reporter mistaken")
		require.NoError(t, err)
		assert.Equal(t, model.ReviewFlagDismissed, resolved.Status)
	})

	t.Run("resolved flags resolve exactly once", func(t *testing.T) {
		svc, flags := newService(t)
		flag := seedOpenFlag(flags)

		_, err := svc.Resolve(ctx, flag.ID, model.ReviewFlagUpheld, "spam")
		require.NoError(t, err)

		_, err = svc.Resolve(ctx, flag.ID, model.ReviewFlagDismissed, "changed my mind")
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("open is not a resolution", func(t *testing.T) {
		svc, flags := newService(t)
		flag := seedOpenFlag(flags)

		_, err := svc.Resolve(ctx, flag.ID, model.ReviewFlagOpen, "")
		assert.Error(t, err)
	})

	t.Run("unknown flag", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Resolve(ctx, uuid.New(), model.ReviewFlagUpheld, "spam")
		assert.True(t, apperrors.IsNotFound(err))
	})
}
