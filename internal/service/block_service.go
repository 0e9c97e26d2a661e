package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/lock"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/repository"
)

type CreateBlockInput struct {
	WalkerID   uuid.UUID
	Start      time.Time
	End        time.Time
	Reason     string
	IsBlocking bool

	RecurrenceRule    *string
	RecurrenceGroupID *uuid.UUID
}

type BlockService struct {
	db      *gorm.DB
	locker  lock.Locker
	lockTTL time.Duration
	log     *zap.Logger
}

func NewBlockService(db *gorm.DB, locker lock.Locker, lockTTL time.Duration, log *zap.Logger) *BlockService {
	if log == nil {
		log = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &BlockService{db: db, locker: locker, lockTTL: lockTTL, log: log}
}

// Create stores one block. A blocking block may not overlap another
// blocking block of the same walker; informational blocks are never
// checked.
func (s *BlockService) Create(ctx context.Context, in CreateBlockInput) (*model.Block, error) {
	if in.WalkerID == uuid.Nil {
		return nil, validationf("walker_id is required")
	}
	interval, err := calendar.NewTimeRange(in.Start, in.End)
	if err != nil {
		return nil, validationf("end must be after start")
	}

	release, err := lock.Acquire(ctx, s.locker, walkerLockKey(in.WalkerID), s.lockTTL, s.lockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return nil, conflict(ReasonWalkerBusy)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release walker lock", zap.Stringer("walker_id", in.WalkerID), zap.Error(err))
		}
	}()

	var block *model.Block
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repository.NewGormWalkerRepository(tx).GetByID(ctx, in.WalkerID); errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("walker %s: %w", in.WalkerID, ErrNotFound)
		} else if err != nil {
			return fmt.Errorf("load walker: %w", err)
		}

		blocks := repository.NewGormBlockRepository(tx)
		if in.IsBlocking {
			existing, err := blocks.ListBlockingByWalkerRange(ctx, in.WalkerID, interval.Start, interval.End)
			if err != nil {
				return fmt.Errorf("load blocks: %w", err)
			}
			if len(existing) > 0 {
				return conflict(ReasonBlockOverlap)
			}
		}

		b := &model.Block{
			WalkerID:          in.WalkerID,
			StartTime:         interval.Start,
			EndTime:           interval.End,
			Reason:            in.Reason,
			IsBlocking:        in.IsBlocking,
			RecurrenceRule:    in.RecurrenceRule,
			RecurrenceGroupID: in.RecurrenceGroupID,
		}
		if err := blocks.Create(ctx, b); err != nil {
			return fmt.Errorf("insert block: %w", err)
		}

		if err := repository.NewGormEventRepository(tx).Create(ctx, &model.Event{
			EventType: model.EventTypeBlockCreated,
			WalkerID:  &b.WalkerID,
			BlockID:   &b.ID,
			Details:   b.Reason,
		}); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		block = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}
