package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"OrgVerify/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxAssignAttempts bounds retries when another process wins the
// conditional update on the same admin.
const maxAssignAttempts = 5

// AdminBalancer hands new support threads to the least recently assigned
// available admin. It owns the availability columns of the admins table.
type AdminBalancer struct {
	db  *gorm.DB
	mu  sync.Mutex
	now func() time.Time
}

func NewAdminBalancer(db *gorm.DB) *AdminBalancer {
	return &AdminBalancer{db: db, now: time.Now}
}

// Assign picks an admin for requester. ok is false when nobody is available.
func (b *AdminBalancer) Assign(ctx context.Context, requester models.ActorRef) (profile *models.AdminProfile, ok bool, err error) {
	if requester.Kind != models.KindEndUser {
		return nil, false, fmt.Errorf("only end users request support: %w", ErrForbidden)
	}

	// 同进程内串行化；跨进程依赖 last_assigned_at 条件更新
	b.mu.Lock()
	defer b.mu.Unlock()

	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		var admin *models.Admin
		err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var candidate models.Admin
			err := tx.Where("is_available = ? AND role = ?", true, models.RoleAdmin).
				Order("last_assigned_at IS NOT NULL").
				Order("last_assigned_at ASC").
				Order("id ASC").
				First(&candidate).Error
			if err != nil {
				return err
			}

			stamp := b.nextStamp(candidate.LastAssignedAt)
			update := tx.Model(&models.Admin{}).Where("id = ? AND is_available = ?", candidate.ID, true)
			if candidate.LastAssignedAt == nil {
				update = update.Where("last_assigned_at IS NULL")
			} else {
				update = update.Where("last_assigned_at = ?", *candidate.LastAssignedAt)
			}
			result := update.Update("last_assigned_at", stamp)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errLostRace
			}

			chat := models.AdminActiveChat{AdminID: candidate.ID, UserID: requester.ID, CreatedAt: stamp}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&chat).Error; err != nil {
				return err
			}

			candidate.LastAssignedAt = &stamp
			admin = &candidate
			return nil
		})

		switch {
		case err == nil:
			log.Info().
				Uint("admin_id", admin.ID).
				Str("requester", requester.String()).
				Time("last_assigned_at", *admin.LastAssignedAt).
				Msg("support thread assigned")
			return admin.Profile(), true, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, false, nil
		case errors.Is(err, errLostRace):
			log.Debug().Int("attempt", attempt+1).Msg("admin assignment lost race, retrying")
			continue
		default:
			return nil, false, storeErr("assign admin", err)
		}
	}
	return nil, false, storeErr("assign admin", errLostRace)
}

var errLostRace = errors.New("admin record changed concurrently")

// nextStamp returns now at microsecond precision (what postgres keeps),
// nudged forward so the admin's timestamp strictly advances.
func (b *AdminBalancer) nextStamp(prev *time.Time) time.Time {
	stamp := b.now().UTC().Truncate(time.Microsecond)
	if prev != nil && !stamp.After(*prev) {
		stamp = prev.Add(time.Microsecond)
	}
	return stamp
}

func (b *AdminBalancer) SetAvailability(ctx context.Context, adminID uint, available bool) (*models.Admin, error) {
	var admin models.Admin
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&admin, adminID).Error; err != nil {
			return err
		}
		admin.IsAvailable = available
		return tx.Model(&admin).Update("is_available", available).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("admin %d: %w", adminID, ErrNotFound)
		}
		return nil, storeErr("set availability", err)
	}
	return &admin, nil
}

// ActiveChats lists the user ids currently routed to adminID.
func (b *AdminBalancer) ActiveChats(ctx context.Context, adminID uint) ([]uint, error) {
	ids := make([]uint, 0)
	err := b.db.WithContext(ctx).Model(&models.AdminActiveChat{}).
		Where("admin_id = ?", adminID).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, storeErr("active chats", err)
	}
	return ids, nil
}
