package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/auth"
)

// inviteCodeShelfLife is how long an unclaimed invite code stays redeemable
const inviteCodeShelfLife = 90 * 24 * time.Hour

// RolloverSessionStatuses updates every date-driven session status.
// Inactive is a manual override and is left alone.
func (m *CronManager) RolloverSessionStatuses() (string, error) {
	now := time.Now().UTC()
	updated := 0

	var sessions []model.Session
	if err := m.db.Where("status <> ?", model.SessionInactive).Find(&sessions).Error; err != nil {
		return "", err
	}

	for _, session := range sessions {
		derived := model.DeriveStatus(session.Status, session.StartDate, session.EndDate, now)
		if derived == session.Status {
			continue
		}
		err := m.db.Model(&model.Session{}).
			Where("id = ?", session.ID).
			Update("status", derived).Error
		if err != nil {
			return "", err
		}
		updated++
	}

	return fmt.Sprintf("updated %d of %d sessions", updated, len(sessions)), nil
}

// CleanupTokenBlacklist removes expired entries from the JWT blacklist
func (m *CronManager) CleanupTokenBlacklist() (string, error) {
	blacklist := auth.NewBlacklistService(m.db)
	if err := blacklist.CleanupExpiredTokens(context.Background()); err != nil {
		return "", err
	}
	return "expired blacklist entries removed", nil
}

// ExpireStaleInviteCodes deletes unclaimed invite codes older than the
// shelf life so forgotten codes cannot grant elevated roles indefinitely
func (m *CronManager) ExpireStaleInviteCodes() (string, error) {
	cutoff := time.Now().UTC().Add(-inviteCodeShelfLife)

	result := m.db.
		Where("used = ? AND created_at < ?", false, cutoff).
		Delete(&model.InviteCode{})
	if result.Error != nil {
		return "", result.Error
	}

	return fmt.Sprintf("deleted %d stale invite codes", result.RowsAffected), nil
}
