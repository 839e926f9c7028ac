package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/models"
)

// BlacklistService stores the per-account set of commands that require approval.
// Matching is exact and case-sensitive on the whole command string.
type BlacklistService struct {
	db *gorm.DB
}

func NewBlacklistService(db *gorm.DB) *BlacklistService {
	return &BlacklistService{db: db}
}

// Get returns the account's blacklisted commands sorted lexically. An unknown
// account simply has an empty list.
func (s *BlacklistService) Get(ctx context.Context, accountID string) ([]string, error) {
	commands := []string{}
	if err := s.db.WithContext(ctx).Model(&models.BlacklistEntry{}).
		Where("account_id = ?", accountID).
		Order("command asc").
		Pluck("command", &commands).Error; err != nil {
		return nil, fmt.Errorf("get blacklist: %w", err)
	}
	return commands, nil
}

// Replace swaps the account's whole blacklist in one transaction so readers never
// see a partial list. Entries are trimmed and deduplicated and empty ones dropped.
// It returns the stored list, sorted.
func (s *BlacklistService) Replace(ctx context.Context, accountID, actor string, commands []string) ([]string, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, ErrMissingFields
	}
	normalized := NormalizeCommands(commands)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := replaceBlacklist(tx, accountID, normalized); err != nil {
			return err
		}
		return recordAudit(tx, &models.AuditEvent{
			AccountID: accountID,
			Actor:     actor,
			Action:    AuditBlacklistReplace,
			Target:    accountID,
			Details:   strings.Join(normalized, ","),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("replace blacklist: %w", err)
	}
	return normalized, nil
}

// Contains reports whether command is blacklisted for the account.
func (s *BlacklistService) Contains(ctx context.Context, accountID, command string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.BlacklistEntry{}).
		Where("account_id = ? AND command = ?", accountID, command).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return count > 0, nil
}

// NormalizeCommands trims, deduplicates and sorts a command list, dropping empty entries.
func NormalizeCommands(commands []string) []string {
	seen := make(map[string]struct{}, len(commands))
	out := make([]string, 0, len(commands))
	for _, cmd := range commands {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		if _, ok := seen[cmd]; ok {
			continue
		}
		seen[cmd] = struct{}{}
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// replaceBlacklist expects normalized commands and must run inside a transaction.
func replaceBlacklist(tx *gorm.DB, accountID string, commands []string) error {
	if err := tx.Where("account_id = ?", accountID).Delete(&models.BlacklistEntry{}).Error; err != nil {
		return err
	}
	if len(commands) == 0 {
		return nil
	}
	entries := make([]models.BlacklistEntry, 0, len(commands))
	for _, cmd := range commands {
		entries = append(entries, models.BlacklistEntry{AccountID: accountID, Command: cmd})
	}
	return tx.Create(&entries).Error
}
