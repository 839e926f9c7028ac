package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/containrrr/shoutrrr"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/logger"
	"github.com/safecli/safecli/internal/models"
	"github.com/safecli/safecli/internal/util"
	"github.com/safecli/safecli/internal/version"
)

// NotificationService delivers pending-approval alerts to the account's shoutrrr
// providers. Delivery is best effort and never blocks the gate.
type NotificationService struct {
	db   *gorm.DB
	send func(url, message string) error
	wg   sync.WaitGroup
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db, send: shoutrrr.Send}
}

// ListProviders returns the account's providers.
func (s *NotificationService) ListProviders(ctx context.Context, accountID string) ([]models.NotificationProvider, error) {
	providers := []models.NotificationProvider{}
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("created_at asc").Find(&providers).Error
	return providers, err
}

// CreateProvider validates the URL with shoutrrr and stores the provider.
func (s *NotificationService) CreateProvider(ctx context.Context, p *models.NotificationProvider) error {
	p.Name = strings.TrimSpace(p.Name)
	p.URL = strings.TrimSpace(p.URL)
	if p.AccountID == "" || p.Name == "" || p.URL == "" {
		return ErrMissingFields
	}
	if err := validateProviderURL(p.URL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProvider, err)
	}
	p.URL = normalizeURL(p.URL)
	return s.db.WithContext(ctx).Create(p).Error
}

// SetEnabled toggles delivery for a provider owned by accountID.
func (s *NotificationService) SetEnabled(ctx context.Context, accountID, id string, enabled bool) error {
	res := s.db.WithContext(ctx).Model(&models.NotificationProvider{}).
		Where("id = ? AND account_id = ?", id, accountID).
		Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// DeleteProvider removes a provider owned by accountID.
func (s *NotificationService) DeleteProvider(ctx context.Context, accountID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND account_id = ?", id, accountID).Delete(&models.NotificationProvider{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// TestProvider sends a test message synchronously and returns the delivery error.
func (s *NotificationService) TestProvider(ctx context.Context, accountID, id string) error {
	var p models.NotificationProvider
	if err := s.db.WithContext(ctx).Where("id = ? AND account_id = ?", id, accountID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProviderNotFound
		}
		return err
	}
	return s.send(p.URL, fmt.Sprintf("Test notification from %s", version.Name))
}

// NotifyPending fans the request out to every enabled provider of the account in
// the background. Failures are logged.
func (s *NotificationService) NotifyPending(ctx context.Context, accountID string, req *models.ApprovalRequest) {
	var providers []models.NotificationProvider
	if err := s.db.WithContext(ctx).Where("account_id = ? AND enabled = ?", accountID, true).Find(&providers).Error; err != nil {
		logger.Log().WithError(err).Warn("failed to load notification providers")
		return
	}
	if len(providers) == 0 {
		return
	}

	msg := fmt.Sprintf("Approval required\n\n%s on endpoint %s wants to run: %s\nRequest %s expires in %s",
		req.UserName, req.EndpointID, util.TruncateForLog(req.Command), req.ID, models.ApprovalTTL)

	for _, p := range providers {
		s.wg.Add(1)
		go func(p models.NotificationProvider) {
			defer s.wg.Done()
			if err := s.send(p.URL, msg); err != nil {
				logger.Log().WithFields(logrus.Fields{
					"provider":   util.SanitizeForLog(p.Name),
					"request_id": req.ID,
				}).WithError(err).Warn("failed to send approval notification")
			}
		}(p)
	}
}

// Wait blocks until in-flight notifications finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

// WaitTimeout is Wait bounded by d. It reports whether every notification
// finished in time; senders still running are abandoned.
func (s *NotificationService) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// validateProviderURL checks the URL is a known shoutrrr service. Plain HTTP(S)
// destinations must not resolve to private addresses.
func validateProviderURL(raw string) error {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return validateWebhookURL(raw)
	}
	if _, err := shoutrrr.CreateSender(raw); err != nil {
		return err
	}
	return nil
}

// normalizeURL routes plain webhook URLs through shoutrrr's generic service.
func normalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return "generic+" + raw
	}
	return raw
}

func validateWebhookURL(raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("disallowed host IP: %s", ip.String())
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
