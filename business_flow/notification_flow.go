package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tenderintel/tender-intel/models"
	"github.com/tenderintel/tender-intel/repository"
	"github.com/tenderintel/tender-intel/utils"
	"gorm.io/gorm"
)

const (
	// Sweep window for creating deadline notification records.
	deadlineRecordWindowDays = 14
	// Default number of days before a deadline at which delivery happens.
	defaultDeadlineAlertDays = 7

	titleSnippetLen     = 50
	keywordsInMessage   = 3
	deliveryErrorMaxLen = 500
)

// EmailDeliverer sends a notification over email.
type EmailDeliverer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// DesktopDeliverer raises a desktop notification on the host.
type DesktopDeliverer interface {
	SendDesktop(ctx context.Context, title, message string) error
}

// DispatcherConfig controls which channels are attempted and when deadline
// alerts fire.
type DispatcherConfig struct {
	EnableEmail       bool
	EnableDesktop     bool
	DeadlineAlertDays int
}

// NotificationDispatcher creates notification records and delivers them.
// Each (user, tender, type) triple maps to exactly one record; failed
// channels never block other users or the surrounding fetch.
type NotificationDispatcher struct {
	notifRepo  repository.NotificationRepository
	userRepo   repository.UserRepository
	tenderRepo repository.TenderRepository
	email      EmailDeliverer
	desktop    DesktopDeliverer
	cfg        DispatcherConfig
	logger     *log.Logger
}

func NewNotificationDispatcher(
	notifRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	tenderRepo repository.TenderRepository,
	email EmailDeliverer,
	desktop DesktopDeliverer,
	cfg DispatcherConfig,
	logger *log.Logger,
) *NotificationDispatcher {
	if cfg.DeadlineAlertDays <= 0 {
		cfg.DeadlineAlertDays = defaultDeadlineAlertDays
	}
	if logger == nil {
		logger = log.Default()
	}
	return &NotificationDispatcher{
		notifRepo:  notifRepo,
		userRepo:   userRepo,
		tenderRepo: tenderRepo,
		email:      email,
		desktop:    desktop,
		cfg:        cfg,
		logger:     logger,
	}
}

// DispatchKeywordMatch notifies every active user that a tender matched their
// keywords. Re-dispatch for an already delivered (user, tender) pair is a
// no-op; an undelivered existing record is retried.
func (d *NotificationDispatcher) DispatchKeywordMatch(ctx context.Context, tender *models.Tender, matched []*models.Keyword) error {
	if len(matched) == 0 {
		return nil
	}
	users, err := d.userRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing users for keyword match dispatch: %w", err)
	}

	title := "New Tender Match: " + utils.Ellipsis(tender.Title, titleSnippetLen)
	message := d.keywordMatchMessage(tender, matched)

	var firstErr error
	for _, user := range users {
		if err := d.dispatchToUser(ctx, user, tender, models.NotificationTypeKeywordMatch, title, message); err != nil {
			d.logger.Printf("dispatch: keyword match to user %d failed: %v", user.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// DispatchDeadlineApproaching notifies every active user that a tender's
// deadline is near.
func (d *NotificationDispatcher) DispatchDeadlineApproaching(ctx context.Context, tender *models.Tender) error {
	users, err := d.userRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing users for deadline dispatch: %w", err)
	}

	title := "Deadline Approaching: " + utils.Ellipsis(tender.Title, titleSnippetLen)
	message := d.deadlineMessage(tender)

	var firstErr error
	for _, user := range users {
		if err := d.dispatchToUser(ctx, user, tender, models.NotificationTypeDeadlineApproaching, title, message); err != nil {
			d.logger.Printf("dispatch: deadline alert to user %d failed: %v", user.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// CheckApproachingDeadlines scans for matched tenders whose deadline falls
// within the record window. Tenders still ahead of the delivery window get
// unsent rows on record; tenders inside it are alerted at most once per
// tender. It returns the number of tenders alerted on.
func (d *NotificationDispatcher) CheckApproachingDeadlines(ctx context.Context) (int, error) {
	today := utils.UTCToday()
	until := today.AddDate(0, 0, deadlineRecordWindowDays)

	tenders, err := d.tenderRepo.ListDeadlineBetween(ctx, today, until)
	if err != nil {
		return 0, fmt.Errorf("listing tenders with approaching deadlines: %w", err)
	}

	alerted := 0
	for _, tender := range tenders {
		if !tender.IsMatched {
			continue
		}
		days := tender.DaysUntilDeadline()
		if days == nil {
			continue
		}

		if *days > d.cfg.DeadlineAlertDays {
			exists, err := d.notifRepo.ExistsForTenderType(ctx, tender.ID, models.NotificationTypeDeadlineApproaching)
			if err != nil {
				d.logger.Printf("dispatch: deadline record check for tender %d failed: %v", tender.ID, err)
				continue
			}
			if exists {
				continue
			}
			if err := d.recordDeadline(ctx, tender); err != nil {
				d.logger.Printf("dispatch: recording deadline for tender %d: %v", tender.ID, err)
			}
			continue
		}

		sent, err := d.notifRepo.ExistsSentForTenderType(ctx, tender.ID, models.NotificationTypeDeadlineApproaching)
		if err != nil {
			d.logger.Printf("dispatch: deadline dedup check for tender %d failed: %v", tender.ID, err)
			continue
		}
		if sent {
			continue
		}

		if err := d.DispatchDeadlineApproaching(ctx, tender); err != nil {
			d.logger.Printf("dispatch: deadline alert for tender %d: %v", tender.ID, err)
		}
		alerted++
	}
	return alerted, nil
}

// recordDeadline creates unsent deadline rows ahead of the delivery window so
// the alert is on record before it fires.
func (d *NotificationDispatcher) recordDeadline(ctx context.Context, tender *models.Tender) error {
	users, err := d.userRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing users for deadline record: %w", err)
	}

	title := "Deadline Approaching: " + utils.Ellipsis(tender.Title, titleSnippetLen)
	message := d.deadlineMessage(tender)

	for _, user := range users {
		if _, err := d.notifRepo.ByUserTenderType(ctx, user.ID, tender.ID, models.NotificationTypeDeadlineApproaching); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("resolving notification record: %w", err)
		}
		notif := &models.Notification{
			UserID:   user.ID,
			TenderID: &tender.ID,
			Type:     models.NotificationTypeDeadlineApproaching,
			Channel:  d.channel(),
			Title:    title,
			Message:  message,
		}
		if err := d.notifRepo.Save(ctx, notif); err != nil {
			return fmt.Errorf("creating notification record: %w", err)
		}
	}
	return nil
}

// dispatchToUser resolves the single record for the triple and attempts
// delivery on every enabled channel independently.
func (d *NotificationDispatcher) dispatchToUser(
	ctx context.Context,
	user *models.User,
	tender *models.Tender,
	notifType models.NotificationType,
	title, message string,
) error {
	notif, err := d.notifRepo.ByUserTenderType(ctx, user.ID, tender.ID, notifType)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("resolving notification record: %w", err)
		}
		notif = &models.Notification{
			UserID:   user.ID,
			TenderID: &tender.ID,
			Type:     notifType,
			Channel:  d.channel(),
			Title:    title,
			Message:  message,
		}
		if err := d.notifRepo.Save(ctx, notif); err != nil {
			return fmt.Errorf("creating notification record: %w", err)
		}
	}
	if notif.IsSent {
		return nil
	}
	// A row recorded ahead of the delivery window carries a stale message.
	notif.Title = title
	notif.Message = message
	isRetry := notif.RetryCount > 0 || notif.ErrorMessage != nil

	var deliveryErrs []string
	if d.cfg.EnableEmail && notif.Channel.IncludesEmail() && !notif.EmailSent {
		if err := d.email.SendEmail(ctx, user.Email, notif.Title, notif.Message); err != nil {
			deliveryErrs = append(deliveryErrs, fmt.Sprintf("email: %v", err))
		} else {
			notif.EmailSent = true
		}
	}
	if d.cfg.EnableDesktop && notif.Channel.IncludesDesktop() && !notif.DesktopSent {
		if err := d.desktop.SendDesktop(ctx, notif.Title, notif.Message); err != nil {
			deliveryErrs = append(deliveryErrs, fmt.Sprintf("desktop: %v", err))
		} else {
			notif.DesktopSent = true
		}
	}

	if len(deliveryErrs) > 0 {
		notif.ErrorMessage = utils.ToPtr(utils.Truncate(strings.Join(deliveryErrs, "; "), deliveryErrorMaxLen))
	} else if notif.EmailSent || notif.DesktopSent {
		notif.ErrorMessage = nil
	}
	notif.MarkDelivered()

	if err := d.notifRepo.Update(ctx, notif); err != nil {
		return fmt.Errorf("updating notification %d: %w", notif.ID, err)
	}
	if len(deliveryErrs) > 0 && isRetry {
		if err := d.notifRepo.IncrementRetry(ctx, notif.ID); err != nil {
			d.logger.Printf("dispatch: bumping retry count for notification %d: %v", notif.ID, err)
		}
	}
	if len(deliveryErrs) > 0 {
		return &DeliveryError{UserID: user.ID, Channel: string(notif.Channel), Err: errors.New(strings.Join(deliveryErrs, "; "))}
	}
	return nil
}

func (d *NotificationDispatcher) channel() models.NotificationChannel {
	switch {
	case d.cfg.EnableEmail && d.cfg.EnableDesktop:
		return models.NotificationChannelBoth
	case d.cfg.EnableEmail:
		return models.NotificationChannelEmail
	default:
		return models.NotificationChannelDesktop
	}
}

func (d *NotificationDispatcher) keywordMatchMessage(tender *models.Tender, matched []*models.Keyword) string {
	names := make([]string, 0, keywordsInMessage)
	for i, k := range matched {
		if i == keywordsInMessage {
			names = append(names, fmt.Sprintf("and %d more", len(matched)-keywordsInMessage))
			break
		}
		names = append(names, k.Keyword)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tender %q matched keywords: %s.", tender.Title, strings.Join(names, ", "))
	if tender.AgencyName != nil {
		fmt.Fprintf(&b, " Agency: %s.", *tender.AgencyName)
	}
	if tender.DeadlineDate != nil {
		fmt.Fprintf(&b, " Deadline: %s.", tender.DeadlineDate.Format("2006-01-02"))
	}
	return b.String()
}

func (d *NotificationDispatcher) deadlineMessage(tender *models.Tender) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tender %q", tender.Title)
	if days := tender.DaysUntilDeadline(); days != nil {
		switch {
		case *days <= 0:
			b.WriteString(" closes today")
		case *days == 1:
			b.WriteString(" closes tomorrow")
		default:
			fmt.Fprintf(&b, " closes in %d days", *days)
		}
	}
	if tender.DeadlineDate != nil {
		fmt.Fprintf(&b, " (%s)", tender.DeadlineDate.Format("2006-01-02"))
	}
	b.WriteString(".")
	if tender.AgencyName != nil {
		fmt.Fprintf(&b, " Agency: %s.", *tender.AgencyName)
	}
	return b.String()
}
