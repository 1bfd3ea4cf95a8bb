package entitlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/internal/pkg/cache"
	"github.com/hotspotvend/HotspotVend/internal/pkg/env"
	"github.com/hotspotvend/HotspotVend/internal/pkg/mail"
)

const reconcileAlertKeyPrefix = "entitlement:reconcile:alerted:"

// Seam over the cache so tests run without Redis.
var alertMarkFresh = cache.SetNX

// ErrPaymentNotCompleted guards retroactive grants: only settled money may
// produce a subscription.
var ErrPaymentNotCompleted = fmt.Errorf("%w: payment is not completed", ErrValidation)

// ErrAlreadyGranted is returned when the payment already has its subscription.
var ErrAlreadyGranted = fmt.Errorf("%w: payment already has a subscription", ErrValidation)

// ListOrphanedPayments returns completed payments that never produced a
// subscription: money moved, access was not granted. With the transactional
// settle path this list should stay empty; anything on it means a bug or a
// legacy row and demands a human decision (retroactive grant or refund).
func (s *Service) ListOrphanedPayments() ([]models.Payment, error) {
	grace := time.Duration(models.GetAppSettings().GetReconcileGraceMinutes()) * time.Minute
	payments, err := s.repo.ListCompletedPaymentsWithoutSubscription(s.now().Add(-grace))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return payments, nil
}

// GrantForPayment retroactively creates the subscription a completed payment
// should have produced. The window starts now, not at payment time, so the
// customer gets the full duration they paid for.
func (s *Service) GrantForPayment(ctx context.Context, paymentUUID string) (*models.Subscription, error) {
	pay, err := s.repo.GetPaymentByUUID(strings.TrimSpace(paymentUUID))
	if err != nil {
		return nil, err
	}
	if pay.Status != models.PaymentStatusCompleted {
		return nil, ErrPaymentNotCompleted
	}
	if granted, err := s.repo.HasSubscriptionForPayment(pay.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	} else if granted {
		return nil, ErrAlreadyGranted
	}

	plan, err := s.repo.GetPlanByID(pay.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%w: plan %d missing for payment %s: %v", ErrStorage, pay.PlanID, pay.UUID, err)
	}

	now := s.now()
	sub := &models.Subscription{
		DeviceID:  pay.DeviceID,
		PlanID:    plan.ID,
		PlanCode:  pay.PlanCode,
		PaymentID: pay.ID,
		Status:    models.SubscriptionStatusActive,
		StartsAt:  now,
		ExpiresAt: now.Add(plan.Duration()),
	}
	if err := s.repo.CreateSubscriptionForPayment(sub); err != nil {
		// The unique index on payment_id turns a double grant into an error.
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := s.actuator.Grant(ctx, pay.DeviceID, sub.ExpiresAt); err != nil {
		log.Errorf("[Entitlement] actuator grant for device %s failed: %v", pay.DeviceID, err)
	}

	log.Infof("[Entitlement] retroactive grant for payment %s, device %s until %s",
		pay.UUID, pay.DeviceID, sub.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	return sub, nil
}

// ReconcileOrphanedPayments is the periodic watchdog pass: it does not grant
// on its own, it alerts the operator. Each orphan is reported at most once a
// day so a stuck payment does not flood the inbox.
func (s *Service) ReconcileOrphanedPayments(ctx context.Context) (int, error) {
	_ = ctx
	orphans, err := s.ListOrphanedPayments()
	if err != nil {
		return 0, err
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	log.Warnf("[Reconcile] found %d completed payment(s) without a subscription", len(orphans))

	alertTo := strings.TrimSpace(env.GetEnv("ADMIN_ALERT_EMAIL", ""))
	if alertTo == "" {
		return len(orphans), nil
	}

	for _, pay := range orphans {
		fresh, err := alertMarkFresh(reconcileAlertKeyPrefix+pay.UUID, s.now().Unix(), 24*time.Hour)
		if err != nil {
			log.Debugf("[Reconcile] alert dedupe unavailable for %s: %v", pay.UUID, err)
		} else if !fresh {
			continue
		}
		body := fmt.Sprintf(
			"<p>Payment <b>%s</b> (device %s, plan %s, %d %s) is completed but has no subscription.</p>"+
				"<p>Grant it retroactively from the admin panel or flag it for refund.</p>",
			pay.UUID, pay.DeviceID, pay.PlanCode, pay.AmountCents, pay.Currency)
		if err := s.sendAlert(alertTo, "Unreconciled payment "+pay.UUID, body); err != nil {
			log.Errorf("[Reconcile] alert mail for payment %s failed: %v", pay.UUID, err)
		}
	}
	return len(orphans), nil
}

// sendAlert is indirected so tests can capture outgoing alerts.
var defaultSendAlert = mail.SendMail

func (s *Service) sendAlert(to, subject, body string) error {
	if s.alert != nil {
		return s.alert(to, subject, body)
	}
	return defaultSendAlert(to, subject, body)
}

// SetAlertFunc replaces the outgoing alert mailer; tests use this.
func (s *Service) SetAlertFunc(fn func(to, subject, body string) error) {
	s.alert = fn
}
