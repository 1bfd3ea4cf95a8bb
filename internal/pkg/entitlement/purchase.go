package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/internal/pkg/payment"
	"gorm.io/gorm"
)

// Purchase converts a client purchase request into a payment attempt and, if
// the provider confirms the charge, a new active subscription.
//
// Every call creates exactly one fresh payment row before the gateway is
// touched, so each charge attempt is auditable even when the process dies
// mid-call. There is no automatic retry: mobile-money charges are not safely
// re-issuable, so retries always arrive as a brand-new Purchase.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	in.DeviceID = strings.TrimSpace(in.DeviceID)
	in.PlanCode = strings.TrimSpace(in.PlanCode)
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	in.AccountRef = strings.TrimSpace(in.AccountRef)

	if !models.GetAppSettings().IsPurchaseEnabled() {
		return nil, ErrPurchasesDisabled
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	plan, err := s.repo.GetPlanByCode(in.PlanCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}
	if in.AmountCents != plan.PriceCents {
		return nil, ErrAmountMismatch
	}

	gateway, ok := s.gateways.Get(in.Method)
	if !ok {
		return nil, ErrUnsupportedMethod
	}
	if gateway.RequiresAccount() && in.AccountRef == "" {
		return nil, ErrMissingAccount
	}

	// All validations passed; from here on the attempt is on the books.
	pay := &models.Payment{
		DeviceID:    in.DeviceID,
		PlanID:      plan.ID,
		PlanCode:    plan.Code,
		AmountCents: plan.PriceCents,
		Currency:    plan.Currency,
		Method:      in.Method,
		Status:      models.PaymentStatusPending,
		Metadata:    purchaseMetadata(in),
	}
	if err := s.repo.CreatePayment(pay); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	result, err := gateway.Charge(ctx, payment.ChargeRequest{
		DeviceID:    in.DeviceID,
		PlanID:      plan.ID,
		PlanCode:    plan.Code,
		AmountCents: plan.PriceCents,
		Currency:    plan.Currency,
		AccountRef:  in.AccountRef,
		Reference:   pay.UUID,
	})
	if err != nil {
		var decline *payment.DeclineError
		if errors.As(err, &decline) {
			if _, failErr := s.repo.FailPayment(pay.ID, decline.Reason); failErr != nil {
				log.Errorf("[Entitlement] payment %s declined but could not be marked failed: %v", pay.UUID, failErr)
			}
			return nil, fmt.Errorf("%w: %s", ErrGatewayDeclined, decline.Reason)
		}
		// No definitive answer. The payment stays pending and is never
		// promoted without proof; reconciliation picks it up later.
		log.Warnf("[Entitlement] payment %s left pending, provider gave no verdict: %v", pay.UUID, err)
		return nil, &PendingPaymentError{PaymentUUID: pay.UUID, Err: fmt.Errorf("%w: %v", ErrGatewayTimeout, err)}
	}

	now := s.now()
	sub := &models.Subscription{
		DeviceID:  in.DeviceID,
		PlanID:    plan.ID,
		PlanCode:  plan.Code,
		PaymentID: pay.ID,
		Status:    models.SubscriptionStatusActive,
		StartsAt:  now,
		ExpiresAt: now.Add(plan.Duration()),
	}
	if err := s.repo.CompletePaymentAndGrant(pay.ID, result.ProviderRef, sub); err != nil {
		// Money has moved but the grant is not stored. The rollback leaves
		// the payment pending so the reconciliation sweep finds it.
		log.Errorf("[Entitlement] payment %s charged (ref %s) but grant failed: %v", pay.UUID, result.ProviderRef, err)
		return nil, &PendingPaymentError{PaymentUUID: pay.UUID, Err: fmt.Errorf("%w: %v", ErrEntitlementWrite, err)}
	}
	pay.Status = models.PaymentStatusCompleted
	pay.ProviderRef = result.ProviderRef

	if err := s.actuator.Grant(ctx, in.DeviceID, sub.ExpiresAt); err != nil {
		// Enforcement is best-effort; the stored grant is the truth.
		log.Errorf("[Entitlement] actuator grant for device %s failed: %v", in.DeviceID, err)
	}

	log.Infof("[Entitlement] device %s granted plan %s until %s (payment %s)",
		in.DeviceID, plan.Code, sub.ExpiresAt.UTC().Format("2006-01-02 15:04:05"), pay.UUID)

	return &PurchaseResult{Payment: pay, Subscription: sub}, nil
}

func purchaseMetadata(in PurchaseInput) models.JSON {
	if in.AccountRef == "" {
		return nil
	}
	raw, err := json.Marshal(map[string]string{"account_ref": in.AccountRef})
	if err != nil {
		return nil
	}
	return models.JSON(raw)
}
