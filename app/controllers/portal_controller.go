package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/app/repository"
	"github.com/hotspotvend/HotspotVend/internal/pkg/actuator"
	"github.com/hotspotvend/HotspotVend/internal/pkg/database"
	"github.com/hotspotvend/HotspotVend/internal/pkg/entitlement"
	metrics "github.com/hotspotvend/HotspotVend/internal/pkg/metrics/counter"
	"github.com/hotspotvend/HotspotVend/internal/pkg/payment"
	"github.com/hotspotvend/HotspotVend/internal/pkg/statistics"
)

// PortalController serves the captive-portal JSON API: the plan catalog,
// purchases and device status polling.
type PortalController struct {
	svc   *entitlement.Service
	plans repository.PlanRepository
}

// NewPortalController creates a portal controller with its dependencies.
func NewPortalController(svc *entitlement.Service, plans repository.PlanRepository) *PortalController {
	return &PortalController{svc: svc, plans: plans}
}

// Global portal controller instance
var portalController *PortalController

// InitializePortalController initializes the global portal controller.
func InitializePortalController(svc *entitlement.Service) {
	portalController = NewPortalController(svc, repository.GetGlobalFactory().GetPlanRepository())
}

// GetPortalController returns the global portal controller instance.
func GetPortalController() *PortalController {
	if portalController == nil {
		factory := repository.GetGlobalFactory()
		registry := payment.SetupRegistry(factory.GetVoucherRepository())
		svc := entitlement.NewServiceFromDB(database.GetDB(), registry, actuator.SetupActuator())
		portalController = NewPortalController(svc, factory.GetPlanRepository())
	}
	return portalController
}

// Adapter functions used by the router

// HandleAPIPlans - Adapter for the public plan catalog
func HandleAPIPlans(c *fiber.Ctx) error {
	return GetPortalController().HandlePlans(c)
}

// HandleAPIPurchase - Adapter for the purchase endpoint
func HandleAPIPurchase(c *fiber.Ctx) error {
	return GetPortalController().HandlePurchase(c)
}

// HandleAPIStatus - Adapter for the device status endpoint
func HandleAPIStatus(c *fiber.Ctx) error {
	return GetPortalController().HandleStatus(c)
}

// HandleAPIStats - Adapter for the public portal statistics teaser
func HandleAPIStats(c *fiber.Ctx) error {
	return GetPortalController().HandleStats(c)
}

// HandlePlans returns the purchasable catalog plus portal metadata.
func (pc *PortalController) HandlePlans(c *fiber.Ctx) error {
	plans, err := pc.plans.GetActive()
	if err != nil {
		log.Errorf("[Portal] failed to load plan catalog: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plans"})
	}

	items := make([]fiber.Map, 0, len(plans))
	for _, p := range plans {
		items = append(items, fiber.Map{
			"code":             p.Code,
			"name":             p.Name,
			"description":      p.Description,
			"duration_minutes": p.DurationMinutes,
			"price_cents":      p.PriceCents,
			"currency":         p.Currency,
		})
	}

	settings := models.GetAppSettings()
	return c.JSON(fiber.Map{
		"portal":          settings.GetPortalName(),
		"currency":        settings.GetCurrencyCode(),
		"payment_methods": pc.svc.PaymentMethods(),
		"plans":           items,
	})
}

// HandlePurchase runs the full purchase flow and maps every failure family
// to its own HTTP answer.
func (pc *PortalController) HandlePurchase(c *fiber.Ctx) error {
	var in entitlement.PurchaseInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed request body"})
	}

	res, err := pc.svc.Purchase(c.UserContext(), in)
	if err != nil {
		return purchaseErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":       "completed",
		"payment_uuid": res.Payment.UUID,
		"provider_ref": res.Payment.ProviderRef,
		"subscription": fiber.Map{
			"uuid":       res.Subscription.UUID,
			"plan_code":  res.Subscription.PlanCode,
			"starts_at":  res.Subscription.StartsAt.UTC().Format(time.RFC3339),
			"expires_at": res.Subscription.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})
}

// purchaseErrorResponse translates the service error families into HTTP.
func purchaseErrorResponse(c *fiber.Ctx, err error) error {
	var pending *entitlement.PendingPaymentError

	switch {
	case errors.Is(err, entitlement.ErrPlanNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "plan_not_found", "message": "Unknown plan code"})

	case errors.Is(err, entitlement.ErrPurchasesDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "purchases_disabled", "message": "Purchases are temporarily disabled"})

	case errors.Is(err, entitlement.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})

	case errors.Is(err, entitlement.ErrGatewayDeclined):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "payment_declined", "message": err.Error()})

	case errors.Is(err, entitlement.ErrGatewayTimeout):
		// The charge may still land; the client should poll its status.
		resp := fiber.Map{"status": "pending", "message": "Payment outcome is not confirmed yet"}
		if errors.As(err, &pending) {
			resp["payment_uuid"] = pending.PaymentUUID
		}
		return c.Status(fiber.StatusAccepted).JSON(resp)

	case errors.Is(err, entitlement.ErrEntitlementWrite):
		resp := fiber.Map{"error": "grant_failed", "message": "Payment was captured but access could not be stored; it will be granted automatically"}
		if errors.As(err, &pending) {
			resp["payment_uuid"] = pending.PaymentUUID
		}
		return c.Status(fiber.StatusInternalServerError).JSON(resp)

	default:
		log.Errorf("[Portal] purchase failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Purchase failed"})
	}
}

// HandleStats returns the cached portal teaser figures. The refresh happens
// off the request path so a cold cache never slows the landing page down.
func (pc *PortalController) HandleStats(c *fiber.Ctx) error {
	go statistics.UpdateCacheIfNeeded()

	data := statistics.GetStatistics()
	return c.JSON(fiber.Map{
		"active_devices":  data.ActiveDevices,
		"today_purchases": data.TodayPurchases,
		"total_grants":    data.TotalGrants,
	})
}

// HandleStatus reports whether a device currently holds access. This is the
// hot path: portal pages poll it, so the traffic counter goes through Redis.
func (pc *PortalController) HandleStatus(c *fiber.Ctx) error {
	deviceID := strings.TrimSpace(c.Params("device_id"))
	if deviceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing device id"})
	}

	_ = metrics.AddStatusPoll()

	status, err := pc.svc.Status(deviceID)
	if err != nil {
		if errors.Is(err, entitlement.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
		}
		log.Errorf("[Portal] status lookup for device %s failed: %v", deviceID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Status lookup failed"})
	}

	if !status.Connected {
		return c.JSON(fiber.Map{"device_id": status.DeviceID, "connected": false})
	}

	return c.JSON(fiber.Map{
		"device_id":         status.DeviceID,
		"connected":         true,
		"plan_code":         status.PlanCode,
		"plan_name":         status.PlanName,
		"subscription_uuid": status.SubscriptionUUID,
		"expires_at":        formatTimePtr(status.ExpiresAt),
		"remaining_seconds": status.RemainingSeconds,
		"remaining":         status.Remaining,
	})
}
