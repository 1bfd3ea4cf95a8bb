package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/app/repository"
	"github.com/hotspotvend/HotspotVend/internal/pkg/entitlement"
)

// AdminController serves the operator JSON API: dashboard figures, ledger
// and subscription views, manual disconnects and payment reconciliation.
type AdminController struct {
	repos *repository.Repositories
	svc   *entitlement.Service
}

// NewAdminController creates a new admin controller with its dependencies.
func NewAdminController(repos *repository.Repositories, svc *entitlement.Service) *AdminController {
	return &AdminController{
		repos: repos,
		svc:   svc,
	}
}

// Global admin controller instance
var adminController *AdminController

// InitializeAdminController initializes the global admin controller.
func InitializeAdminController(svc *entitlement.Service) {
	adminController = NewAdminController(repository.GetGlobalRepositories(), svc)
}

// GetAdminController returns the global admin controller instance.
func GetAdminController() *AdminController {
	if adminController == nil {
		adminController = NewAdminController(repository.GetGlobalRepositories(), GetPortalController().svc)
	}
	return adminController
}

// Adapter functions used by the router

// HandleAdminDashboard - Adapter for the dashboard figures
func HandleAdminDashboard(c *fiber.Ctx) error {
	return GetAdminController().HandleDashboard(c)
}

// HandleAdminPayments - Adapter for the payment ledger listing
func HandleAdminPayments(c *fiber.Ctx) error {
	return GetAdminController().HandlePayments(c)
}

// HandleAdminSubscriptions - Adapter for the subscription listing
func HandleAdminSubscriptions(c *fiber.Ctx) error {
	return GetAdminController().HandleSubscriptions(c)
}

// HandleAdminDisconnect - Adapter for manual subscription disconnect
func HandleAdminDisconnect(c *fiber.Ctx) error {
	return GetAdminController().HandleDisconnect(c)
}

// HandleAdminOrphanedPayments - Adapter for the reconciliation worklist
func HandleAdminOrphanedPayments(c *fiber.Ctx) error {
	return GetAdminController().HandleOrphanedPayments(c)
}

// HandleAdminReconcileGrant - Adapter for retroactive grants
func HandleAdminReconcileGrant(c *fiber.Ctx) error {
	return GetAdminController().HandleReconcileGrant(c)
}

// HandleAdminSweepNow - Adapter for a manually triggered expiry sweep
func HandleAdminSweepNow(c *fiber.Ctx) error {
	return GetAdminController().HandleSweepNow(c)
}

// HandleAdminSettings - Adapter for reading portal settings
func HandleAdminSettings(c *fiber.Ctx) error {
	return GetAdminController().HandleSettings(c)
}

// HandleAdminSettingsUpdate - Adapter for updating portal settings
func HandleAdminSettingsUpdate(c *fiber.Ctx) error {
	return GetAdminController().HandleSettingsUpdate(c)
}

// HandleDashboard returns the operator dashboard figures: totals, revenue
// and the last seven days as chart series.
func (ac *AdminController) HandleDashboard(c *fiber.Ctx) error {
	totalPlans, err := ac.repos.Plan.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get plan count", err)
	}

	totalPayments, err := ac.repos.Payment.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get payment count", err)
	}
	pendingPayments, err := ac.repos.Payment.CountByStatus(models.PaymentStatusPending)
	if err != nil {
		return ac.handleError(c, "Failed to get pending payment count", err)
	}
	completedPayments, err := ac.repos.Payment.CountByStatus(models.PaymentStatusCompleted)
	if err != nil {
		return ac.handleError(c, "Failed to get completed payment count", err)
	}
	failedPayments, err := ac.repos.Payment.CountByStatus(models.PaymentStatusFailed)
	if err != nil {
		return ac.handleError(c, "Failed to get failed payment count", err)
	}

	activeSubscriptions, err := ac.repos.Subscription.CountActive()
	if err != nil {
		return ac.handleError(c, "Failed to get active subscription count", err)
	}

	totalVouchers, err := ac.repos.Voucher.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get voucher count", err)
	}
	redeemedVouchers, err := ac.repos.Voucher.CountRedeemed()
	if err != nil {
		return ac.handleError(c, "Failed to get redeemed voucher count", err)
	}

	now := time.Now()
	todayStart := now.UTC().Truncate(24 * time.Hour)
	monthStart := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)

	revenueToday, err := ac.repos.Payment.SumCompletedCents(todayStart, now)
	if err != nil {
		return ac.handleError(c, "Failed to get today's revenue", err)
	}
	revenueMonth, err := ac.repos.Payment.SumCompletedCents(monthStart, now)
	if err != nil {
		return ac.handleError(c, "Failed to get this month's revenue", err)
	}

	// Chart series for the last seven days (best effort)
	paymentStats := ac.getLastSevenDaysStats("payments")
	subscriptionStats := ac.getLastSevenDaysStats("subscriptions")
	revenueStats := ac.getLastSevenDaysRevenue()

	return c.JSON(fiber.Map{
		"plans": fiber.Map{"total": totalPlans},
		"payments": fiber.Map{
			"total":     totalPayments,
			"pending":   pendingPayments,
			"completed": completedPayments,
			"failed":    failedPayments,
		},
		"subscriptions": fiber.Map{"active": activeSubscriptions},
		"vouchers": fiber.Map{
			"total":    totalVouchers,
			"redeemed": redeemedVouchers,
		},
		"revenue": fiber.Map{
			"today_cents": revenueToday,
			"month_cents": revenueMonth,
			"currency":    models.GetAppSettings().GetCurrencyCode(),
		},
		"charts": fiber.Map{
			"payments":      paymentStats,
			"subscriptions": subscriptionStats,
			"revenue":       revenueStats,
		},
	})
}

// HandlePayments lists the payment ledger, filterable by status or device.
func (ac *AdminController) HandlePayments(c *fiber.Ctx) error {
	offset, limit, page := paginationParams(c)

	var (
		payments []models.Payment
		err      error
	)
	switch {
	case c.Query("status") != "":
		payments, err = ac.repos.Payment.ListByStatus(c.Query("status"), offset, limit)
	case c.Query("device_id") != "":
		payments, err = ac.repos.Payment.ListByDevice(c.Query("device_id"), offset, limit)
	default:
		payments, err = ac.repos.Payment.List(offset, limit)
	}
	if err != nil {
		return ac.handleError(c, "Failed to list payments", err)
	}

	total, err := ac.repos.Payment.Count()
	if err != nil {
		return ac.handleError(c, "Failed to count payments", err)
	}

	return c.JSON(fiber.Map{
		"payments": payments,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

// HandleSubscriptions lists subscriptions, filterable by status or device.
func (ac *AdminController) HandleSubscriptions(c *fiber.Ctx) error {
	offset, limit, page := paginationParams(c)

	var (
		subs []models.Subscription
		err  error
	)
	switch {
	case c.Query("status") != "":
		subs, err = ac.repos.Subscription.ListByStatus(c.Query("status"), offset, limit)
	case c.Query("device_id") != "":
		subs, err = ac.repos.Subscription.ListByDevice(c.Query("device_id"), offset, limit)
	default:
		subs, err = ac.repos.Subscription.List(offset, limit)
	}
	if err != nil {
		return ac.handleError(c, "Failed to list subscriptions", err)
	}

	total, err := ac.repos.Subscription.Count()
	if err != nil {
		return ac.handleError(c, "Failed to count subscriptions", err)
	}

	return c.JSON(fiber.Map{
		"subscriptions": subs,
		"page":          page,
		"limit":         limit,
		"total":         total,
	})
}

// HandleDisconnect cancels a subscription ahead of its expiry and revokes
// the device's network access.
func (ac *AdminController) HandleDisconnect(c *fiber.Ctx) error {
	subscriptionUUID := c.Params("uuid")

	cancelled, err := ac.svc.Disconnect(c.UserContext(), subscriptionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown subscription"})
		}
		return ac.handleError(c, "Failed to disconnect subscription", err)
	}

	return c.JSON(fiber.Map{
		"subscription_uuid": subscriptionUUID,
		// false means the row was already expired or cancelled; the call is
		// idempotent either way.
		"cancelled": cancelled,
	})
}

// HandleOrphanedPayments lists completed payments without a subscription.
func (ac *AdminController) HandleOrphanedPayments(c *fiber.Ctx) error {
	orphans, err := ac.svc.ListOrphanedPayments()
	if err != nil {
		return ac.handleError(c, "Failed to list orphaned payments", err)
	}

	return c.JSON(fiber.Map{
		"payments": orphans,
		"count":    len(orphans),
	})
}

// HandleReconcileGrant retroactively grants the subscription for a completed
// payment that has none.
func (ac *AdminController) HandleReconcileGrant(c *fiber.Ctx) error {
	paymentUUID := c.Params("uuid")

	sub, err := ac.svc.GrantForPayment(c.UserContext(), paymentUUID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown payment"})
		case errors.Is(err, entitlement.ErrAlreadyGranted):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_granted", "message": "Payment already has a subscription"})
		case errors.Is(err, entitlement.ErrPaymentNotCompleted):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "payment_not_completed", "message": "Only completed payments can be granted"})
		default:
			return ac.handleError(c, "Failed to grant payment", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"subscription": sub,
	})
}

// HandleSweepNow triggers a single expiry sweep outside the regular interval.
func (ac *AdminController) HandleSweepNow(c *fiber.Ctx) error {
	res, err := ac.svc.SweepExpired(c.UserContext())
	if err != nil {
		return ac.handleError(c, "Sweep failed", err)
	}

	return c.JSON(fiber.Map{
		"scanned": res.Scanned,
		"expired": res.Expired,
		"revoked": res.Revoked,
	})
}

// HandleSettings returns the runtime-tunable portal settings.
func (ac *AdminController) HandleSettings(c *fiber.Ctx) error {
	settings, err := ac.repos.Setting.Get()
	if err != nil {
		return ac.handleError(c, "Failed to load settings", err)
	}

	return c.JSON(fiber.Map{
		"portal_name":                settings.GetPortalName(),
		"currency_code":              settings.GetCurrencyCode(),
		"purchase_enabled":           settings.IsPurchaseEnabled(),
		"sweep_interval_seconds":     settings.GetSweepIntervalSeconds(),
		"reconcile_interval_minutes": settings.GetReconcileIntervalMinutes(),
		"reconcile_grace_minutes":    settings.GetReconcileGraceMinutes(),
		"revoke_worker_count":        settings.GetRevokeWorkerCount(),
	})
}

// HandleSettingsUpdate validates and persists new portal settings. Worker
// interval changes take effect on the next manager restart.
func (ac *AdminController) HandleSettingsUpdate(c *fiber.Ctx) error {
	var in struct {
		PortalName               string `json:"portal_name"`
		CurrencyCode             string `json:"currency_code"`
		PurchaseEnabled          bool   `json:"purchase_enabled"`
		SweepIntervalSeconds     int    `json:"sweep_interval_seconds"`
		ReconcileIntervalMinutes int    `json:"reconcile_interval_minutes"`
		ReconcileGraceMinutes    int    `json:"reconcile_grace_minutes"`
		RevokeWorkerCount        int    `json:"revoke_worker_count"`
	}
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed request body"})
	}

	settings := &models.AppSettings{
		PortalName:               in.PortalName,
		CurrencyCode:             in.CurrencyCode,
		PurchaseEnabled:          in.PurchaseEnabled,
		SweepIntervalSeconds:     in.SweepIntervalSeconds,
		ReconcileIntervalMinutes: in.ReconcileIntervalMinutes,
		ReconcileGraceMinutes:    in.ReconcileGraceMinutes,
		RevokeWorkerCount:        in.RevokeWorkerCount,
	}
	if err := ac.repos.Setting.Save(settings); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	log.Info("[Admin] portal settings updated")
	return c.JSON(fiber.Map{"status": "saved"})
}

// handleError logs and answers a generic server failure.
func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[Admin] %s: %v", message, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": message})
}

// getLastSevenDaysStats returns one chart series for the dashboard.
func (ac *AdminController) getLastSevenDaysStats(statsType string) []models.DailyStats {
	startDate, endDate := lastSevenDaysRange()

	var stats []models.DailyStats
	var err error
	switch statsType {
	case "payments":
		stats, err = ac.repos.Payment.GetDailyStats(startDate, endDate)
	case "subscriptions":
		stats, err = ac.repos.Subscription.GetDailyStats(startDate, endDate)
	}
	if err != nil {
		log.Errorf("[Admin] failed to get %s stats: %v", statsType, err)
		return []models.DailyStats{}
	}
	return stats
}

func (ac *AdminController) getLastSevenDaysRevenue() []models.DailyRevenue {
	startDate, endDate := lastSevenDaysRange()

	revenue, err := ac.repos.Payment.GetDailyRevenue(startDate, endDate)
	if err != nil {
		log.Errorf("[Admin] failed to get revenue stats: %v", err)
		return []models.DailyRevenue{}
	}
	return revenue
}

func lastSevenDaysRange() (time.Time, time.Time) {
	now := time.Now()
	startDate := now.AddDate(0, 0, -6).Truncate(24 * time.Hour)
	endDate := now.Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)
	return startDate, endDate
}

// paginationParams reads page/limit query values with sane bounds.
func paginationParams(c *fiber.Ctx) (offset, limit, page int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 200 {
		limit = 20
	}
	return (page - 1) * limit, limit, page
}
