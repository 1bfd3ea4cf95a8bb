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
	"github.com/hotspotvend/HotspotVend/internal/pkg/vouchercode"
)

// maxVoucherBatch bounds one batch request; larger runs are split client-side.
const maxVoucherBatch = 1000

// AdminPlanController handles the plan catalog and voucher inventory.
type AdminPlanController struct {
	planRepo    repository.PlanRepository
	voucherRepo repository.VoucherRepository
}

// NewAdminPlanController creates a new admin plan controller with its repositories.
func NewAdminPlanController(planRepo repository.PlanRepository, voucherRepo repository.VoucherRepository) *AdminPlanController {
	return &AdminPlanController{
		planRepo:    planRepo,
		voucherRepo: voucherRepo,
	}
}

// Global admin plan controller instance
var adminPlanController *AdminPlanController

// InitializeAdminPlanController initializes the global admin plan controller.
func InitializeAdminPlanController() {
	factory := repository.GetGlobalFactory()
	adminPlanController = NewAdminPlanController(factory.GetPlanRepository(), factory.GetVoucherRepository())
}

// GetAdminPlanController returns the global admin plan controller instance.
func GetAdminPlanController() *AdminPlanController {
	if adminPlanController == nil {
		InitializeAdminPlanController()
	}
	return adminPlanController
}

// Adapter functions used by the router

// HandleAdminPlans - Adapter for the full catalog listing
func HandleAdminPlans(c *fiber.Ctx) error {
	return GetAdminPlanController().HandlePlans(c)
}

// HandleAdminPlanCreate - Adapter for plan creation
func HandleAdminPlanCreate(c *fiber.Ctx) error {
	return GetAdminPlanController().HandlePlanCreate(c)
}

// HandleAdminPlanUpdate - Adapter for plan updates
func HandleAdminPlanUpdate(c *fiber.Ctx) error {
	return GetAdminPlanController().HandlePlanUpdate(c)
}

// HandleAdminPlanDelete - Adapter for plan deletion
func HandleAdminPlanDelete(c *fiber.Ctx) error {
	return GetAdminPlanController().HandlePlanDelete(c)
}

// HandleAdminVouchers - Adapter for the voucher inventory listing
func HandleAdminVouchers(c *fiber.Ctx) error {
	return GetAdminPlanController().HandleVouchers(c)
}

// HandleAdminVoucherBatchCreate - Adapter for voucher batch creation
func HandleAdminVoucherBatchCreate(c *fiber.Ctx) error {
	return GetAdminPlanController().HandleVoucherBatchCreate(c)
}

// HandleAdminVoucherDelete - Adapter for voucher deletion
func HandleAdminVoucherDelete(c *fiber.Ctx) error {
	return GetAdminPlanController().HandleVoucherDelete(c)
}

// planRequest is the write shape for plan create and update.
type planRequest struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes uint   `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Currency        string `json:"currency"`
	Active          *bool  `json:"active"`
	SortOrder       int    `json:"sort_order"`
}

// HandlePlans lists the whole catalog, inactive plans included.
func (apc *AdminPlanController) HandlePlans(c *fiber.Ctx) error {
	plans, err := apc.planRepo.GetAll()
	if err != nil {
		return apc.handleError(c, "Failed to list plans", err)
	}

	return c.JSON(fiber.Map{"plans": plans})
}

// HandlePlanCreate validates and stores a new plan.
func (apc *AdminPlanController) HandlePlanCreate(c *fiber.Ctx) error {
	var in planRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed request body"})
	}

	plan := &models.Plan{
		Code:            in.Code,
		Name:            in.Name,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		PriceCents:      in.PriceCents,
		Currency:        in.Currency,
		Active:          true,
		SortOrder:       in.SortOrder,
	}
	if in.Currency == "" {
		plan.Currency = models.GetAppSettings().GetCurrencyCode()
	}
	if in.Active != nil {
		plan.Active = *in.Active
	}

	if err := plan.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	exists, err := apc.planRepo.CodeExists(plan.Code)
	if err != nil {
		return apc.handleError(c, "Failed to check plan code", err)
	}
	if exists {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "code_taken", "message": "A plan with this code already exists"})
	}

	if err := apc.planRepo.Create(plan); err != nil {
		return apc.handleError(c, "Failed to create plan", err)
	}

	log.Infof("[Admin] plan %s created (%d %s, %d minutes)", plan.Code, plan.PriceCents, plan.Currency, plan.DurationMinutes)
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// HandlePlanUpdate applies changes to an existing plan. Entitlements already
// issued from the plan keep their window and price.
func (apc *AdminPlanController) HandlePlanUpdate(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid plan id"})
	}

	plan, err := apc.planRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown plan"})
		}
		return apc.handleError(c, "Failed to load plan", err)
	}

	var in planRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed request body"})
	}

	if in.Code != "" {
		plan.Code = in.Code
	}
	if in.Name != "" {
		plan.Name = in.Name
	}
	if in.Description != "" {
		plan.Description = in.Description
	}
	if in.DurationMinutes > 0 {
		plan.DurationMinutes = in.DurationMinutes
	}
	if in.PriceCents > 0 {
		plan.PriceCents = in.PriceCents
	}
	if in.Currency != "" {
		plan.Currency = in.Currency
	}
	if in.Active != nil {
		plan.Active = *in.Active
	}
	plan.SortOrder = in.SortOrder

	if err := plan.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	exists, err := apc.planRepo.CodeExistsExceptID(plan.Code, plan.ID)
	if err != nil {
		return apc.handleError(c, "Failed to check plan code", err)
	}
	if exists {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "code_taken", "message": "A plan with this code already exists"})
	}

	if err := apc.planRepo.Update(plan); err != nil {
		return apc.handleError(c, "Failed to update plan", err)
	}

	return c.JSON(plan)
}

// HandlePlanDelete removes a plan from the catalog. Sold entitlements carry
// their own copies of price and duration, so history stays intact.
func (apc *AdminPlanController) HandlePlanDelete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid plan id"})
	}

	if _, err := apc.planRepo.GetByID(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown plan"})
		}
		return apc.handleError(c, "Failed to load plan", err)
	}

	if err := apc.planRepo.Delete(uint(id)); err != nil {
		return apc.handleError(c, "Failed to delete plan", err)
	}

	log.Infof("[Admin] plan %d deleted", id)
	return c.JSON(fiber.Map{"status": "deleted"})
}

// HandleVouchers lists the voucher inventory with printable codes.
func (apc *AdminPlanController) HandleVouchers(c *fiber.Ctx) error {
	offset, limit, page := paginationParams(c)

	vouchers, err := apc.voucherRepo.List(offset, limit)
	if err != nil {
		return apc.handleError(c, "Failed to list vouchers", err)
	}
	total, err := apc.voucherRepo.Count()
	if err != nil {
		return apc.handleError(c, "Failed to count vouchers", err)
	}

	items := make([]fiber.Map, 0, len(vouchers))
	for _, v := range vouchers {
		items = append(items, fiber.Map{
			"id":           v.ID,
			"code":         vouchercode.Format(v.Code),
			"plan_id":      v.PlanID,
			"amount_cents": v.AmountCents,
			"redeemed_at":  formatTimePtr(v.RedeemedAt),
			"redeemed_by":  v.RedeemedBy,
			"expires_at":   formatTimePtr(v.ExpiresAt),
			"created_at":   v.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"vouchers": items,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

// HandleVoucherBatchCreate generates a batch of fresh voucher codes. The
// response is the only place the printable codes appear in bulk; operators
// hand them straight to the card printer.
func (apc *AdminPlanController) HandleVoucherBatchCreate(c *fiber.Ctx) error {
	var in struct {
		Count       int    `json:"count"`
		PlanID      *uint  `json:"plan_id"`
		AmountCents int64  `json:"amount_cents"`
		ExpiresAt   string `json:"expires_at"`
	}
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed request body"})
	}

	if in.Count < 1 || in.Count > maxVoucherBatch {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": "count must be between 1 and 1000"})
	}

	amount := in.AmountCents
	if in.PlanID != nil {
		plan, err := apc.planRepo.GetByID(*in.PlanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": "unknown plan_id"})
			}
			return apc.handleError(c, "Failed to load plan", err)
		}
		if amount == 0 {
			// Plan-bound vouchers default to the plan's denomination.
			amount = plan.PriceCents
		}
	}
	if amount <= 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": "amount_cents or plan_id is required"})
	}

	var expiresAt *time.Time
	if in.ExpiresAt != "" {
		ts, err := time.Parse(time.RFC3339, in.ExpiresAt)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": "expires_at must be RFC3339"})
		}
		expiresAt = &ts
	}

	vouchers := make([]models.Voucher, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		code, err := vouchercode.Generate()
		if err != nil {
			return apc.handleError(c, "Failed to generate voucher code", err)
		}
		vouchers = append(vouchers, models.Voucher{
			Code:        code,
			PlanID:      in.PlanID,
			AmountCents: amount,
			ExpiresAt:   expiresAt,
		})
	}

	if err := apc.voucherRepo.CreateBatch(vouchers); err != nil {
		return apc.handleError(c, "Failed to store voucher batch", err)
	}

	codes := make([]string, 0, len(vouchers))
	for _, v := range vouchers {
		codes = append(codes, vouchercode.Format(v.Code))
	}

	log.Infof("[Admin] created %d voucher(s) worth %d cents each", len(codes), amount)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"count":        len(codes),
		"amount_cents": amount,
		"plan_id":      in.PlanID,
		"expires_at":   formatTimePtr(expiresAt),
		"codes":        codes,
	})
}

// HandleVoucherDelete removes an unredeemed voucher from circulation.
// Redeemed vouchers are part of the payment trail and stay.
func (apc *AdminPlanController) HandleVoucherDelete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid voucher id"})
	}

	voucher, err := apc.voucherRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown voucher"})
		}
		return apc.handleError(c, "Failed to load voucher", err)
	}
	if voucher.RedeemedAt != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_redeemed", "message": "Redeemed vouchers cannot be deleted"})
	}

	if err := apc.voucherRepo.Delete(uint(id)); err != nil {
		return apc.handleError(c, "Failed to delete voucher", err)
	}

	return c.JSON(fiber.Map{"status": "deleted"})
}

// handleError logs and answers a generic server failure.
func (apc *AdminPlanController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[Admin] %s: %v", message, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": message})
}
