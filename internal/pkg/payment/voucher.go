package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hotspotvend/HotspotVend/app/repository"
	"github.com/hotspotvend/HotspotVend/internal/pkg/vouchercode"
	"gorm.io/gorm"
)

// VoucherGateway redeems pre-sold scratch codes. Unlike the network
// providers it settles entirely against the local database.
type VoucherGateway struct {
	vouchers repository.VoucherRepository
}

// NewVoucherGateway creates the internal voucher provider.
func NewVoucherGateway(vouchers repository.VoucherRepository) *VoucherGateway {
	return &VoucherGateway{vouchers: vouchers}
}

func (g *VoucherGateway) Method() string { return "voucher" }

// RequiresAccount is true: the account ref carries the voucher code.
func (g *VoucherGateway) RequiresAccount() bool { return true }

// Charge validates and consumes the voucher code. The final redemption is a
// guarded update, so two purchases racing on one code cannot both win.
func (g *VoucherGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	_ = ctx
	// Codes are printed in dashed groups but stored bare.
	code := vouchercode.Normalize(req.AccountRef)

	voucher, err := g.vouchers.GetByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &DeclineError{Reason: "voucher code not found"}
		}
		return nil, err
	}

	now := time.Now()
	if !voucher.IsRedeemable(now) {
		return nil, &DeclineError{Reason: "voucher already redeemed or expired"}
	}
	if voucher.PlanID != nil {
		if !voucher.CoversPlan(req.PlanID) {
			return nil, &DeclineError{Reason: "voucher is bound to a different plan"}
		}
	} else if voucher.AmountCents < req.AmountCents {
		return nil, &DeclineError{Reason: "voucher value does not cover the plan price"}
	}

	redeemed, err := g.vouchers.Redeem(code, req.DeviceID, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Another purchase consumed the code between the read and the update.
			return nil, &DeclineError{Reason: "voucher already redeemed or expired"}
		}
		return nil, err
	}

	return &ChargeResult{ProviderRef: fmt.Sprintf("voucher:%d", redeemed.ID)}, nil
}
