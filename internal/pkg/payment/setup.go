package payment

import (
	"github.com/hotspotvend/HotspotVend/app/repository"
)

// SetupRegistry wires all supported charge providers from the environment.
func SetupRegistry(vouchers repository.VoucherRepository) *Registry {
	registry := NewRegistry()
	registry.Register(NewMpesaGatewayFromEnv())
	registry.Register(NewAirtelGatewayFromEnv())
	registry.Register(NewWalletGatewayFromEnv())
	registry.Register(NewVoucherGateway(vouchers))
	return registry
}
