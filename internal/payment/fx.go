package payment

import (
	"github.com/tradecore/leadengine/internal/config"
	paymentdomain "github.com/tradecore/leadengine/internal/payment/domain"
	"github.com/tradecore/leadengine/internal/payment/stripe"
	"go.uber.org/fx"
)

func NewGateway(cfg config.Config) paymentdomain.Gateway {
	return stripe.NewGateway(cfg.StripeSecretKey)
}

var Module = fx.Module("payment",
	fx.Provide(NewGateway),
)
