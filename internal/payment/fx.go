package payment

import (
	"github.com/craftlane/entrypay/internal/payment/repository"
	"github.com/craftlane/entrypay/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
