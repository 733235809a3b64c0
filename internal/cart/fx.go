package cart

import (
	"github.com/craftlane/entrypay/internal/cart/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("cart",
	fx.Provide(repository.Provide),
)
