package payhere

import (
	"github.com/craftlane/entrypay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payhere",
	fx.Provide(func(cfg config.Config, log *zap.Logger) *Client {
		return NewClient(cfg.PayHere, log)
	}),
)
