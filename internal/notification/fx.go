package notification

import (
	"github.com/craftlane/entrypay/internal/providers/email"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	email.Module,
	fx.Provide(NewDispatcher),
)
