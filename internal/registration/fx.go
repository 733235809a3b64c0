package registration

import (
	"github.com/craftlane/entrypay/internal/registration/domain"
	"github.com/craftlane/entrypay/internal/registration/repository"
	"github.com/craftlane/entrypay/internal/registration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registration",
	fx.Provide(
		repository.Provide,
		service.NewService,
		func(s *service.Service) domain.Materializer { return s },
	),
)
