package migration

import (
	cartdomain "github.com/craftlane/entrypay/internal/cart/domain"
	"github.com/craftlane/entrypay/internal/config"
	paymentdomain "github.com/craftlane/entrypay/internal/payment/domain"
	registrationdomain "github.com/craftlane/entrypay/internal/registration/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// sqlite and mysql development setups rely on gorm's schema sync
		return conn.AutoMigrate(
			&cartdomain.Cart{},
			&cartdomain.CartItem{},
			&paymentdomain.PaymentRecord{},
			&registrationdomain.Registration{},
		)
	}),
)
