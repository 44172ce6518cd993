package migrate

import (
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/db/models"
)

// Models lists every persisted ledger model in dependency order.
func Models() []any {
	return []any{
		&models.PaymentMethod{},
		&models.Account{},
		&models.Purchase{},
		&models.ProjectReport{},
		&models.WithdrawalRequest{},
		&models.Transaction{},
		&models.BalanceTransaction{},
		&models.PaymentGatewayLog{},
	}
}

// AutoMigrateModels creates tables from the gorm models. Used for sqlite
// development databases and tests.
func AutoMigrateModels(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
