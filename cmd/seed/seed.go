package seed

import (
	"context"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/database"
	"papertrader/src/model"
	"papertrader/src/repository"
)

// Starting virtual balance for a freshly provisioned demo account.
var startingBalance = decimal.NewFromInt(100000)

type Seeder struct {
	Email       string
	DisplayName string
}

// Start provisions a demo account with the starting balance and default
// settings. Safe to point at an empty database.
func (s *Seeder) Start() error {
	if err := database.InitMainDB(); err != nil {
		return err
	}

	ctx := context.Background()
	repo := repository.NewLedgerRepository()

	user := &model.User{
		Email:          s.Email,
		DisplayName:    s.DisplayName,
		VirtualBalance: startingBalance,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return err
	}

	if err := repo.SaveSettings(ctx, &model.UserSettings{
		UserID:               user.ID,
		BrokerageSimulation:  true,
		NotificationsEnabled: true,
	}); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
		"balance": user.VirtualBalance,
	}).Info("Demo account provisioned")

	return nil
}
