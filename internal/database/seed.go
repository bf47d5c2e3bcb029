package database

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"procurement/internal/model"
	"procurement/internal/repository"
)

// SeedUser is a development account created by Seed.
type SeedUser struct {
	Username string
	Email    string
	Password string
	Role     string
}

// DefaultSeedUsers are the local development accounts.
var DefaultSeedUsers = []SeedUser{
	{Username: "admin", Email: "admin@example.org", Password: "changeme", Role: model.RoleAdmin},
	{Username: "approver", Email: "approver@example.org", Password: "changeme", Role: model.RoleApprover},
	{Username: "viewer", Email: "viewer@example.org", Password: "changeme", Role: model.RoleViewer},
}

var (
	seedRequestors  = []string{"Amina Diallo", "Tomas Okafor", "Lena Petrova", "Ravi Menon", "Grace Mwangi", "Jonas Berg"}
	seedDepartments = []string{"Field Operations", "Finance", "Programs", "Logistics", "Human Resources"}
	seedCurrencies  = []string{"USD", "EUR", "KES"}
	seedItems       = map[model.RequestType][]string{
		model.RequestTypeRequisition:   {"Office supplies for regional hub", "Water purification tablets", "Field laptops"},
		model.RequestTypePurchaseOrder: {"Vehicle maintenance contract", "Solar panels for clinic", "Printed training manuals"},
		model.RequestTypePayment:       {"Consultant invoice", "Warehouse rent", "Workshop venue deposit"},
	}
)

// seedUserExists reports whether u's email or username is already taken.
// Both columns are unique.
func seedUserExists(ctx context.Context, users repository.UserRepository, u SeedUser) (bool, error) {
	lookups := []struct {
		key  string
		find func(context.Context, string) (*model.User, error)
	}{
		{u.Email, users.GetByEmail},
		{u.Username, users.GetByUsername},
	}
	for _, l := range lookups {
		_, err := l.find(ctx, l.key)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("failed to look up seed user %s: %w", l.key, err)
		}
	}
	return false, nil
}

// Seed inserts the development users (when missing) and count pending
// approval requests. The same seed value always produces the same data.
func Seed(ctx context.Context, db *gorm.DB, count int, seed int64) error {
	users := repository.NewUserRepository(db)
	for _, u := range DefaultSeedUsers {
		exists, err := seedUserExists(ctx, users, u)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}
		if err := users.Create(ctx, &model.User{Username: u.Username, Email: u.Email, Password: string(hash), Role: u.Role}); err != nil {
			return fmt.Errorf("failed to create seed user %s: %w", u.Email, err)
		}
	}

	approvals := repository.NewApprovalRepository(db)
	rng := rand.New(rand.NewSource(seed))
	base := time.Now().UTC().Truncate(time.Hour)

	for i := 0; i < count; i++ {
		reqType := model.RequestTypes[rng.Intn(len(model.RequestTypes))]
		items := seedItems[reqType]
		req := &model.ApprovalRequest{
			ID:            fmt.Sprintf("req-%03d", i+1),
			Type:          reqType,
			RequestorName: seedRequestors[rng.Intn(len(seedRequestors))],
			Amount:        decimal.New(int64(rng.Intn(2_000_000)+1_000), -2),
			Currency:      seedCurrencies[rng.Intn(len(seedCurrencies))],
			Description:   items[rng.Intn(len(items))],
			RiskLevel:     model.RiskLevels[rng.Intn(len(model.RiskLevels))],
			DateSubmitted: base.Add(-time.Duration(i) * 6 * time.Hour),
			Status:        model.StatusPending,
			Department:    seedDepartments[rng.Intn(len(seedDepartments))],
		}
		if _, err := approvals.FindByID(ctx, req.ID); err == nil {
			continue
		}
		if err := approvals.Create(ctx, req); err != nil {
			return fmt.Errorf("failed to create seed request %s: %w", req.ID, err)
		}
	}

	return nil
}
