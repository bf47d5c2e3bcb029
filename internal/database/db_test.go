package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"procurement/internal/model"
	"procurement/internal/repository"
)

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/a.db", sqliteDSN("sqlite:///tmp/a.db"))
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
}

func TestSeed_IsRepeatable(t *testing.T) {
	db, err := NewConnection("file::memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	ctx := context.Background()
	require.NoError(t, Seed(ctx, db, 25, 42))
	require.NoError(t, Seed(ctx, db, 25, 42))

	var requests, users int64
	require.NoError(t, db.Model(&model.ApprovalRequest{}).Count(&requests).Error)
	require.NoError(t, db.Model(&model.User{}).Count(&users).Error)
	assert.Equal(t, int64(25), requests)
	assert.Equal(t, int64(len(DefaultSeedUsers)), users)

	var pending int64
	require.NoError(t, db.Model(&model.ApprovalRequest{}).Where("status = ?", model.StatusPending).Count(&pending).Error)
	assert.Equal(t, int64(25), pending)
}

func TestSeed_SkipsTakenUsername(t *testing.T) {
	db, err := NewConnection("file::memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	// same username as a seed account, different email
	require.NoError(t, db.Create(&model.User{Username: "admin", Email: "ops@example.org", Password: "x", Role: model.RoleAdmin}).Error)

	require.NoError(t, Seed(context.Background(), db, 0, 1))

	var users int64
	require.NoError(t, db.Model(&model.User{}).Count(&users).Error)
	assert.Equal(t, int64(len(DefaultSeedUsers)), users)

	var admin model.User
	require.NoError(t, db.First(&admin, "username = ?", "admin").Error)
	assert.Equal(t, "ops@example.org", admin.Email)
}

func TestNewConnection_MissingRowIsNotLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	db, err := NewConnection("file::memory:", zap.New(core))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	ctx := context.Background()
	require.NoError(t, Seed(ctx, db, 3, 7))
	_, err = repository.NewApprovalRepository(db).FindByID(ctx, "missing")
	require.Error(t, err)

	assert.Zero(t, logs.FilterLoggerName("gorm").Len())
	assert.Zero(t, logs.FilterMessageSnippet("record not found").Len())
}
