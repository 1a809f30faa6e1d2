package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/auth"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/service"
	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/config"
)

func TestCategoriesCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"categories"})

	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "1\tElectronics", lines[0])
	assert.Equal(t, "9\tOther", lines[8])
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(&config.Config{AppEnv: "development", LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = newLogger(&config.Config{AppEnv: "production", LogLevel: "loud"})
	assert.Error(t, err)
}

func TestOpenStoresMemory(t *testing.T) {
	st, err := openStores(context.Background(), &config.Config{StoreDriver: config.StoreMemory}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, st.check)
	assert.NoError(t, st.close(context.Background()))

	_, err = openStores(context.Background(), &config.Config{StoreDriver: "sqlite"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestSeedDemo_RepeatedRunsAddNothing(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	st, err := openStores(ctx, &config.Config{StoreDriver: config.StoreMemory}, logger)
	require.NoError(t, err)

	tokens := auth.NewTokenManager("seed-secret", time.Hour, auth.NewMemoryDenylist())
	accounts := service.NewAccountService(st.accounts, auth.NewPasswordHasher(bcrypt.MinCost), tokens, logger)
	items := service.NewItemService(st.items, logger)

	first, err := seedDemo(ctx, st, accounts, items, "demo-seller", logger)
	require.NoError(t, err)
	assert.Len(t, first, len(demoItems))

	second, err := seedDemo(ctx, st, accounts, items, "demo-seller", logger)
	require.NoError(t, err)
	assert.Empty(t, second)

	all, err := items.Search(ctx, domain.ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, all, len(demoItems))
}

func TestNewProducerWithoutBrokers(t *testing.T) {
	p, err := newProducer(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, p.HealthCheck(context.Background()))
	assert.NoError(t, p.Close())
}
