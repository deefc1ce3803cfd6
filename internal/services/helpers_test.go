// internal/services/helpers_test.go
package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agentvault/av-backend/internal/config"
	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/utils"
)

// Deterministic fixture accounts.
var (
	testOwner    = models.Address("0x00000000000000000000000000000000000000aa")
	testClaimant = models.Address("0x00000000000000000000000000000000000000bb")
	testStranger = models.Address("0x00000000000000000000000000000000000000cc")
	testUSD      = models.Address("0x00000000000000000000000000000000000000dd")
	testEUR      = models.Address("0x00000000000000000000000000000000000000ee")
)

type testEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	bank     *TokenService
	events   *EventService
	registry *RegistryService
	issuer   *IssuerService
	custody  *CustodyService

	registryAddr models.Address
	ledgerAddr   models.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection so every query sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RegistryState{},
		&models.AgentClass{},
		&models.PaymentToken{},
		&models.License{},
		&models.LedgerState{},
		&models.DeployRecord{},
		&models.TokenBalance{},
		&models.TokenAllowance{},
		&models.LedgerEvent{},
		&models.AuditLog{},
	))

	cfg := &config.Config{
		Environment: "test",
		Registry: config.RegistryConfig{
			MaxCapacity:      100000,
			MaxPaymentTokens: 50,
		},
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 1,
		},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	bank := NewTokenService(db)
	events := NewEventService(db, log)
	registry := NewRegistryService(db, cfg, events, log)
	issuer := NewIssuerService(db, registry, bank, events, log)
	custody := NewCustodyService(db, registry, issuer, bank, events, log)

	return &testEnv{
		db:           db,
		cfg:          cfg,
		bank:         bank,
		events:       events,
		registry:     registry,
		issuer:       issuer,
		custody:      custody,
		registryAddr: utils.DeriveAddress("registry", testOwner.String()),
		ledgerAddr:   utils.DeriveAddress("custody-ledger", string(utils.DeriveAddress("registry", testOwner.String()))),
	}
}

// bootstrap initializes the registry and the custody ledger the way the
// admin API does: ledger identity derived from the registry identity, and
// the ledger recorded as the registry's issuer authority.
func (env *testEnv) bootstrap(t *testing.T, fee uint64) {
	t.Helper()

	state, err := env.registry.Initialize(testOwner, env.ledgerAddr, []models.Address{testUSD})
	require.NoError(t, err)
	require.Equal(t, env.registryAddr, state.Address)

	ledger, err := env.custody.Initialize(testOwner, state.Address, fee)
	require.NoError(t, err)
	require.Equal(t, env.ledgerAddr, ledger.Address)
}

// registerClass registers a standard fixture class.
func (env *testEnv) registerClass(t *testing.T, capacity, mintPrice uint64) *models.AgentClass {
	t.Helper()

	class, err := env.registry.RegisterClass(&RegisterClassRequest{
		Owner:       testOwner,
		Name:        "Courier",
		Symbol:      "CUR",
		Capacity:    capacity,
		Description: "Autonomous courier agents",
		BaseLocator: "https://assets.agentvault.io/courier/",
		MintPrice:   mintPrice,
		RoyaltyBps:  250,
	})
	require.NoError(t, err)
	return class
}

// issueTo funds the recipient and mints one license to them, returning the
// license id.
func (env *testEnv) issueTo(t *testing.T, class *models.AgentClass, to models.Address) uint64 {
	t.Helper()

	require.NoError(t, env.bank.Mint(nil, testUSD, to, class.MintPrice))
	cb := &StandardMintCallback{Bank: env.bank, Payer: to, Class: class.Address, Amount: class.MintPrice}
	id, err := env.issuer.Issue(class.Address, to, testUSD, cb, nil)
	require.NoError(t, err)
	return id
}

func (env *testEnv) balance(t *testing.T, token, account models.Address) uint64 {
	t.Helper()
	amount, err := env.bank.BalanceOf(nil, token, account)
	require.NoError(t, err)
	return amount
}

func (env *testEnv) deployData(class *models.AgentClass, traits models.Traits) []byte {
	return (&DeployData{Class: class.Key(), Traits: traits}).Encode()
}
