// internal/services/registry_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/agentvault/av-backend/internal/models"
)

type RegistryServiceTestSuite struct {
	suite.Suite
	env *testEnv
}

func (suite *RegistryServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
}

func (suite *RegistryServiceTestSuite) TestInitializeValidation() {
	env := suite.env

	_, err := env.registry.Initialize(testOwner, models.ZeroAddress, []models.Address{testUSD})
	suite.ErrorIs(err, ErrZeroIssuer)

	_, err = env.registry.Initialize(testOwner, env.ledgerAddr, nil)
	suite.ErrorIs(err, ErrEmptyList)

	_, err = env.registry.Initialize(testOwner, env.ledgerAddr, []models.Address{models.ZeroAddress})
	suite.ErrorIs(err, ErrEmptyList)

	_, err = env.registry.Initialize(models.ZeroAddress, env.ledgerAddr, []models.Address{testUSD})
	suite.ErrorIs(err, ErrZeroOwner)

	_, err = env.registry.Initialize(testOwner, env.ledgerAddr, []models.Address{testUSD})
	suite.NoError(err)

	_, err = env.registry.Initialize(testOwner, env.ledgerAddr, []models.Address{testUSD})
	suite.ErrorIs(err, ErrAlreadyInitialized)
}

func (suite *RegistryServiceTestSuite) TestRegisterClassRequiresInitializedRegistry() {
	_, err := suite.env.registry.RegisterClass(&RegisterClassRequest{
		Owner:     testOwner,
		Name:      "Courier",
		Symbol:    "CUR",
		Capacity:  10,
		MintPrice: 1,
	})
	suite.ErrorIs(err, ErrNotInitialized)
}

func (suite *RegistryServiceTestSuite) TestRegisterClassConstructorValidation() {
	env := suite.env
	env.bootstrap(suite.T(), 0)

	base := func() *RegisterClassRequest {
		return &RegisterClassRequest{
			Owner:     testOwner,
			Name:      "Courier",
			Symbol:    "CUR",
			Capacity:  10,
			MintPrice: 1000,
		}
	}

	req := base()
	req.Owner = models.ZeroAddress
	_, err := env.registry.RegisterClass(req)
	suite.ErrorIs(err, ErrZeroOwner)

	req = base()
	req.RoyaltyBps = 10001
	_, err = env.registry.RegisterClass(req)
	suite.ErrorIs(err, ErrRoyaltyOverflow)

	req = base()
	req.Capacity = 0
	_, err = env.registry.RegisterClass(req)
	suite.ErrorIs(err, ErrInvalidCapacity)

	req = base()
	req.Capacity = env.cfg.Registry.MaxCapacity + 1
	_, err = env.registry.RegisterClass(req)
	suite.ErrorIs(err, ErrInvalidCapacity)

	req = base()
	req.MintPrice = 0
	_, err = env.registry.RegisterClass(req)
	suite.ErrorIs(err, ErrZeroPrice)

	req = base()
	req.Name = "Cat"
	_, err = env.registry.RegisterClass(req)
	suite.ErrorIs(err, ErrNameTooShort)

	req = base()
	req.Symbol = ""
	_, err = env.registry.RegisterClass(req)
	suite.ErrorIs(err, ErrSymbolTooShort)
}

func (suite *RegistryServiceTestSuite) TestRegisterClassDuplicateKey() {
	env := suite.env
	env.bootstrap(suite.T(), 0)

	class := env.registerClass(suite.T(), 10, 1000)

	issuerBefore, err := env.registry.GetIssuer("Courier", "CUR", 10)
	suite.NoError(err)
	suite.Equal(class.Address, issuerBefore)

	_, err = env.registry.RegisterClass(&RegisterClassRequest{
		Owner:     testStranger,
		Name:      "Courier",
		Symbol:    "CUR",
		Capacity:  10,
		MintPrice: 9999,
	})
	suite.ErrorIs(err, ErrAlreadyExists)

	// The failed duplicate must not disturb the mapping.
	issuerAfter, err := env.registry.GetIssuer("Courier", "CUR", 10)
	suite.NoError(err)
	suite.Equal(issuerBefore, issuerAfter)
}

func (suite *RegistryServiceTestSuite) TestGetIssuerUnknownKeyIsZero() {
	env := suite.env
	env.bootstrap(suite.T(), 0)

	issuer, err := env.registry.GetIssuer("Nobody", "NOB", 7)
	suite.NoError(err)
	suite.True(issuer.IsZero())
}

func (suite *RegistryServiceTestSuite) TestDeterministicIssuerAddresses() {
	envA := newTestEnv(suite.T())
	envA.bootstrap(suite.T(), 0)
	classA := envA.registerClass(suite.T(), 10, 1000)

	envB := newTestEnv(suite.T())
	envB.bootstrap(suite.T(), 0)
	classB := envB.registerClass(suite.T(), 10, 1000)

	suite.Equal(classA.Address, classB.Address)
}

func (suite *RegistryServiceTestSuite) TestAllowListIdempotence() {
	env := suite.env
	env.bootstrap(suite.T(), 0)

	// Adding a token already present must not duplicate it.
	suite.NoError(env.registry.SetPayments(testOwner, []models.Address{testUSD, testEUR}))
	suite.NoError(env.registry.SetPayments(testOwner, []models.Address{testUSD}))

	tokens, err := env.registry.ListPayments()
	suite.NoError(err)
	suite.ElementsMatch([]models.Address{testUSD, testEUR}, tokens)

	// Removing an absent token is a no-op.
	suite.NoError(env.registry.RemovePayments(testOwner, []models.Address{testStranger}))

	tokens, err = env.registry.ListPayments()
	suite.NoError(err)
	suite.Len(tokens, 2)

	suite.NoError(env.registry.RemovePayments(testOwner, []models.Address{testEUR}))
	payable, err := env.registry.IsPayable(testEUR)
	suite.NoError(err)
	suite.False(payable)

	// A removed token can be re-added.
	suite.NoError(env.registry.SetPayments(testOwner, []models.Address{testEUR}))
	payable, err = env.registry.IsPayable(testEUR)
	suite.NoError(err)
	suite.True(payable)
}

func (suite *RegistryServiceTestSuite) TestAllowListCap() {
	env := suite.env
	env.cfg.Registry.MaxPaymentTokens = 2
	env.bootstrap(suite.T(), 0)

	suite.NoError(env.registry.SetPayments(testOwner, []models.Address{testEUR}))

	err := env.registry.SetPayments(testOwner, []models.Address{testStranger})
	suite.ErrorIs(err, ErrTooManyPayments)
}

func (suite *RegistryServiceTestSuite) TestAllowListValidation() {
	env := suite.env
	env.bootstrap(suite.T(), 0)

	suite.ErrorIs(env.registry.SetPayments(testOwner, nil), ErrEmptyList)
	suite.ErrorIs(env.registry.SetPayments(testOwner, []models.Address{models.ZeroAddress}), ErrZeroToken)
	suite.ErrorIs(env.registry.RemovePayments(testOwner, nil), ErrEmptyList)

	suite.ErrorIs(env.registry.SetPayments(testStranger, []models.Address{testEUR}), ErrNotOwner)
	suite.ErrorIs(env.registry.RemovePayments(testStranger, []models.Address{testUSD}), ErrNotOwner)
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceTestSuite))
}
