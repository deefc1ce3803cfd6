// internal/services/token_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/agentvault/av-backend/internal/models"
)

type TokenServiceTestSuite struct {
	suite.Suite
	env *testEnv
}

func (suite *TokenServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
}

func (suite *TokenServiceTestSuite) TestMintAndBalance() {
	env := suite.env

	suite.ErrorIs(env.bank.Mint(nil, models.ZeroAddress, testClaimant, 100), ErrZeroToken)
	suite.ErrorIs(env.bank.Mint(nil, testUSD, models.ZeroAddress, 100), ErrZeroRecipient)

	suite.NoError(env.bank.Mint(nil, testUSD, testClaimant, 100))
	suite.NoError(env.bank.Mint(nil, testUSD, testClaimant, 50))
	suite.EqualValues(150, env.balance(suite.T(), testUSD, testClaimant))

	// Unknown accounts hold zero.
	suite.EqualValues(0, env.balance(suite.T(), testUSD, testStranger))
}

func (suite *TokenServiceTestSuite) TestTransfer() {
	env := suite.env
	suite.NoError(env.bank.Mint(nil, testUSD, testClaimant, 100))

	suite.ErrorIs(env.bank.Transfer(nil, testUSD, testClaimant, testStranger, 101), ErrInsufficientBalance)
	suite.ErrorIs(env.bank.Transfer(nil, testUSD, testStranger, testClaimant, 1), ErrInsufficientBalance)

	suite.NoError(env.bank.Transfer(nil, testUSD, testClaimant, testStranger, 60))
	suite.EqualValues(40, env.balance(suite.T(), testUSD, testClaimant))
	suite.EqualValues(60, env.balance(suite.T(), testUSD, testStranger))
}

func (suite *TokenServiceTestSuite) TestApproveAndTransferFrom() {
	env := suite.env
	suite.NoError(env.bank.Mint(nil, testUSD, testClaimant, 100))

	// No allowance yet.
	err := env.bank.TransferFrom(nil, testUSD, testStranger, testClaimant, testOwner, 10)
	suite.ErrorIs(err, ErrInsufficientBalance)

	suite.NoError(env.bank.Approve(nil, testUSD, testClaimant, testStranger, 30))

	allowance, err := env.bank.Allowance(nil, testUSD, testClaimant, testStranger)
	suite.NoError(err)
	suite.EqualValues(30, allowance)

	// Approve overwrites rather than accumulates.
	suite.NoError(env.bank.Approve(nil, testUSD, testClaimant, testStranger, 25))
	allowance, _ = env.bank.Allowance(nil, testUSD, testClaimant, testStranger)
	suite.EqualValues(25, allowance)

	suite.NoError(env.bank.TransferFrom(nil, testUSD, testStranger, testClaimant, testOwner, 20))
	suite.EqualValues(80, env.balance(suite.T(), testUSD, testClaimant))
	suite.EqualValues(20, env.balance(suite.T(), testUSD, testOwner))

	allowance, _ = env.bank.Allowance(nil, testUSD, testClaimant, testStranger)
	suite.EqualValues(5, allowance)

	// Spending past the remaining allowance fails.
	err = env.bank.TransferFrom(nil, testUSD, testStranger, testClaimant, testOwner, 6)
	suite.ErrorIs(err, ErrInsufficientBalance)
}

func TestTokenServiceSuite(t *testing.T) {
	suite.Run(t, new(TokenServiceTestSuite))
}
