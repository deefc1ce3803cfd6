// internal/services/issuer_service_test.go
package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/agentvault/av-backend/internal/models"
)

type IssuerServiceTestSuite struct {
	suite.Suite
	env *testEnv
}

func (suite *IssuerServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.env.bootstrap(suite.T(), 0)
}

func (suite *IssuerServiceTestSuite) TestIssueSequentialWithinCapacity() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)

	for want := uint64(1); want <= 3; want++ {
		id := env.issueTo(suite.T(), class, testClaimant)
		suite.Equal(want, id)
	}

	// Capacity exhausted, the fourth mint fails.
	suite.NoError(env.bank.Mint(nil, testUSD, testClaimant, class.MintPrice))
	cb := &StandardMintCallback{Bank: env.bank, Payer: testClaimant, Class: class.Address, Amount: class.MintPrice}
	_, err := env.issuer.Issue(class.Address, testClaimant, testUSD, cb, nil)
	suite.ErrorIs(err, ErrCapacityExceeded)

	count, err := env.issuer.HeldCount(nil, class.Address, testClaimant)
	suite.NoError(err)
	suite.EqualValues(3, count)
}

func (suite *IssuerServiceTestSuite) TestIssueCapacityOneScenario() {
	env := suite.env
	class, err := env.registry.RegisterClass(&RegisterClassRequest{
		Owner:       testOwner,
		Name:        "Sentinel",
		Symbol:      "SNT",
		Capacity:    1,
		BaseLocator: "https://assets.agentvault.io/sentinel/",
		MintPrice:   1_000_000,
	})
	suite.NoError(err)

	id := env.issueTo(suite.T(), class, testClaimant)
	suite.EqualValues(1, id)

	suite.NoError(env.bank.Mint(nil, testUSD, testClaimant, class.MintPrice))
	cb := &StandardMintCallback{Bank: env.bank, Payer: testClaimant, Class: class.Address, Amount: class.MintPrice}
	_, err = env.issuer.Issue(class.Address, testClaimant, testUSD, cb, nil)
	suite.ErrorIs(err, ErrCapacityExceeded)
}

func (suite *IssuerServiceTestSuite) TestIssueArgumentValidation() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)
	cb := &StandardMintCallback{Bank: env.bank, Payer: testClaimant, Class: class.Address, Amount: 1000}

	_, err := env.issuer.Issue(class.Address, models.ZeroAddress, testUSD, cb, nil)
	suite.ErrorIs(err, ErrZeroRecipient)

	_, err = env.issuer.Issue(class.Address, testClaimant, models.ZeroAddress, cb, nil)
	suite.ErrorIs(err, ErrZeroToken)

	// A missing callback is an argument error and must not advance the
	// issuance counter.
	_, err = env.issuer.Issue(class.Address, testClaimant, testUSD, nil, nil)
	suite.ErrorIs(err, ErrInvalidArgument)

	fresh, err := env.registry.GetClass(class.Address)
	suite.NoError(err)
	suite.EqualValues(1, fresh.NextID)

	// testEUR is not on the allow-list.
	_, err = env.issuer.Issue(class.Address, testClaimant, testEUR, cb, nil)
	suite.ErrorIs(err, ErrNotPayable)

	_, err = env.issuer.Issue(testStranger, testClaimant, testUSD, cb, nil)
	suite.ErrorIs(err, ErrClassNotFound)
}

func (suite *IssuerServiceTestSuite) TestIssueShortPaymentRollsBack() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)

	suite.NoError(env.bank.Mint(nil, testUSD, testClaimant, 5000))

	short := &StandardMintCallback{Bank: env.bank, Payer: testClaimant, Class: class.Address, Amount: 999}
	_, err := env.issuer.Issue(class.Address, testClaimant, testUSD, short, nil)
	suite.ErrorIs(err, ErrInsufficientPayment)

	// Nothing may survive the failed mint: counter, license row, payment.
	fresh, err := env.registry.GetClass(class.Address)
	suite.NoError(err)
	suite.EqualValues(1, fresh.NextID)

	_, err = env.issuer.GetLicense(class.Address, 1)
	suite.ErrorIs(err, ErrNoSuchLicense)

	suite.EqualValues(5000, env.balance(suite.T(), testUSD, testClaimant))
	suite.EqualValues(0, env.balance(suite.T(), testUSD, class.Address))
}

func (suite *IssuerServiceTestSuite) TestIssueCallbackFailureRollsBack() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)

	failing := MintCallbackFunc(func(tx *gorm.DB, token models.Address, data []byte) error {
		return fmt.Errorf("payment route down")
	})
	_, err := env.issuer.Issue(class.Address, testClaimant, testUSD, failing, nil)
	suite.Error(err)

	fresh, err := env.registry.GetClass(class.Address)
	suite.NoError(err)
	suite.EqualValues(1, fresh.NextID)
}

func (suite *IssuerServiceTestSuite) TestIssueReentrancyRejected() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)
	suite.NoError(env.bank.Mint(nil, testUSD, testClaimant, 5000))

	var reentrantErr error
	cb := MintCallbackFunc(func(tx *gorm.DB, token models.Address, data []byte) error {
		// A nested mint on the same class must fail immediately instead of
		// double-assigning an id.
		inner := &StandardMintCallback{Bank: env.bank, Payer: testClaimant, Class: class.Address, Amount: 1000}
		_, reentrantErr = env.issuer.Issue(class.Address, testClaimant, token, inner, nil)

		return env.bank.Transfer(tx, token, testClaimant, class.Address, 1000)
	})

	id, err := env.issuer.Issue(class.Address, testClaimant, testUSD, cb, nil)
	suite.NoError(err)
	suite.EqualValues(1, id)
	suite.ErrorIs(reentrantErr, ErrReentrantCall)

	fresh, err := env.registry.GetClass(class.Address)
	suite.NoError(err)
	suite.EqualValues(2, fresh.NextID)
}

func (suite *IssuerServiceTestSuite) TestUpdateTraitsAuthority() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)
	env.issueTo(suite.T(), class, testClaimant)
	env.issueTo(suite.T(), class, testClaimant) // nextId is now 3

	traits := models.Traits{Deployments: 4, Yield: 77, Status: models.LicenseStatusDeployed}

	// Only the registry's issuer authority may mutate traits.
	err := env.issuer.UpdateTraits(testStranger, class.Address, 1, traits)
	suite.ErrorIs(err, ErrNotOperator)
	err = env.issuer.UpdateTraits(testOwner, class.Address, 1, traits)
	suite.ErrorIs(err, ErrNotOperator)

	// Unissued id fails even for the operator.
	err = env.issuer.UpdateTraits(env.ledgerAddr, class.Address, 999, traits)
	suite.ErrorIs(err, ErrNoSuchLicense)
	err = env.issuer.UpdateTraits(env.ledgerAddr, class.Address, 0, traits)
	suite.ErrorIs(err, ErrNoSuchLicense)

	suite.NoError(env.issuer.UpdateTraits(env.ledgerAddr, class.Address, 1, traits))

	license, err := env.issuer.GetLicense(class.Address, 1)
	suite.NoError(err)
	suite.Equal(traits, license.Traits())
}

func (suite *IssuerServiceTestSuite) TestUpdateBaseLocator() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)
	env.issueTo(suite.T(), class, testClaimant)

	err := env.issuer.UpdateBaseLocator(testStranger, class.Address, "ipfs://other/")
	suite.ErrorIs(err, ErrNotOwner)

	suite.NoError(env.issuer.UpdateBaseLocator(testOwner, class.Address, "ipfs://courier/"))

	fresh, err := env.registry.GetClass(class.Address)
	suite.NoError(err)
	suite.Equal("ipfs://courier/", fresh.BaseLocator)

	// A batch metadata event covering [1, nextId-1] is journaled.
	events, err := env.events.List(models.EventBatchTraitsChanged, class.Address, 10)
	suite.NoError(err)
	suite.Len(events, 1)
	suite.EqualValues(1, events[0].Payload["from_license_id"])
	suite.EqualValues(1, events[0].Payload["to_license_id"])
}

func (suite *IssuerServiceTestSuite) TestWithdraw() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)
	env.issueTo(suite.T(), class, testClaimant)

	// 1000 of mint revenue sits on the class account now.
	suite.ErrorIs(env.issuer.Withdraw(testStranger, class.Address, testUSD, testOwner, 500), ErrNotOwner)
	suite.ErrorIs(env.issuer.Withdraw(testOwner, class.Address, testUSD, models.ZeroAddress, 500), ErrZeroRecipient)
	suite.ErrorIs(env.issuer.Withdraw(testOwner, class.Address, models.ZeroAddress, testOwner, 500), ErrZeroToken)
	suite.ErrorIs(env.issuer.Withdraw(testOwner, class.Address, testEUR, testOwner, 500), ErrNotPayable)
	suite.ErrorIs(env.issuer.Withdraw(testOwner, class.Address, testUSD, testOwner, 1001), ErrInsufficientBalance)

	suite.NoError(env.issuer.Withdraw(testOwner, class.Address, testUSD, testOwner, 600))
	suite.EqualValues(600, env.balance(suite.T(), testUSD, testOwner))
	suite.EqualValues(400, env.balance(suite.T(), testUSD, class.Address))
}

func (suite *IssuerServiceTestSuite) TestBalanceOfGating() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)

	_, err := env.issuer.BalanceOf(class.Address, models.ZeroAddress)
	suite.ErrorIs(err, ErrZeroToken)

	_, err = env.issuer.BalanceOf(class.Address, testEUR)
	suite.ErrorIs(err, ErrNotPayable)

	amount, err := env.issuer.BalanceOf(class.Address, testUSD)
	suite.NoError(err)
	suite.EqualValues(0, amount)
}

func (suite *IssuerServiceTestSuite) TestRenderMetadata() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)
	id := env.issueTo(suite.T(), class, testClaimant)

	doc, err := env.issuer.RenderMetadata(class.Address, id)
	suite.NoError(err)
	suite.Equal("Courier #1", doc.Name)
	suite.Equal("https://assets.agentvault.io/courier/1.png", doc.Image)
	suite.Equal("Autonomous courier agents", doc.Description)

	attrs := map[string]string{}
	for _, a := range doc.Attributes {
		attrs[a.TraitType] = a.Value
	}
	suite.Equal("INACTIVE", attrs["status"])
	suite.Equal("0", attrs["deployments"])
	suite.Equal("0", attrs["yield"])

	_, err = env.issuer.RenderMetadata(class.Address, 999)
	suite.ErrorIs(err, ErrNoSuchLicense)
}

func (suite *IssuerServiceTestSuite) TestTransferClassOwnership() {
	env := suite.env
	class := env.registerClass(suite.T(), 3, 1000)

	suite.ErrorIs(env.issuer.TransferClassOwnership(testStranger, class.Address, testStranger), ErrNotOwner)
	suite.ErrorIs(env.issuer.TransferClassOwnership(testOwner, class.Address, models.ZeroAddress), ErrZeroOwner)

	suite.NoError(env.issuer.TransferClassOwnership(testOwner, class.Address, testStranger))

	fresh, err := env.registry.GetClass(class.Address)
	suite.NoError(err)
	suite.Equal(testStranger, fresh.Owner)
}

func TestIssuerServiceSuite(t *testing.T) {
	suite.Run(t, new(IssuerServiceTestSuite))
}
