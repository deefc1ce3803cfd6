// internal/handlers/auth_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agentvault/av-backend/internal/config"
	"github.com/agentvault/av-backend/internal/middleware"
	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/services"
	"github.com/agentvault/av-backend/internal/utils"
)

type AuthHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

// SetupTest wires the handler stack by hand, without the global rate
// limiters the production router installs.
func (suite *AuthHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(suite.T(), err)

	sqlDB, err := db.DB()
	require.NoError(suite.T(), err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(suite.T(), db.AutoMigrate(
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
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	eventService := services.NewEventService(db, log)
	bankService := services.NewTokenService(db)
	registryService := services.NewRegistryService(db, cfg, eventService, log)
	issuerService := services.NewIssuerService(db, registryService, bankService, eventService, log)
	custodyService := services.NewCustodyService(db, registryService, issuerService, bankService, eventService, log)
	authService := services.NewAuthService(db, cfg)

	authHandler := NewAuthHandler(authService)
	registryHandler := NewRegistryHandler(registryService)
	custodyHandler := NewCustodyHandler(custodyService, issuerService, bankService)
	bankHandler := NewBankHandler(bankService)

	r := gin.New()
	r.Use(middleware.I18nMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	v1 := r.Group("/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		v1.GET("/registry", registryHandler.GetState)
		v1.POST("/registry/classes", middleware.AuthRequired(), registryHandler.RegisterClass)
		v1.POST("/custody/deploy", middleware.AuthRequired(), custodyHandler.Deploy)
		v1.POST("/bank/transfer", middleware.AuthRequired(), bankHandler.Transfer)
	}

	suite.db = db
	suite.router = r
}

func (suite *AuthHandlerTestSuite) request(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}

	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *AuthHandlerTestSuite) registerPayload() map[string]interface{} {
	return map[string]interface{}{
		"username": "operator1",
		"email":    "operator1@example.com",
		"password": "TestPass123!",
		"wallet":   "0x00000000000000000000000000000000000000bb",
	}
}

func (suite *AuthHandlerTestSuite) TestHealthEndpoint() {
	w := suite.request("GET", "/health", nil, "")
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *AuthHandlerTestSuite) TestRegisterAndLogin() {
	w := suite.request("POST", "/v1/auth/register", suite.registerPayload(), "")
	suite.Equal(http.StatusCreated, w.Code)

	var response map[string]interface{}
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.True(response["success"].(bool))

	// Duplicate registration conflicts.
	w = suite.request("POST", "/v1/auth/register", suite.registerPayload(), "")
	suite.Equal(http.StatusConflict, w.Code)

	w = suite.request("POST", "/v1/auth/login", map[string]interface{}{
		"email":    "operator1@example.com",
		"password": "TestPass123!",
	}, "")
	suite.Equal(http.StatusOK, w.Code)

	w = suite.request("POST", "/v1/auth/login", map[string]interface{}{
		"email":    "operator1@example.com",
		"password": "WrongPass123!",
	}, "")
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *AuthHandlerTestSuite) TestWeakPasswordRejected() {
	payload := suite.registerPayload()
	payload["password"] = "weak"

	w := suite.request("POST", "/v1/auth/register", payload, "")
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *AuthHandlerTestSuite) TestProfileRequiresToken() {
	w := suite.request("GET", "/v1/auth/me", nil, "")
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.request("POST", "/v1/auth/register", suite.registerPayload(), "")
	suite.Equal(http.StatusCreated, w.Code)

	var response struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.NotEmpty(response.Data.AccessToken)

	w = suite.request("GET", "/v1/auth/me", nil, response.Data.AccessToken)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *AuthHandlerTestSuite) TestProtectedRoutesRejectAnonymous() {
	for _, route := range []struct{ method, path string }{
		{"POST", "/v1/registry/classes"},
		{"POST", "/v1/custody/deploy"},
		{"POST", "/v1/bank/transfer"},
	} {
		w := suite.request(route.method, route.path, map[string]interface{}{}, "")
		suite.Equal(http.StatusUnauthorized, w.Code, fmt.Sprintf("%s %s", route.method, route.path))
	}
}

func (suite *AuthHandlerTestSuite) TestUninitializedRegistryUnavailable() {
	w := suite.request("GET", "/v1/registry", nil, "")
	suite.Equal(http.StatusServiceUnavailable, w.Code)
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerTestSuite))
}
