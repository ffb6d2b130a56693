package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skillbay/marketplace/internal/models"
	"github.com/skillbay/marketplace/internal/mykafka"
	"github.com/skillbay/marketplace/internal/payfast"
	"github.com/skillbay/marketplace/internal/store"
)

var testJWTSecret = []byte("test-jwt-secret")

var testPayFast = payfast.Config{
	MerchantID:  "10000100",
	MerchantKey: "46f0cd694581a",
	Passphrase:  "test passphrase",
	BaseURL:     "https://market.test",
	Sandbox:     true,
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	))
	return db
}

func accessCookie(t *testing.T, userID uint, role string) *http.Cookie {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTSecret)
	require.NoError(t, err)
	return &http.Cookie{Name: "accessToken", Value: signed, Path: "/"}
}

func doJSONRequest(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return rec, c
}

func doFormRequest(t *testing.T, path string, form url.Values) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return rec, c
}

func seedBuyer(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	buyer := models.User{Email: "buyer@test.com", Name: "Thandi Ngcobo", PasswordHash: "h", Role: models.RoleUser}
	require.NoError(t, db.Create(&buyer).Error)
	return buyer
}

func seedSeller(t *testing.T, db *gorm.DB, email, name string) models.User {
	t.Helper()
	seller := models.User{Email: email, Name: name, PasswordHash: "h", Role: models.RoleFreelancer}
	require.NoError(t, db.Create(&seller).Error)
	return seller
}

func seedProduct(t *testing.T, db *gorm.DB, title string, price float64, sellerID uint) models.Product {
	t.Helper()
	p := models.Product{
		Title:       title,
		Description: "desc",
		Price:       price,
		FileURL:     "https://files.test/" + title,
		Category:    "Graphic",
		SellerID:    sellerID,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func newCheckoutHandler(db *gorm.DB) *CheckoutHandler {
	return &CheckoutHandler{
		DB:        db,
		Orders:    store.NewOrderStore(db),
		Producer:  &mykafka.Producer{},
		JWTSecret: testJWTSecret,
		PayFast:   testPayFast,
	}
}

func newNotifyHandler(db *gorm.DB) *NotifyHandler {
	return &NotifyHandler{
		DB:       db,
		Orders:   store.NewOrderStore(db),
		Producer: &mykafka.Producer{},
		PayFast:  testPayFast,
	}
}

func newOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{
		DB:        db,
		Orders:    store.NewOrderStore(db),
		JWTSecret: testJWTSecret,
	}
}

func httpErrCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	return he.Code
}
