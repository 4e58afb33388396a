package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"typerush/models"
	"typerush/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Result{},
		&models.Reward{},
		&models.PaymentEvent{},
	))
	return db
}

func newWebhookHandler(t *testing.T, db *gorm.DB, secret string) *WebhookHandler {
	t.Helper()

	whop := services.NewWhopClient("", "http://127.0.0.1:0", "", secret)
	ledger := services.NewCreditLedger(db)
	players := services.NewPlayerService(db, nil, 0, "")
	return NewWebhookHandler(db, ledger, players, whop, 5)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestExtractWebhookUserID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data map[string]interface{}
		want string
	}{
		{"top-level user_id", map[string]interface{}{"user_id": "user_1"}, "user_1"},
		{"buyer id", map[string]interface{}{"buyer": map[string]interface{}{"id": "user_2"}}, "user_2"},
		{"access pass", map[string]interface{}{"access_pass": map[string]interface{}{"user_id": "user_3"}}, "user_3"},
		{"user_id wins over buyer", map[string]interface{}{
			"user_id": "user_1",
			"buyer":   map[string]interface{}{"id": "user_2"},
		}, "user_1"},
		{"buyer wins over access pass", map[string]interface{}{
			"buyer":       map[string]interface{}{"id": "user_2"},
			"access_pass": map[string]interface{}{"user_id": "user_3"},
		}, "user_2"},
		{"nothing", map[string]interface{}{"amount": 5.0}, ""},
		{"wrong types ignored", map[string]interface{}{"user_id": 42, "buyer": "not-a-map"}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractWebhookUserID(tc.data))
		})
	}
}

func TestExtractWebhookAmount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 9.99, ExtractWebhookAmount(map[string]interface{}{"final_amount": 9.99, "amount": 12.0}))
	assert.Equal(t, 12.0, ExtractWebhookAmount(map[string]interface{}{"amount": 12.0}))
	assert.Equal(t, 12.0, ExtractWebhookAmount(map[string]interface{}{"final_amount": 0.0, "amount": 12.0}))
	assert.Equal(t, 3.5, ExtractWebhookAmount(map[string]interface{}{"amount": "3.5"}))
	assert.Zero(t, ExtractWebhookAmount(map[string]interface{}{}))
}

func TestExtractCompanySummary(t *testing.T) {
	t.Parallel()

	summary := ExtractCompanySummary(map[string]interface{}{
		"id":    "biz_1",
		"title": "Typerush HQ",
	})
	require.NotNil(t, summary)
	assert.Equal(t, "biz_1", summary.ID)
	require.True(t, summary.HasTitle)
	assert.Equal(t, "Typerush HQ", *summary.Title)
	assert.False(t, summary.HasRoute)

	assert.Nil(t, ExtractCompanySummary(nil))
	assert.Nil(t, ExtractCompanySummary("not-a-map"))
	assert.Nil(t, ExtractCompanySummary(map[string]interface{}{"title": "no id"}))
}

func TestWebhookReceive_RejectsBadSignature(t *testing.T) {
	db := newTestDB(t)
	handler := newWebhookHandler(t, db, "topsecret")

	app := fiber.New()
	app.Post("/api/webhooks", handler.Receive)

	body := []byte(`{"action":"payment.succeeded","data":{"user_id":"user_1"}}`)
	req := httptest.NewRequest("POST", "/api/webhooks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sign("wrong-secret", body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestWebhookReceive_AcknowledgesQuickly(t *testing.T) {
	db := newTestDB(t)
	handler := newWebhookHandler(t, db, "topsecret")

	app := fiber.New()
	app.Post("/api/webhooks", handler.Receive)

	// No user id anywhere: the delivery is still acknowledged.
	payload := map[string]interface{}{
		"action": "payment.succeeded",
		"data":   map[string]interface{}{"amount": 5.0},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/webhooks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sign("topsecret", body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestWebhookReceive_IgnoresUnrelatedActions(t *testing.T) {
	db := newTestDB(t)
	handler := newWebhookHandler(t, db, "topsecret")

	app := fiber.New()
	app.Post("/api/webhooks", handler.Receive)

	body := []byte(`{"action":"membership.went_invalid","data":{"user_id":"user_1"}}`)
	req := httptest.NewRequest("POST", "/api/webhooks", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign("topsecret", body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.PaymentEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleCreditGrant(t *testing.T) {
	db := newTestDB(t)
	handler := newWebhookHandler(t, db, "topsecret")

	user := models.User{WhopUserID: "user_1", Username: "alice", Credits: 2}
	require.NoError(t, db.Create(&user).Error)

	handler.handleCreditGrant("payment.succeeded", "user_1", 9.99, "pay_1", nil)

	var refreshed models.User
	require.NoError(t, db.First(&refreshed, "id = ?", user.ID).Error)
	assert.Equal(t, 7, refreshed.Credits, "webhook grants 5 credits on top of 2")
}

func TestHandleCreditGrant_DuplicatePaymentID(t *testing.T) {
	db := newTestDB(t)
	handler := newWebhookHandler(t, db, "topsecret")

	user := models.User{WhopUserID: "user_1", Username: "alice", Credits: 0}
	require.NoError(t, db.Create(&user).Error)

	handler.handleCreditGrant("payment.succeeded", "user_1", 9.99, "pay_1", nil)
	handler.handleCreditGrant("payment.succeeded", "user_1", 9.99, "pay_1", nil)

	var refreshed models.User
	require.NoError(t, db.First(&refreshed, "id = ?", user.ID).Error)
	assert.Equal(t, 5, refreshed.Credits, "a retried delivery must grant only once")

	var count int64
	require.NoError(t, db.Model(&models.PaymentEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestHandleCreditGrant_NoPaymentIDGrantsEachTime(t *testing.T) {
	db := newTestDB(t)
	handler := newWebhookHandler(t, db, "topsecret")

	user := models.User{WhopUserID: "user_1", Username: "alice", Credits: 0}
	require.NoError(t, db.Create(&user).Error)

	// Without an id there is nothing to dedupe on; this mirrors the upstream
	// payload shape, not a policy choice.
	handler.handleCreditGrant("payment.succeeded", "user_1", 9.99, "", nil)
	handler.handleCreditGrant("payment.succeeded", "user_1", 9.99, "", nil)

	var refreshed models.User
	require.NoError(t, db.First(&refreshed, "id = ?", user.ID).Error)
	assert.Equal(t, 10, refreshed.Credits)
}

func TestHandleCreditGrant_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	handler := newWebhookHandler(t, db, "topsecret")

	// Must not panic or create a user.
	handler.handleCreditGrant("payment.succeeded", "ghost", 9.99, "pay_1", nil)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}
