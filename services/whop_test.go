package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidateWebhookSignature(t *testing.T) {
	t.Parallel()

	client := NewWhopClient("", "", "", "topsecret")
	body := []byte(`{"action":"payment.succeeded"}`)
	sig := signBody("topsecret", body)

	assert.True(t, client.ValidateWebhookSignature(body, sig))
	assert.True(t, client.ValidateWebhookSignature(body, "sha256="+sig))
	assert.False(t, client.ValidateWebhookSignature(body, signBody("wrong", body)))
	assert.False(t, client.ValidateWebhookSignature(body, ""))
	assert.False(t, client.ValidateWebhookSignature([]byte("tampered"), sig))
}

func TestValidateWebhookSignature_NoSecret(t *testing.T) {
	t.Parallel()

	client := NewWhopClient("", "", "", "")
	body := []byte("{}")
	assert.False(t, client.ValidateWebhookSignature(body, signBody("", body)))
}

func TestGetCompany(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/biz_1", r.URL.Path)
		assert.Equal(t, "Bearer key123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"biz_1","title":"Typerush HQ","route":null,"owner_user":{"id":"user_9","username":"boss"}}`))
	}))
	defer server.Close()

	client := NewWhopClient("key123", server.URL, "", "")
	details := client.GetCompany("biz_1")

	require.NotNil(t, details)
	assert.Equal(t, "biz_1", details.ID)
	require.True(t, details.HasTitle)
	require.NotNil(t, details.Title)
	assert.Equal(t, "Typerush HQ", *details.Title)
	assert.True(t, details.HasRoute, "explicit null still counts as present")
	assert.Nil(t, details.Route)
	require.True(t, details.HasOwnerUserID)
	assert.Equal(t, "user_9", *details.OwnerUserID)
	assert.False(t, details.HasOwnerName)
}

func TestGetCompany_ForbiddenDisablesLookups(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewWhopClient("key123", server.URL, "", "")

	first := client.GetCompany("biz_1")
	require.NotNil(t, first)
	assert.Equal(t, "biz_1", first.ID)
	assert.False(t, first.HasTitle)

	second := client.GetCompany("biz_1")
	require.NotNil(t, second)
	assert.Equal(t, 1, calls, "a 403 must latch and stop further lookups")
}

func TestGetCompany_DegradesOnError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewWhopClient("key123", server.URL, "", "")
	details := client.GetCompany("biz_1")
	require.NotNil(t, details)
	assert.Equal(t, "biz_1", details.ID)
	assert.False(t, details.HasTitle)
}

func TestCheckoutURL(t *testing.T) {
	t.Parallel()

	client := NewWhopClient("", "", "plan_42", "")
	url, err := client.CheckoutURL()
	require.NoError(t, err)
	assert.Equal(t, "https://whop.com/checkout/plan_42", url)

	client = NewWhopClient("", "", "", "")
	_, err = client.CheckoutURL()
	require.Error(t, err)
}

func TestNormalizeCompanyDetails_FallbackID(t *testing.T) {
	t.Parallel()

	details := NormalizeCompanyDetails(map[string]interface{}{"title": "X"}, "biz_7")
	assert.Equal(t, "biz_7", details.ID)
	require.True(t, details.HasTitle)
	assert.Equal(t, "X", *details.Title)
}
