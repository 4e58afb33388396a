// services/whop.go - Whop Platform Client
package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const DefaultWhopAPIBaseURL = "https://api.whop.com/api/v2"

// CompanyDetails is the cached-able subset of a Whop company. The Has flags
// record which fields the upstream payload actually carried: a present-but-null
// field overwrites the cached value with null, an absent field leaves the
// cached value alone.
type CompanyDetails struct {
	ID            string
	Title         *string
	Route         *string
	OwnerUserID   *string
	OwnerUsername *string
	OwnerName     *string

	HasTitle         bool
	HasRoute         bool
	HasOwnerUserID   bool
	HasOwnerUsername bool
	HasOwnerName     bool
}

// BuildCompanyUpdate maps the details onto user-table column assignments,
// including only fields present upstream. overrideID, when set, wins over the
// payload's own id.
func BuildCompanyUpdate(details *CompanyDetails, overrideID string) map[string]interface{} {
	payload := make(map[string]interface{})

	id := details.ID
	if overrideID != "" {
		id = overrideID
	}
	if id != "" {
		payload["company_id"] = id
	}

	if details.HasTitle {
		payload["company_title"] = details.Title
	}
	if details.HasRoute {
		payload["company_route"] = details.Route
	}
	if details.HasOwnerUserID {
		payload["company_owner_user_id"] = details.OwnerUserID
	}
	if details.HasOwnerUsername {
		payload["company_owner_username"] = details.OwnerUsername
	}
	if details.HasOwnerName {
		payload["company_owner_name"] = details.OwnerName
	}

	return payload
}

// WhopClient wraps the Whop REST API. Every lookup is treated as slow and
// occasionally forbidden: calls carry a bounded timeout and degrade to a
// minimal record instead of failing the request that triggered them.
type WhopClient struct {
	apiKey        string
	baseURL       string
	planID        string
	webhookSecret string
	httpClient    *http.Client

	mu                   sync.Mutex
	companyFetchDisabled bool
	companyWarned        bool
}

func NewWhopClient(apiKey, baseURL, planID, webhookSecret string) *WhopClient {
	if baseURL == "" {
		baseURL = DefaultWhopAPIBaseURL
	}

	return &WhopClient{
		apiKey:        apiKey,
		baseURL:       strings.TrimRight(baseURL, "/"),
		planID:        planID,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

func NewWhopClientFromEnv() *WhopClient {
	return NewWhopClient(
		os.Getenv("WHOP_API_KEY"),
		os.Getenv("WHOP_API_BASE_URL"),
		os.Getenv("WHOP_PLAN_ID"),
		os.Getenv("WHOP_WEBHOOK_SECRET"),
	)
}

// GetUsername fetches the public username (or display name) for a Whop user.
// Best-effort: callers fall back to a derived name on error.
func (c *WhopClient) GetUsername(whopUserID string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("WHOP_API_KEY is not configured")
	}

	payload, err := c.getJSON(fmt.Sprintf("%s/users/%s", c.baseURL, whopUserID))
	if err != nil {
		return "", err
	}

	if username, ok := payload["username"].(string); ok && username != "" {
		return username, nil
	}
	if name, ok := payload["name"].(string); ok && name != "" {
		return name, nil
	}
	return "", nil
}

// GetCompany fetches company metadata. It never returns nil for a non-empty
// id: permission failures, timeouts and malformed payloads all degrade to a
// bare {ID} record. A 403 disables further lookups for the process lifetime,
// since the missing company:basic:read scope will not heal on retry.
func (c *WhopClient) GetCompany(companyID string) *CompanyDetails {
	if companyID == "" {
		return nil
	}

	c.mu.Lock()
	disabled := c.companyFetchDisabled
	c.mu.Unlock()
	if disabled {
		return &CompanyDetails{ID: companyID}
	}

	if c.apiKey == "" {
		log.Println("WHOP_API_KEY is not configured. Unable to fetch company details.")
		return &CompanyDetails{ID: companyID}
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/companies/%s", c.baseURL, companyID), nil)
	if err != nil {
		return &CompanyDetails{ID: companyID}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Failed to fetch company details from Whop: %v", err)
		return &CompanyDetails{ID: companyID}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		c.mu.Lock()
		if !c.companyWarned {
			log.Println("Missing permissions to retrieve company details from Whop (company:basic:read required). Falling back to stored values.")
			c.companyWarned = true
		}
		c.companyFetchDisabled = true
		c.mu.Unlock()
		return &CompanyDetails{ID: companyID}
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Failed to retrieve company details from Whop: %s", resp.Status)
		return &CompanyDetails{ID: companyID}
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return &CompanyDetails{ID: companyID}
	}

	company := payload
	if data, ok := payload["data"].(map[string]interface{}); ok {
		company = data
	}

	return NormalizeCompanyDetails(company, companyID)
}

// NormalizeCompanyDetails maps a loose company payload into CompanyDetails,
// preserving which fields were present.
func NormalizeCompanyDetails(company map[string]interface{}, fallbackID string) *CompanyDetails {
	details := &CompanyDetails{ID: fallbackID}
	if id, ok := company["id"].(string); ok && id != "" {
		details.ID = id
	}

	if raw, ok := company["title"]; ok {
		details.Title = optionalString(raw)
		details.HasTitle = true
	}
	if raw, ok := company["route"]; ok {
		details.Route = optionalString(raw)
		details.HasRoute = true
	}

	if owner, ok := company["owner_user"].(map[string]interface{}); ok {
		if raw, ok := owner["id"]; ok {
			details.OwnerUserID = optionalString(raw)
			details.HasOwnerUserID = true
		}
		if raw, ok := owner["username"]; ok {
			details.OwnerUsername = optionalString(raw)
			details.HasOwnerUsername = true
		}
		if raw, ok := owner["name"]; ok {
			details.OwnerName = optionalString(raw)
			details.HasOwnerName = true
		}
	}

	return details
}

// ValidateWebhookSignature checks the HMAC-SHA256 hex signature over the raw
// request body. The payload must not be trusted before this passes.
func (c *WhopClient) ValidateWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}

	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// CheckoutURL returns the hosted checkout page for the configured plan.
func (c *WhopClient) CheckoutURL() (string, error) {
	if c.planID == "" {
		return "", errors.New("WHOP_PLAN_ID is not configured")
	}
	return "https://whop.com/checkout/" + c.planID, nil
}

func (c *WhopClient) getJSON(url string) (map[string]interface{}, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whop api returned %s", resp.Status)
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	if data, ok := payload["data"].(map[string]interface{}); ok {
		return data, nil
	}
	return payload, nil
}

func optionalString(raw interface{}) *string {
	if s, ok := raw.(string); ok {
		return &s
	}
	// Present but null (or a non-string); store an explicit null.
	return nil
}
