// handlers/webhooks.go - Whop Payment Webhooks
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"typerush/models"
	"typerush/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SignatureHeader carries the HMAC signature Whop signs each delivery with.
const SignatureHeader = "X-Whop-Signature"

var actionableEvents = map[string]bool{
	"payment.succeeded":  true,
	"purchase.completed": true,
}

// userIDExtractors is the ordered list of strategies for locating the paying
// user in the loosely-shaped webhook payload; the first non-empty match wins.
var userIDExtractors = []func(data map[string]interface{}) string{
	func(data map[string]interface{}) string {
		s, _ := data["user_id"].(string)
		return s
	},
	func(data map[string]interface{}) string {
		if buyer, ok := data["buyer"].(map[string]interface{}); ok {
			s, _ := buyer["id"].(string)
			return s
		}
		return ""
	},
	func(data map[string]interface{}) string {
		if pass, ok := data["access_pass"].(map[string]interface{}); ok {
			s, _ := pass["user_id"].(string)
			return s
		}
		return ""
	},
}

type webhookPayload struct {
	Action string                 `json:"action"`
	Data   map[string]interface{} `json:"data"`
}

type WebhookHandler struct {
	db                 *gorm.DB
	ledger             *services.CreditLedger
	players            *services.PlayerService
	whop               *services.WhopClient
	creditsPerPurchase int
}

func NewWebhookHandler(db *gorm.DB, ledger *services.CreditLedger, players *services.PlayerService, whop *services.WhopClient, creditsPerPurchase int) *WebhookHandler {
	return &WebhookHandler{
		db:                 db,
		ledger:             ledger,
		players:            players,
		whop:               whop,
		creditsPerPurchase: creditsPerPurchase,
	}
}

// Receive validates and acknowledges a webhook delivery. The response goes
// out immediately; granting runs in the background so a slow grant never
// causes the platform to retry the delivery.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	body := c.Body()
	if !h.whop.ValidateWebhookSignature(body, c.Get(SignatureHeader)) {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid webhook signature"})
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid webhook payload"})
	}

	if actionableEvents[payload.Action] && payload.Data != nil {
		userID := ExtractWebhookUserID(payload.Data)
		if userID == "" {
			log.Printf("Webhook %s received without a user id", payload.Action)
		} else {
			amount := ExtractWebhookAmount(payload.Data)
			paymentID := ExtractWebhookPaymentID(payload.Data)
			summary := ExtractCompanySummary(payload.Data["company"])

			log.Printf("Processing %s for %s. Purchase amount: %v.", payload.Action, userID, amount)
			go h.handleCreditGrant(payload.Action, userID, amount, paymentID, summary)
		}
	}

	return c.SendString("OK")
}

// ExtractWebhookUserID tries each extraction strategy in order.
func ExtractWebhookUserID(data map[string]interface{}) string {
	for _, extract := range userIDExtractors {
		if id := extract(data); id != "" {
			return id
		}
	}
	return ""
}

// ExtractWebhookAmount prefers the final charged amount over the nominal one.
func ExtractWebhookAmount(data map[string]interface{}) float64 {
	if v := toFloat(data["final_amount"]); v != 0 {
		return v
	}
	return toFloat(data["amount"])
}

// ExtractWebhookPaymentID pulls a payment/receipt identifier when the payload
// carries one. Without it a retried delivery cannot be deduplicated.
func ExtractWebhookPaymentID(data map[string]interface{}) string {
	if s, ok := data["id"].(string); ok && s != "" {
		return s
	}
	if s, ok := data["receipt_id"].(string); ok && s != "" {
		return s
	}
	return ""
}

// ExtractCompanySummary reads the partial company block some deliveries carry.
func ExtractCompanySummary(input interface{}) *services.CompanyDetails {
	candidate, ok := input.(map[string]interface{})
	if !ok {
		return nil
	}

	id, _ := candidate["id"].(string)
	if id == "" {
		return nil
	}

	summary := &services.CompanyDetails{ID: id}
	if raw, ok := candidate["title"]; ok {
		if s, isStr := raw.(string); isStr {
			summary.Title = &s
		}
		summary.HasTitle = true
	}
	if raw, ok := candidate["route"]; ok {
		if s, isStr := raw.(string); isStr {
			summary.Route = &s
		}
		summary.HasRoute = true
	}
	return summary
}

func (h *WebhookHandler) handleCreditGrant(action, userID string, amount float64, paymentID string, summary *services.CompanyDetails) {
	if h.creditsPerPurchase <= 0 {
		log.Println("CREDITS_PER_PURCHASE is not set to a positive number. Skipping credit grant.")
		return
	}

	if paymentID != "" {
		event := models.PaymentEvent{
			PaymentID:  paymentID,
			WhopUserID: userID,
			Action:     action,
			Amount:     amount,
		}
		if err := h.db.Create(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				log.Printf("Payment %s already processed, skipping duplicate grant", paymentID)
				return
			}
			// Grant anyway; losing dedup bookkeeping is better than losing credits.
			log.Printf("Failed to record payment event %s: %v", paymentID, err)
		}
	}

	details := h.resolveCompanyDetails(summary)

	balance, err := h.ledger.Grant(userID, h.creditsPerPurchase)
	if errors.Is(err, services.ErrUserNotFound) {
		log.Printf("Purchase by unknown user %s; credits will not be granted until first login", userID)
	} else if err != nil {
		log.Printf("Failed to add credits from webhook: %v", err)
	} else {
		log.Printf("Granted %d credits to %s after purchase (balance %d).", h.creditsPerPurchase, userID, balance)
	}

	if details != nil {
		h.players.PersistCompany(userID, details)
	}
}

// resolveCompanyDetails upgrades the webhook's partial company block to a full
// lookup when possible, falling back to the summary fields on degradation.
func (h *WebhookHandler) resolveCompanyDetails(summary *services.CompanyDetails) *services.CompanyDetails {
	if summary == nil {
		return nil
	}

	fetched := h.whop.GetCompany(summary.ID)
	if fetched != nil && (fetched.HasTitle || fetched.HasRoute || fetched.HasOwnerUserID) {
		return fetched
	}
	return summary
}

func toFloat(raw interface{}) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
