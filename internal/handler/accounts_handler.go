package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/finance-tracker-go/internal/action"

	"go.uber.org/zap"
)

// ============================================================
// Account Handlers
// ============================================================

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Webhook-Signature"

const eventUserDeleted = "user.deleted"

type identityEvent struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func deleteMeHandler(facade *action.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/me")
		defer span.End()

		writeEnvelope(w, facade.DeleteAccount(ctx, OwnerIDFromContext(ctx)))
	}
}

// identityWebhookHandler purges the data of owners deleted at the identity
// provider. Other event types are acknowledged and ignored.
func identityWebhookHandler(facade *action.Facade, secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/webhooks/identity")
		defer span.End()

		if secret == "" {
			writeError(w, http.StatusServiceUnavailable, "webhook not configured")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		if !validSignature(secret, body, r.Header.Get(SignatureHeader)) {
			logger.Warn("webhook: bad signature", zap.String("remote_addr", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		var event identityEvent
		if err := json.Unmarshal(body, &event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if event.Type != eventUserDeleted {
			logger.Debug("webhook: event ignored", zap.String("type", event.Type))
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		logger.Info("webhook: user deleted", zap.String("owner_id", event.Data.ID))
		writeEnvelope(w, facade.DeleteAccount(ctx, event.Data.ID))
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, header string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}
