package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fireup-dev/fireup/service/relay"
)

const maxRequestBodySize = 1 << 20 // 1MB - webhook payloads are tiny

// webhookPayload is the bank's webhook envelope, reduced to the two fields
// the relay reads: the event type and the link to the transaction detail.
type webhookPayload struct {
	Data struct {
		Attributes struct {
			EventType string `json:"eventType"`
		} `json:"attributes"`
		Relationships struct {
			Transaction struct {
				Links struct {
					Related string `json:"related"`
				} `json:"links"`
			} `json:"transaction"`
		} `json:"relationships"`
	} `json:"data"`
}

// handleWebhook returns the handler for inbound bank events.
// POST /webhook
//
// The response is always 200: the bank retries on failure status, and
// nothing here is fixed by a retry. Malformed payloads are logged and
// acknowledged.
func handleWebhook(dispatcher *relay.Dispatcher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := json.NewDecoder(body).Decode(&payload); err != nil {
			logger.Error("failed to decode webhook payload", "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}

		event := relay.Event{
			Kind:            payload.Data.Attributes.EventType,
			TransactionLink: payload.Data.Relationships.Transaction.Links.Related,
		}
		if event.Kind == "" {
			logger.Error("webhook payload missing event type")
			w.WriteHeader(http.StatusOK)
			return
		}

		logger.Debug("webhook event received", "kind", event.Kind)
		if event.Kind == "PING" {
			w.WriteHeader(http.StatusOK)
			return
		}

		dispatcher.Handle(r.Context(), event)
		w.WriteHeader(http.StatusOK)
	})
}
