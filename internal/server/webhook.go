package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/nutriplan/nutriplan-backend/internal/models"
	"github.com/nutriplan/nutriplan-backend/internal/service"
)

// webhookPayload tolerates the shape drift the gateway has shipped over
// time. The order id may live at data.id, data.orderId, data.order.id
// or order.id depending on the gateway version.
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID      string `json:"id"`
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
		Order   struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"order"`
	} `json:"data"`
	Order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"order"`
}

func (p *webhookPayload) orderID() string {
	for _, id := range []string{p.Data.ID, p.Data.OrderID, p.Data.Order.ID, p.Order.ID} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

func (p *webhookPayload) status() string {
	for _, s := range []string{p.Data.Status, p.Data.Order.Status, p.Order.Status} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// relevant reports whether the event signals a completed payment:
// either an explicit order.paid or any event carrying a paid status.
func (p *webhookPayload) relevant() bool {
	if p.Event == "order.paid" {
		return true
	}
	status, ok := models.ParsePaymentStatus(p.status())
	return ok && status == models.PaymentPaid
}

// handleWebhook is the unauthenticated gateway callback. Delivery is
// at-least-once, so every branch that is not an actual failure answers
// 200 to stop retries.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body error")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.log.Warn("webhook payload not json", "err", err)
		s.writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	s.log.Info("webhook received", "event", payload.Event, "order_id", payload.orderID(), "status", payload.status())

	if !payload.relevant() {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "evento ignorado",
		})
		return
	}

	orderID := payload.orderID()
	if orderID == "" {
		s.writeError(w, http.StatusBadRequest, "orderId ausente no webhook")
		return
	}

	message, err := s.checkout.HandlePaidOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "pedido não encontrado")
			return
		}
		s.log.Error("webhook processing failed", "order_id", orderID, "err", err)
		s.writeError(w, http.StatusInternalServerError, "falha ao processar pedido pago")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
	})
}
