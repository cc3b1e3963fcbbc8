package httppresentation

import (
	"net/http"
	"strconv"

	appcheckout "github.com/Zhima-Mochi/storefront-bot/internal/application/checkout"
	appsales "github.com/Zhima-Mochi/storefront-bot/internal/application/sales"
	"github.com/Zhima-Mochi/storefront-bot/internal/pkg/apierror"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	p, err := h.cfg.Checkout.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.cfg.Checkout.Cancel(r.Context(), appcheckout.CancelCommand{
		PaymentID: id,
		Actor:     adminActor(r),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payment_id": id, "status": "CANCELLED"})
}

type manualDeliveryRequest struct {
	UserID    string `json:"user_id"`
	UserTag   string `json:"user_tag"`
	ChannelID string `json:"channel_id"`
	Category  string `json:"category"`
}

func (h *Handler) handleManualDelivery(w http.ResponseWriter, r *http.Request) {
	var req manualDeliveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := h.cfg.Checkout.ManualDelivery(r.Context(), appcheckout.ManualDeliveryCommand{
		Admin:     adminActor(r),
		UserID:    req.UserID,
		UserTag:   req.UserTag,
		ChannelID: req.ChannelID,
		Category:  req.Category,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type resendRequest struct {
	Payload string `json:"payload"`
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	userID, err := h.cfg.Checkout.Resend(r.Context(), appcheckout.ResendCommand{
		Admin:   adminActor(r),
		Payload: req.Payload,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

// handleSalesStats reads ?days=N, where 0 or absent means all time.
func (h *Handler) handleSalesStats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apierror.Validation("days must be an integer").Write(w)
			return
		}
		days = n
	}
	st, err := h.cfg.Sales.Stats(r.Context(), appsales.StatsQuery{PeriodDays: days})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
