package ticket_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onfa-ticketing/internal/auth"
	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/models"
	tickets "onfa-ticketing/internal/tickets/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	TicketService *tickets.TicketService
	Issuer        *auth.Issuer
	Revocations   auth.Revocations
	DB            Pinger
	Logger        *logger.Logger
}

type ticketResponse struct {
	Success bool           `json:"success"`
	Ticket  *models.Ticket `json:"ticket"`
}

// Register handles the public registration form.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegistrationRequest
	if !h.decode(w, r, &req) {
		return
	}

	ticket, err := h.TicketService.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	summary := ticket.Summary()
	writeJSON(w, http.StatusCreated, ticketResponse{Success: true, Ticket: &summary})
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if !h.decode(w, r, &req) {
		return
	}

	ticket, err := h.TicketService.CheckIn(r.Context(), req.TicketID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketResponse{Success: true, Ticket: ticket})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TicketID == "" {
		h.writeError(w, r, fmt.Errorf("%w: ticketId", tickets.ErrMissingField))
		return
	}

	ticket, err := h.TicketService.ApplyTransition(r.Context(), req.TicketID, models.TransitionRequest{
		Status: req.Status,
		Tier:   req.Tier,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	summary := ticket.Summary()
	writeJSON(w, http.StatusOK, ticketResponse{Success: true, Ticket: &summary})
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) PaymentImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.TicketService.GetPaymentImage(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paymentImage": img})
}

func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.TicketService.QRCode(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, expiresAt, err := h.Issuer.Login(req.Secret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSecret) {
			h.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("from %s", r.RemoteAddr))
			writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Secret key is incorrect"})
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expiresAt.UTC(),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims != nil && h.Revocations != nil {
		until := time.Now().Add(time.Hour)
		if claims.ExpiresAt != nil {
			until = claims.ExpiresAt.Time
		}
		if err := h.Revocations.Revoke(r.Context(), claims.ID, until); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		h.Logger.Error("HEALTH", fmt.Sprintf("Database ping failed: %v", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Message: "Request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
