package ticket_api

import (
	"errors"
	"fmt"
	"net/http"

	tickets "onfa-ticketing/internal/tickets/service"
)

type errorResponse struct {
	Message string `json:"message"`
}

var errorStatus = []struct {
	err    error
	status int
}{
	{tickets.ErrMissingField, http.StatusBadRequest},
	{tickets.ErrInvalidTier, http.StatusBadRequest},
	{tickets.ErrInvalidStatus, http.StatusBadRequest},
	{tickets.ErrCapacityExceeded, http.StatusBadRequest},
	{tickets.ErrDuplicateEmail, http.StatusBadRequest},
	{tickets.ErrAlreadyCheckedIn, http.StatusBadRequest},
	{tickets.ErrTicketNotFound, http.StatusNotFound},
	{tickets.ErrConcurrentUpdate, http.StatusConflict},
	{tickets.ErrRegistrationBusy, http.StatusServiceUnavailable},
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		message = "Internal server error"
	}
	writeJSON(w, status, errorResponse{Message: message})
}
