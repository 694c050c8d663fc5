package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aidab12/LinguaTime/internal/app"
	"github.com/aidab12/LinguaTime/internal/domain"
)

// BookingResponder resolves an interpreter's accept or decline.
type BookingResponder interface {
	HandleInterpreterResponse(ctx context.Context, bookingID string, accepted bool) (app.ResponseResult, error)
}

// HandleBookingResponse returns an HTTP handler for
// POST /bookings/{id}/response. Business conflicts (late or repeated
// responses, filled orders) come back as 409 with the user-facing
// message rather than as server errors.
func HandleBookingResponse(svc BookingResponder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/bookings/")
		bookingID, action, ok := strings.Cut(rest, "/")
		if !ok || bookingID == "" || action != "response" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		var req bookingResponseRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Accepted == nil {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "accepted is required")
			return
		}

		result, err := svc.HandleInterpreterResponse(r.Context(), bookingID, *req.Accepted)
		if err != nil {
			switch err {
			case domain.ErrBookingNotFound:
				writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		status := http.StatusOK
		if !result.Success {
			status = http.StatusConflict
		}
		writeJSON(w, status, bookingResponseResponse{
			Success: result.Success,
			Message: result.Message,
		})
	}
}

type bookingResponseRequest struct {
	Accepted *bool `json:"accepted"`
}

type bookingResponseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
