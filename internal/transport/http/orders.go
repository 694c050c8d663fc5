package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aidab12/LinguaTime/internal/app"
	"github.com/aidab12/LinguaTime/internal/domain"
)

// OrderCreator is the minimal interface needed to create an order and
// run the interpreter search.
type OrderCreator interface {
	CreateAndSearch(ctx context.Context, in app.CreateOrderInput) (app.CreateAndSearchResult, error)
}

// OfferSender extends offers for an existing order.
type OfferSender interface {
	SendOffers(ctx context.Context, orderID string, interpreterIDs []string) (app.SendOffersResult, error)
}

// OrderCanceller cancels an order that has not been staffed yet.
type OrderCanceller interface {
	CancelOrder(ctx context.Context, orderID string) error
}

// HandleCreateOrder returns an HTTP handler for creating orders.
// The response includes the search result so the caller can pick whom
// to offer to.
func HandleCreateOrder(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.ClientID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "client_id is required")
			return
		}

		result, err := svc.CreateAndSearch(r.Context(), app.CreateOrderInput{
			ClientID:          req.ClientID,
			StartAt:           req.StartAt,
			EndAt:             req.EndAt,
			LocationType:      domain.LocationType(req.LocationType),
			City:              req.City,
			Address:           req.Address,
			Languages:         req.Languages,
			TranslationTypes:  req.TranslationTypes,
			SelectedSlots:     req.SelectedSlots,
			InterpreterCount:  req.InterpreterCount,
			GenderRequirement: domain.GenderRequirement(req.GenderRequirement),
		})
		if err != nil {
			switch err {
			case domain.ErrClientRequired:
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, err.Error())
			case domain.ErrInvalidTimeWindow:
				writeError(w, http.StatusBadRequest, codeInvalidTimeWindow, err.Error())
			case domain.ErrInvalidLocationType:
				writeError(w, http.StatusBadRequest, codeInvalidLocationType, err.Error())
			case domain.ErrCityRequired:
				writeError(w, http.StatusBadRequest, codeCityRequired, err.Error())
			case domain.ErrLanguagesRequired:
				writeError(w, http.StatusBadRequest, codeLanguagesRequired, err.Error())
			case domain.ErrInvalidInterpreterCount:
				writeError(w, http.StatusBadRequest, codeInvalidCount, err.Error())
			case domain.ErrInvalidGenderRequirement:
				writeError(w, http.StatusBadRequest, codeInvalidGender, err.Error())
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		candidates := make([]candidateResponse, 0, len(result.Candidates))
		for _, c := range result.Candidates {
			candidates = append(candidates, candidateResponse{
				ID:         c.ID,
				FullName:   c.FullName,
				City:       c.City,
				Languages:  c.Languages,
				HourlyRate: c.HourlyRate,
			})
		}

		writeJSON(w, http.StatusCreated, createOrderResponse{
			ID:            result.Order.ID,
			Status:        string(result.Order.Status),
			RequiredCount: result.RequiredCount,
			Candidates:    candidates,
		})
	}
}

// HandleOrderActions routes POST /orders/{id}/offers and
// POST /orders/{id}/cancel.
func HandleOrderActions(offers OfferSender, canceller OrderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/orders/")
		orderID, action, ok := strings.Cut(rest, "/")
		if !ok || orderID == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "offers":
			handleSendOffers(w, r, offers, orderID)
		case "cancel":
			handleCancelOrder(w, r, canceller, orderID)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleSendOffers(w http.ResponseWriter, r *http.Request, svc OfferSender, orderID string) {
	var req sendOffersRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if len(req.InterpreterIDs) == 0 {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "interpreter_ids is required")
		return
	}

	result, err := svc.SendOffers(r.Context(), orderID, req.InterpreterIDs)
	if err != nil {
		switch err {
		case domain.ErrOrderNotFound:
			writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
		case domain.ErrInvalidID:
			writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, sendOffersResponse{
		SentCount: result.SentCount,
		ExpiresAt: result.ExpiresAt,
	})
}

func handleCancelOrder(w http.ResponseWriter, r *http.Request, svc OrderCanceller, orderID string) {
	if err := svc.CancelOrder(r.Context(), orderID); err != nil {
		switch err {
		case domain.ErrOrderNotFound:
			writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
		case domain.ErrInvalidID:
			writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
		case domain.ErrOrderNotCancellable:
			writeError(w, http.StatusConflict, codeOrderNotCancellable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, cancelOrderResponse{Status: string(domain.OrderStatusCancelled)})
}

type createOrderRequest struct {
	ClientID          string    `json:"client_id"`
	StartAt           time.Time `json:"start_at"`
	EndAt             time.Time `json:"end_at"`
	LocationType      string    `json:"location_type"`
	City              string    `json:"city"`
	Address           string    `json:"address"`
	Languages         []string  `json:"languages"`
	TranslationTypes  []string  `json:"translation_types"`
	SelectedSlots     []string  `json:"selected_slots"`
	InterpreterCount  int       `json:"interpreter_count"`
	GenderRequirement string    `json:"gender_requirement"`
}

type candidateResponse struct {
	ID         string   `json:"id"`
	FullName   string   `json:"full_name"`
	City       string   `json:"city"`
	Languages  []string `json:"languages"`
	HourlyRate float64  `json:"hourly_rate"`
}

type createOrderResponse struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"`
	RequiredCount int                 `json:"required_count"`
	Candidates    []candidateResponse `json:"candidates"`
}

type sendOffersRequest struct {
	InterpreterIDs []string `json:"interpreter_ids"`
}

type sendOffersResponse struct {
	SentCount int       `json:"sent_count"`
	ExpiresAt time.Time `json:"expires_at"`
}

type cancelOrderResponse struct {
	Status string `json:"status"`
}
