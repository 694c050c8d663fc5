package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aidab12/LinguaTime/internal/domain"
	"github.com/aidab12/LinguaTime/internal/notify"
	"go.uber.org/zap"
)

// CallbackAnswerer acknowledges Telegram button presses.
type CallbackAnswerer interface {
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error
}

// HandleTelegramWebhook turns accept/decline button presses into
// booking responses. Telegram redelivers updates it considers failed,
// so the handler answers 200 for everything it understood, including
// business conflicts; the outcome reaches the interpreter through the
// callback answer.
func HandleTelegramWebhook(responder BookingResponder, answerer CallbackAnswerer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var update notify.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if update.CallbackQuery == nil {
			w.WriteHeader(http.StatusOK)
			return
		}

		action, bookingID, ok := notify.ParseCallback(update.CallbackQuery.Data)
		if !ok {
			log.Warn("unrecognized callback data",
				zap.String("data", update.CallbackQuery.Data))
			w.WriteHeader(http.StatusOK)
			return
		}

		result, err := responder.HandleInterpreterResponse(r.Context(), bookingID, action == notify.CallbackAccept)
		if err != nil {
			if errors.Is(err, domain.ErrBookingNotFound) || errors.Is(err, domain.ErrInvalidID) {
				log.Warn("callback for unknown booking", zap.String("booking_id", bookingID))
				answer(r.Context(), answerer, update.CallbackQuery.ID, "This offer is no longer available.", log)
				w.WriteHeader(http.StatusOK)
				return
			}
			log.Error("handle interpreter response failed",
				zap.String("booking_id", bookingID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		answer(r.Context(), answerer, update.CallbackQuery.ID, result.Message, log)
		w.WriteHeader(http.StatusOK)
	}
}

func answer(ctx context.Context, answerer CallbackAnswerer, callbackQueryID, text string, log *zap.Logger) {
	if err := answerer.AnswerCallbackQuery(ctx, callbackQueryID, text); err != nil {
		log.Error("answer callback query failed", zap.Error(err))
	}
}
