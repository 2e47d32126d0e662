package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kopuro/internal/domain"
)

// UpdateTTL сколько помнить обработанный update_id.
const UpdateTTL = 24 * time.Hour

// WebhookHandler принимает апдейты Telegram. Повторная доставка того же
// update_id отбрасывается через dedup; dedup может быть nil.
func WebhookHandler(h *Handler, dedup domain.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx := context.WithoutCancel(r.Context())
		process := func() error {
			h.HandleUpdate(ctx, update)
			return nil
		}
		if dedup == nil {
			_ = process()
		} else if err := dedup.Once(ctx, "tg:update:"+strconv.Itoa(update.UpdateID), UpdateTTL, process); err != nil {
			h.log.Error().Err(err).Int("update_id", update.UpdateID).Msg("не удалось проверить повтор апдейта")
			_ = process()
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Poll читает апдейты long polling, пока ctx не отменён.
func Poll(ctx context.Context, api *tgbotapi.BotAPI, h *Handler) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := api.GetUpdatesChan(cfg)
	defer api.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}
