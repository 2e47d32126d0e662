package bot

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

// ConsumeNotices доставляет гражданам уведомления о решённых обращениях,
// пока ctx не отменён.
func (h *Handler) ConsumeNotices(ctx context.Context, q domain.NoticeQueue) {
	h.log.Info().Msg("чтение очереди уведомлений запущено")
	for {
		notice, ack, err := q.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.log.Error().Err(err).Msg("не удалось прочитать уведомление")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		delivered := h.deliverNotice(notice)
		if err := ack(delivered); err != nil {
			h.log.Error().Err(err).Str("notice_id", notice.ID).Msg("не удалось подтвердить уведомление")
		}
		if !delivered {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// deliverNotice возвращает false, только если доставку стоит повторить.
func (h *Handler) deliverNotice(n domain.ResolutionNotice) bool {
	log := h.log.With().Str("notice_id", n.ID).Int64("submission_id", n.SubmissionID).Logger()
	if n.Source != domain.SourceTelegram {
		log.Debug().Str("source", string(n.Source)).Msg("уведомление не для Telegram, пропускаем")
		return true
	}
	chatID, err := strconv.ParseInt(n.SourceUserID, 10, 64)
	if err != nil {
		log.Warn().Str("source_user_id", n.SourceUserID).Msg("некорректный id пользователя Telegram")
		return true
	}

	start := time.Now()
	_, err = h.bot.Send(tgbotapi.NewMessage(chatID, noticeText(n)))
	metrics.ObserveNetworkRequest("telegram_bot", "send_notice", strconv.FormatInt(chatID, 10), start, err)
	if err == nil {
		log.Info().Msg("уведомление о решении доставлено")
		return true
	}
	metrics.BotSendErrors.Inc()
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && (tgErr.Code == http.StatusForbidden || tgErr.Code == http.StatusBadRequest) {
		log.Warn().Err(err).Msg("чат недоступен, уведомление отброшено")
		return true
	}
	log.Error().Err(err).Msg("не удалось доставить уведомление")
	return false
}
