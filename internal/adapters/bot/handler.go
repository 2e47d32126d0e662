package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"kopuro/internal/adapters/intakeapi"
	"kopuro/internal/adapters/telegram"
	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

// Sender отправляет сообщения в Telegram. *tgbotapi.BotAPI подходит как есть.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// IntakeClient обращается к API приёма обращений.
type IntakeClient interface {
	SubmitIssue(ctx context.Context, in intakeapi.SubmitRequest) (intakeapi.SubmitResult, error)
	ListUserIssues(ctx context.Context, source domain.SubmissionSource, userID string, skip, limit int) ([]domain.Submission, error)
	AddFeedback(ctx context.Context, id int64, feedback string) (domain.Submission, error)
}

// ownershipPageSize равен максимальной странице GET /issues/.
const ownershipPageSize = 100

type dialogState int

const (
	stateChooseAction dialogState = iota + 1
	stateAwaitComplaint
	stateAwaitRequest
)

// Handler ведёт диалог с гражданином и передаёт обращения в API.
type Handler struct {
	bot    Sender
	intake IntakeClient
	log    zerolog.Logger
	html   *bluemonday.Policy

	mu     sync.Mutex
	dialog map[int64]dialogState
}

// NewHandler создаёт обработчик.
func NewHandler(bot Sender, intake IntakeClient, log zerolog.Logger) *Handler {
	return &Handler{
		bot:    bot,
		intake: intake,
		log:    log.With().Str("component", "bot").Logger(),
		html:   bluemonday.StrictPolicy(),
		dialog: make(map[int64]dialogState),
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	h.handleMessage(ctx, upd.Message)
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	if cmd, args, ok := parseCommand(text); ok {
		switch cmd {
		case "start":
			h.handleStart(chatID, userID, msg.From)
		case "cancel":
			h.handleCancel(chatID, userID)
		case "help":
			h.sendHTML(chatID, helpMessage)
		case "my_submissions":
			h.handleMySubmissions(ctx, chatID, userID)
		case "feedback":
			h.handleFeedback(ctx, chatID, userID, args)
		default:
			h.reply(chatID, "Неизвестная команда. Используйте /help", nil)
		}
		return
	}

	switch h.state(userID) {
	case stateChooseAction:
		h.handleChooseAction(chatID, userID, text)
	case stateAwaitComplaint:
		h.handleSubmission(ctx, msg, domain.KindComplaint)
	case stateAwaitRequest:
		h.handleSubmission(ctx, msg, domain.KindRequest)
	default:
		h.reply(chatID, "Чтобы подать обращение, введите /start. Список команд: /help", nil)
	}
}

func (h *Handler) handleStart(chatID, userID int64, from *tgbotapi.User) {
	h.setState(userID, stateChooseAction)
	name := h.html.Sanitize(from.FirstName)
	if name == "" {
		name = "гражданин"
	}
	text := fmt.Sprintf("Привет, %s! Я бот для приёма обращений.\n\n"+
		"Чтобы подать жалобу, напишите: <b>%s</b>\n"+
		"Чтобы оставить просьбу, напишите: <b>%s</b>\n\n"+
		"В любой момент можно отменить действие командой /cancel, "+
		"а посмотреть свои заявки командой /my_submissions.",
		name, domain.ComplaintKeyword, domain.RequestKeyword)
	h.send(chatID, text, tgbotapi.ModeHTML, actionKeyboard())
}

func (h *Handler) handleCancel(chatID, userID int64) {
	h.clearState(userID)
	h.reply(chatID, "Действие отменено. Если хотите начать заново, введите /start.", tgbotapi.NewRemoveKeyboard(true))
}

func (h *Handler) handleChooseAction(chatID, userID int64, text string) {
	kind, err := domain.ParseSubmissionKind(text)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Пожалуйста, введите «%s» или «%s», либо /cancel для отмены.", domain.ComplaintKeyword, domain.RequestKeyword), actionKeyboard())
		return
	}
	if kind == domain.KindRequest {
		h.setState(userID, stateAwaitRequest)
		h.reply(chatID, "Пожалуйста, опишите вашу просьбу:", tgbotapi.NewRemoveKeyboard(true))
		return
	}
	h.setState(userID, stateAwaitComplaint)
	h.reply(chatID, "Пожалуйста, опишите вашу жалобу:", tgbotapi.NewRemoveKeyboard(true))
}

func (h *Handler) handleSubmission(ctx context.Context, msg *tgbotapi.Message, kind domain.SubmissionKind) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	if strings.TrimSpace(msg.Text) == "" {
		h.reply(chatID, "Отправьте описание текстом или /cancel для отмены.", nil)
		return
	}

	res, err := h.intake.SubmitIssue(ctx, intakeapi.SubmitRequest{
		Text:           msg.Text,
		Kind:           kind,
		Source:         domain.SourceTelegram,
		SourceUserID:   strconv.FormatInt(userID, 10),
		SourceUsername: domain.StringPtr(msg.From.UserName),
		UserFirstName:  domain.StringPtr(msg.From.FirstName),
	})
	if err != nil {
		h.log.Error().Err(err).Int64("tg_user_id", userID).Msg("не удалось отправить обращение")
		h.reply(chatID, submitErrorText(err), nil)
		h.clearState(userID)
		h.reply(chatID, "Если проблема сохранится, обратитесь в поддержку. Начать заново: /start", nil)
		return
	}

	h.log.Info().Int64("tg_user_id", userID).Int64("submission_id", res.SavedRecordID).Str("status", res.Status.String()).Msg("обращение принято")
	h.reply(chatID, submitResultText(kind, res), nil)
	h.setState(userID, stateChooseAction)
	h.send(chatID, fmt.Sprintf("Хотите подать ещё одно обращение?\nНапишите: <b>%s</b> или <b>%s</b>.\n"+
		"Или используйте /cancel для завершения, /my_submissions для просмотра ваших заявок.",
		domain.ComplaintKeyword, domain.RequestKeyword), tgbotapi.ModeHTML, actionKeyboard())
}

func (h *Handler) handleMySubmissions(ctx context.Context, chatID, userID int64) {
	list, err := h.intake.ListUserIssues(ctx, domain.SourceTelegram, strconv.FormatInt(userID, 10), 0, 0)
	if err != nil {
		h.log.Error().Err(err).Int64("tg_user_id", userID).Msg("не удалось получить заявки")
		var apiErr *intakeapi.APIError
		if errors.As(err, &apiErr) {
			h.reply(chatID, "Произошла ошибка при загрузке ваших заявок (сервер вернул ошибку).", nil)
			return
		}
		h.reply(chatID, "Произошла ошибка подключения при загрузке ваших заявок.", nil)
		return
	}
	if len(list) == 0 {
		h.reply(chatID, "У вас пока нет зарегистрированных обращений.", nil)
		return
	}
	for _, part := range renderSubmissions(h.html, list) {
		if !h.send(chatID, part, tgbotapi.ModeHTML, nil) {
			return
		}
	}
}

func (h *Handler) handleFeedback(ctx context.Context, chatID, userID int64, args string) {
	id, feedback, ok := parseFeedbackArgs(args)
	if !ok {
		h.reply(chatID, "Использование: /feedback <номер обращения> <текст отзыва>", nil)
		return
	}
	owned, err := h.ownsSubmission(ctx, userID, id)
	if err != nil {
		h.log.Error().Err(err).Int64("tg_user_id", userID).Msg("не удалось проверить владельца обращения")
		h.reply(chatID, "Не удалось сохранить отзыв, попробуйте позже.", nil)
		return
	}
	if !owned {
		h.reply(chatID, fmt.Sprintf("Обращение #%d не найдено среди ваших заявок.", id), nil)
		return
	}
	if _, err := h.intake.AddFeedback(ctx, id, feedback); err != nil {
		var apiErr *intakeapi.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			h.reply(chatID, apiErr.Detail, nil)
			return
		}
		h.log.Error().Err(err).Int64("submission_id", id).Msg("не удалось сохранить отзыв")
		h.reply(chatID, "Не удалось сохранить отзыв, попробуйте позже.", nil)
		return
	}
	h.reply(chatID, fmt.Sprintf("Спасибо! Ваш отзыв по обращению #%d сохранён.", id), nil)
}

func (h *Handler) state(userID int64) dialogState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dialog[userID]
}

func (h *Handler) setState(userID int64, st dialogState) {
	h.mu.Lock()
	h.dialog[userID] = st
	h.mu.Unlock()
}

func (h *Handler) clearState(userID int64) {
	h.mu.Lock()
	delete(h.dialog, userID)
	h.mu.Unlock()
}

// reply отправляет обычный текст, длинный текст режется на части.
func (h *Handler) reply(chatID int64, text string, markup any) {
	for i, part := range telegram.SplitMessage(text) {
		var m any
		if i == 0 {
			m = markup
		}
		if !h.send(chatID, part, "", m) {
			return
		}
	}
}

func (h *Handler) sendHTML(chatID int64, text string) {
	h.send(chatID, text, tgbotapi.ModeHTML, nil)
}

func (h *Handler) send(chatID int64, text, parseMode string, markup any) bool {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	start := time.Now()
	_, err := h.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось отправить сообщение")
		return false
	}
	return true
}

func actionKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(domain.ComplaintKeyword),
		tgbotapi.NewKeyboardButton(domain.RequestKeyword),
	))
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

// parseCommand разбирает "/cmd@bot args".
func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func parseFeedbackArgs(args string) (int64, string, bool) {
	rawID, feedback, _ := strings.Cut(strings.TrimSpace(args), " ")
	id, err := strconv.ParseInt(strings.TrimPrefix(rawID, "#"), 10, 64)
	feedback = strings.TrimSpace(feedback)
	if err != nil || id <= 0 || feedback == "" {
		return 0, "", false
	}
	return id, feedback, true
}

// ownsSubmission листает все заявки гражданина, пока не найдёт id.
func (h *Handler) ownsSubmission(ctx context.Context, userID, id int64) (bool, error) {
	sourceUserID := strconv.FormatInt(userID, 10)
	for skip := 0; ; skip += ownershipPageSize {
		page, err := h.intake.ListUserIssues(ctx, domain.SourceTelegram, sourceUserID, skip, ownershipPageSize)
		if err != nil {
			return false, err
		}
		if containsSubmission(page, id) {
			return true, nil
		}
		if len(page) < ownershipPageSize {
			return false, nil
		}
	}
}

func containsSubmission(list []domain.Submission, id int64) bool {
	for _, s := range list {
		if s.ID == id {
			return true
		}
	}
	return false
}

const helpMessage = "Я бот для приёма ваших жалоб и просьб. Все данные обрабатываются централизованно.\n\n" +
	"<b>Основные команды:</b>\n" +
	"/start - начать подачу обращения.\n" +
	"/my_submissions - посмотреть ваши заявки и их статусы.\n" +
	"/feedback &lt;номер&gt; &lt;текст&gt; - оставить отзыв о решении.\n" +
	"/cancel - отменить текущее действие.\n" +
	"/help - показать это сообщение.\n\n" +
	"<b>Как подать заявку:</b>\n" +
	"1. Введите /start.\n" +
	"2. Выберите «жалоба» или «просьба».\n" +
	"3. Опишите проблему одним сообщением."
