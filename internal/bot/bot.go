package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/scibot/pkg/models"
)

// Notifier sends review reminders through the Telegram Bot API.
// It only talks outbound; incoming updates are never consumed.
type Notifier struct {
	api    *tgbotapi.BotAPI
	config *Config
	logger *log.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithConfig overrides the reminder configuration.
func WithConfig(cfg *Config) Option {
	return func(n *Notifier) {
		n.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// New authorizes against the public Telegram endpoint.
func New(token string, opts ...Option) (*Notifier, error) {
	return NewWithClient(token, tgbotapi.APIEndpoint, nil, opts...)
}

// NewWithClient authorizes against endpoint, a format string taking the
// token and method name. A nil client uses http.DefaultClient.
func NewWithClient(token, endpoint string, client tgbotapi.HTTPClient, opts ...Option) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is not set")
	}
	n := &Notifier{
		config: DefaultConfig(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}

	var (
		api *tgbotapi.BotAPI
		err error
	)
	if client == nil {
		api, err = tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	} else {
		api, err = tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	n.api = api
	n.logger.Info("telegram notifier authorized", "account", api.Self.UserName)
	return n, nil
}

// SendReminder implements the scheduler.Notifier interface. Learners without
// a telegram chat are skipped.
func (n *Notifier) SendReminder(ctx context.Context, learner models.Learner, due []models.KnowledgeItem) error {
	if !learner.TelegramID.Valid {
		n.logger.Debug("learner has no telegram chat, skipping reminder", "learner", learner.ID)
		return nil
	}
	if len(due) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(learner.TelegramID.Int64, FormatReminder(due, n.config))
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to chat %d: %w", learner.TelegramID.Int64, err)
	}
	n.logger.Info("reminder sent", "learner", learner.ID, "concepts", len(due))
	return nil
}

// Broadcast sends text to every chat id, for operator notices such as
// startup and shutdown. It keeps going past failed chats.
func (n *Notifier) Broadcast(ctx context.Context, chatIDs []int64, text string) error {
	var errs []error
	for _, id := range chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := n.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// FormatReminder renders the reminder text for a list of due concepts.
func FormatReminder(due []models.KnowledgeItem, cfg *Config) string {
	var b strings.Builder
	if len(due) == 1 {
		b.WriteString("You have 1 concept due for review:\n")
	} else {
		fmt.Fprintf(&b, "You have %d concepts due for review:\n", len(due))
	}

	listed := due
	if cfg.MaxListed > 0 && len(listed) > cfg.MaxListed {
		listed = listed[:cfg.MaxListed]
	}
	for i, item := range listed {
		fmt.Fprintf(&b, "%d. %s", i+1, item.ConceptName)
		if cfg.ShowRetention {
			fmt.Fprintf(&b, " (%.0f%%)", item.Retention*100)
		}
		b.WriteString("\n")
	}
	if rest := len(due) - len(listed); rest > 0 {
		fmt.Fprintf(&b, "...and %d more\n", rest)
	}
	return strings.TrimRight(b.String(), "\n")
}
