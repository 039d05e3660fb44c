package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"profmon/internal/models"
	"profmon/internal/structures"
)

type telegramClient interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

type TelegramSink struct {
	client telegramClient
	chatID int64
}

func NewTelegramSink(conf structures.TelegramSinkConfig) (*TelegramSink, error) {
	b, err := bot.New(conf.Token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSink{client: b, chatID: conf.ChatID}, nil
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) Send(ctx context.Context, ev models.ChangeEvent) error {
	_, err := t.client.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   Render(ev),
	})
	return err
}
