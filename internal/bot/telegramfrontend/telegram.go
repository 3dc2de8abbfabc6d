// Package telegramfrontend bridges a Telegram bot (long polling) into
// the bot.Frontend contract. Grounded on the pack's own convergence on
// go-telegram-bot-api/telegram-bot-api/v5 for exactly this private-
// text-message-to-agent bridging role across several retrieved bridge
// repos.
package telegramfrontend

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cc-bridge/internal/bot"
)

// Frontend is a long-polling Telegram bot.Frontend implementation.
type Frontend struct {
	api *tgbotapi.BotAPI

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New authenticates against the Telegram Bot API using token.
func New(token string) (*Frontend, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticating bot: %w", err)
	}
	return &Frontend{api: api}, nil
}

// Start begins long-polling for updates and pushes private text
// messages onto in. Groups, non-text updates, and messages from the
// bot itself are filtered out before ever reaching the router.
func (f *Frontend) Start(ctx context.Context, in chan<- bot.InboundMessage) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := f.api.GetUpdatesChan(u)

	f.mu.Lock()
	f.stopChan = make(chan struct{})
	stopChan := f.stopChan
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopChan:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				f.handleUpdate(update, in)
			}
		}
	}()
	return nil
}

func (f *Frontend) handleUpdate(update tgbotapi.Update, in chan<- bot.InboundMessage) {
	if update.Message == nil {
		return
	}
	msg := update.Message
	if msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}
	if msg.Text == "" {
		return
	}

	nickname := msg.From.UserName
	if nickname == "" {
		nickname = msg.From.FirstName
	}

	in <- bot.InboundMessage{
		Wxid:     strconv.FormatInt(msg.Chat.ID, 10),
		Nickname: nickname,
		Text:     msg.Text,
	}
}

// Send delivers text to the Telegram chat identified by wxid (the
// chat ID rendered as a decimal string).
func (f *Frontend) Send(ctx context.Context, wxid, text string) error {
	chatID, err := strconv.ParseInt(wxid, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", wxid, err)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := f.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: sending to %s: %w", wxid, err)
	}
	return nil
}

// Stop ends the update-polling loop.
func (f *Frontend) Stop(ctx context.Context) error {
	f.mu.Lock()
	stopChan := f.stopChan
	f.mu.Unlock()
	if stopChan != nil {
		close(stopChan)
	}
	f.api.StopReceivingUpdates()
	f.wg.Wait()
	log.Printf("[telegramfrontend] stopped")
	return nil
}
