// Package telegram is the messaging front-end: it receives questions,
// asks the retrieval service for context, and replies with a grounded
// answer. Everything here is thin glue over the RAG core.
package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/knowbase/docbot/internal/ai"
	"github.com/knowbase/docbot/internal/retrieve"
	docmodels "github.com/knowbase/docbot/pkg/models"
)

// Retriever is the slice of the retrieval service the bot needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]docmodels.RetrievalResult, error)
}

// Bot answers Telegram messages using the document knowledge base.
type Bot struct {
	bot       *bot.Bot
	retriever Retriever
	generator ai.Generator
	allowed   map[int64]bool
}

// New creates a Telegram bot. An empty allowedIDs list means the bot is
// open to everyone.
func New(token string, retriever Retriever, generator ai.Generator, allowedIDs []int64) (*Bot, error) {
	b := &Bot{
		retriever: retriever,
		generator: generator,
		allowed:   make(map[int64]bool, len(allowedIDs)),
	}
	for _, id := range allowedIDs {
		b.allowed[id] = true
	}

	api, err := bot.New(token,
		bot.WithDefaultHandler(b.handleQuestion),
		bot.WithMiddlewares(b.accessControl),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}
	api.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, b.handleStart)

	b.bot = api
	return b, nil
}

// Start begins long polling and blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	log.Info().Msg("telegram bot started")
	b.bot.Start(ctx)
}

// accessControl rejects messages from users outside the allowlist.
func (b *Bot) accessControl(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, api *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		userID := update.Message.From.ID
		if len(b.allowed) > 0 && !b.allowed[userID] {
			log.Warn().Int64("user_id", userID).Msg("access denied")
			_, _ = api.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: update.Message.Chat.ID,
				Text:   "Access to this bot is restricted. Please contact the administrator.",
			})
			return
		}
		next(ctx, api, update)
	}
}

func (b *Bot) handleStart(ctx context.Context, api *bot.Bot, update *models.Update) {
	name := "there"
	if update.Message.From != nil && update.Message.From.FirstName != "" {
		name = update.Message.From.FirstName
	}

	text := "Hello, " + name + "!\n\n" +
		"I answer questions using the company knowledge base. " +
		"Just send me a question and I will look it up in the documents."

	_, _ = api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text,
	})
}

// handleQuestion runs the full question flow: retrieve context, generate
// an answer, reply. Retrieval returning nothing is a normal outcome and
// still produces an answer; only real failures get the apology message.
func (b *Bot) handleQuestion(ctx context.Context, api *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	question := update.Message.Text

	log.Info().Int64("chat_id", chatID).Str("question", truncate(question, 50)).Msg("question received")

	_, _ = api.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: "typing",
	})

	results, err := b.retriever.Retrieve(ctx, question, 0)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("retrieval failed")
		b.apologize(ctx, api, chatID)
		return
	}

	answer, err := b.generator.Generate(ctx, question, retrieve.BuildContext(results))
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("generation failed")
		b.apologize(ctx, api, chatID)
		return
	}

	_, _ = api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   answer,
	})
}

func (b *Bot) apologize(ctx context.Context, api *bot.Bot, chatID int64) {
	_, _ = api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "An error occurred. Please try again.",
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
