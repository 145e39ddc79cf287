package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/eventbridge/core/consumer"
	"github.com/dmitrymomot/eventbridge/core/event"
	"github.com/dmitrymomot/eventbridge/core/logger"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

// Poster sends a reply to a chat channel.
type Poster interface {
	PostMessage(ctx context.Context, channel, text string) error
}

// logPoster records replies instead of calling the chat API.
type logPoster struct {
	log *slog.Logger
}

func (p logPoster) PostMessage(ctx context.Context, channel, text string) error {
	p.log.InfoContext(ctx, "reply",
		logger.Component("poster"),
		slog.String("channel", channel),
		slog.String("text", text),
	)
	return nil
}

type appMention struct {
	User    string `json:"user"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

type channelMessage struct {
	User        string `json:"user"`
	Text        string `json:"text"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
}

// registerHandlers wires the bot's reactions into reg.
func registerHandlers(reg *event.Registry, poster Poster, log *slog.Logger, timeout time.Duration) {
	decorators := []event.Decorator{event.WithTimeout(timeout)}

	reg.On("app_mention", event.Decorate(
		event.Typed(func(ctx context.Context, e appMention) error {
			if e.Channel == "" {
				return consumer.Permanent(event.ErrMissingEvent)
			}
			return poster.PostMessage(ctx, e.Channel, fmt.Sprintf("Hi <@%s>!", e.User))
		}),
		decorators...,
	))

	reg.On("message", event.Decorate(
		event.Typed(func(ctx context.Context, e channelMessage) error {
			if e.ChannelType != "im" {
				return nil
			}
			text := strings.TrimSpace(e.Text)
			if text == "" {
				return nil
			}
			return poster.PostMessage(ctx, e.Channel, "You said: "+text)
		}),
		append(decorators, event.IgnoreBots())...,
	))

	reg.OnAny(func(ctx context.Context, msg queue.Message) error {
		typ, subtype := event.EventType(msg.Payload)
		log.DebugContext(ctx, "event received",
			logger.Component("audit"),
			logger.MessageKey(msg.Key),
			logger.Event(typ),
			slog.String("event_subtype", subtype),
		)
		return nil
	})
}
