package notify

import (
	"context"
	"errors"
	"html"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Telegram owns one bot; Chat hands out per-chat transports sharing it.
type Telegram struct {
	bot *tele.Bot
}

// NewTelegram builds an offline bot (no getMe round-trip). apiURL may be
// empty for the public Bot API.
func NewTelegram(token, apiURL string) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b}, nil
}

func (t *Telegram) Chat(id int64) Transport {
	return &telegramChat{bot: t.bot, chatID: id}
}

type telegramChat struct {
	bot    *tele.Bot
	chatID int64
}

func (c *telegramChat) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chat := &tele.Chat{ID: c.chatID}
	_, err := c.bot.Send(chat, telegramText(msg), &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: msg.Thumbnail == "",
	})
	return err
}

func telegramText(msg Message) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(msg.Headline))
	b.WriteString("</b>")
	for _, f := range msg.Fields {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(f.Title))
		b.WriteString(": ")
		v := html.EscapeString(f.Value)
		if f.Emphasized {
			v = "<b>" + v + "</b>"
		}
		b.WriteString(v)
	}
	if msg.Link != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(msg.Link))
	}
	if msg.Footer != "" {
		b.WriteString("\n<i>")
		b.WriteString(html.EscapeString(msg.Footer))
		b.WriteString("</i>")
	}
	return b.String()
}
