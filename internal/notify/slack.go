package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Slack posts to an incoming webhook.
type Slack struct {
	Webhook string
	Client  *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	TitleLink string       `json:"title_link,omitempty"`
	Fields    []slackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Ts        int64        `json:"ts,omitempty"`
	ThumbURL  string       `json:"thumb_url,omitempty"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

func slackBody(msg Message) slackPayload {
	att := slackAttachment{
		Color:     msg.Color,
		Title:     msg.Headline,
		TitleLink: msg.Link,
		Footer:    msg.Footer,
		ThumbURL:  msg.Thumbnail,
	}
	if !msg.Timestamp.IsZero() {
		att.Ts = msg.Timestamp.Unix()
	}
	for _, f := range msg.Fields {
		v := f.Value
		if f.Emphasized && v != "" {
			v = "*" + v + "*"
		}
		att.Fields = append(att.Fields, slackField{Title: f.Title, Value: v, Short: f.Inline})
	}
	return slackPayload{Text: "*" + msg.Headline + "*", Attachments: []slackAttachment{att}}
}

func (s *Slack) Deliver(ctx context.Context, msg Message) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	body, err := json.Marshal(slackBody(msg))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack non-2xx: %d %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
