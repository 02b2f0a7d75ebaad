package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// Poster posts an admin-facing message to a chat channel.
type Poster interface {
	Post(ctx context.Context, title, body string, fields map[string]string) error
}

type DiscordWebhook struct {
	url    string
	client *http.Client
}

func NewDiscordWebhook(url string) *DiscordWebhook {
	return &DiscordWebhook{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (d *DiscordWebhook) Post(ctx context.Context, title, body string, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	emb := discordEmbed{Title: title, Description: body, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	for _, k := range keys {
		emb.Fields = append(emb.Fields, discordField{Name: k, Value: fields[k], Inline: true})
	}

	payload, err := json.Marshal(discordMessage{Embeds: []discordEmbed{emb}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status %d", resp.StatusCode)
	}
	return nil
}
