package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type GmailSender struct {
	svc  *gmail.Service
	from string
}

// NewGmailSender authenticates with a long-lived OAuth refresh token.
func NewGmailSender(ctx context.Context, clientID, clientSecret, refreshToken, from string) (*GmailSender, error) {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return &GmailSender{svc: svc, from: from}, nil
}

func (g *GmailSender) Send(ctx context.Context, to, subject, body string) error {
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(buildMIME(g.from, to, subject, body))}
	_, err := g.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	return err
}

func buildMIME(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(subject, "\n", " "))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
