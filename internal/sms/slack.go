package sms

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackProvider posts verification codes to a Slack channel. This is a
// staging/dev delivery path: the team sees the codes without a paid SMS
// gateway. Not for production traffic.
type SlackProvider struct {
	client  slackClient
	channel string
}

// SlackOpts holds parameters for creating a SlackProvider.
type SlackOpts struct {
	Token   string // xoxb-... bot token
	Channel string // channel to post codes to
}

// NewSlackProvider creates a SlackProvider.
func NewSlackProvider(opts SlackOpts) (*SlackProvider, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("sms: slack provider: token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("sms: slack provider: channel is required")
	}
	return &SlackProvider{
		client:  slackapi.New(opts.Token),
		channel: opts.Channel,
	}, nil
}

// Send posts the message to the configured channel, tagged with the target
// phone number.
func (p *SlackProvider) Send(ctx context.Context, to, body string) error {
	text := fmt.Sprintf("SMS to %s: %s", to, body)
	_, _, err := p.client.PostMessageContext(ctx, p.channel, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("sms: slack post to %s: %w", p.channel, err)
	}
	return nil
}
