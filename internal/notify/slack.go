package notify

import (
	"context"
	"fmt"
	"log"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/qrchat/internal/config"
	"github.com/zulandar/qrchat/internal/models"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts session activity to a Slack channel.
type Slack struct {
	client  slackClient
	channel string
}

// NewSlack creates a Slack notifier from config.
func NewSlack(cfg config.SlackConfig) *Slack {
	return &Slack{
		client:  slackapi.New(cfg.Token),
		channel: cfg.Channel,
	}
}

func (s *Slack) VisitorRegistered(ctx context.Context, sess *models.Session, v *models.Visitor) {
	attachment := slackapi.Attachment{
		Color: "#36a64f",
		Title: fmt.Sprintf("New visitor in %s", sessionLabel(sess)),
		Fields: []slackapi.AttachmentField{
			{Title: "Name", Value: v.Name, Short: true},
			{Title: "Phone", Value: v.Phone, Short: true},
			{Title: "Email", Value: v.Email, Short: true},
			{Title: "Visit type", Value: string(v.VisitType), Short: true},
		},
	}
	s.post(ctx, slackapi.MsgOptionAttachments(attachment))
}

func (s *Slack) MessageReceived(ctx context.Context, sess *models.Session, v *models.Visitor, m *models.Message) {
	text := fmt.Sprintf("*%s* in %s: %s", v.Name, sessionLabel(sess), m.Body)
	s.post(ctx, slackapi.MsgOptionText(text, false))
}

func (s *Slack) post(ctx context.Context, options ...slackapi.MsgOption) {
	if _, _, err := s.client.PostMessageContext(ctx, s.channel, options...); err != nil {
		log.Printf("notify: slack post failed: %v", err)
	}
}
