package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/qrchat/internal/config"
	"github.com/zulandar/qrchat/internal/models"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts session activity to a Discord channel. Only the REST API is
// used; no gateway connection is opened.
type Discord struct {
	sess    discordSession
	channel string
}

// NewDiscord creates a Discord notifier from config.
func NewDiscord(cfg config.DiscordConfig) (*Discord, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("notify: discord client: %w", err)
	}
	return &Discord{sess: dg, channel: cfg.Channel}, nil
}

func (d *Discord) VisitorRegistered(_ context.Context, sess *models.Session, v *models.Visitor) {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("New visitor in %s", sessionLabel(sess)),
		Color: 0x36a64f,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Name", Value: v.Name, Inline: true},
			{Name: "Phone", Value: v.Phone, Inline: true},
			{Name: "Email", Value: v.Email, Inline: true},
			{Name: "Visit type", Value: string(v.VisitType), Inline: true},
		},
	}
	if _, err := d.sess.ChannelMessageSendEmbed(d.channel, embed); err != nil {
		log.Printf("notify: discord embed failed: %v", err)
	}
}

func (d *Discord) MessageReceived(_ context.Context, sess *models.Session, v *models.Visitor, m *models.Message) {
	content := fmt.Sprintf("**%s** in %s: %s", v.Name, sessionLabel(sess), m.Body)
	if _, err := d.sess.ChannelMessageSend(d.channel, content); err != nil {
		log.Printf("notify: discord send failed: %v", err)
	}
}
