package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink posts event text to one channel over the REST API. No gateway
// session is opened.
type DiscordSink struct {
	session   channelSender
	channelID string
}

func NewDiscordSink(token, channelID string) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordSink{session: session, channelID: channelID}, nil
}

func (s *DiscordSink) Publish(ctx context.Context, ev Event) error {
	if _, err := s.session.ChannelMessageSend(s.channelID, ev.Text(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}
