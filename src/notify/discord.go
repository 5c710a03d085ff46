package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/bobu-forum/src/forum/view"
)

const MaxDiscordMessageLen = 2000

type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts a one-line summary of each event to a channel.
type Discord struct {
	sender    messageSender
	channelID string
	baseURL   string
}

// NewDiscord opens a bot session. The session is only used for REST calls,
// so no gateway connection is made.
func NewDiscord(token, channelID, baseURL string) (*Discord, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{sender: s, channelID: channelID, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Discord) Publish(ctx context.Context, ev Event) error {
	msg := FormatMessage(ev, d.baseURL)
	if msg == "" {
		return nil
	}
	_, err := d.sender.ChannelMessageSend(d.channelID, msg, discordgo.WithContext(ctx))
	return err
}

// FormatMessage renders ev for Discord, or "" for kinds not announced.
func FormatMessage(ev Event, baseURL string) string {
	var line string
	who := view.ShortAddress(ev.Actor)
	switch ev.Kind {
	case KindProposalCreated:
		line = fmt.Sprintf("📝 New proposal **%s** submitted by %s", ev.Title, who)
	case KindCommentAdded:
		line = fmt.Sprintf("💬 %s commented on %s", who, view.ShortAddress(ev.Proposal))
		if ev.Detail != "" {
			line += " (" + ev.Detail + ")"
		}
	case KindActivation:
		line = fmt.Sprintf("🗳️ %s requested %s for %s", who, ev.Detail, view.ShortAddress(ev.Proposal))
	case KindWindowSet:
		line = fmt.Sprintf("⏱️ Voting window updated for %s: %s", view.ShortAddress(ev.Proposal), ev.Detail)
	default:
		return ""
	}
	if baseURL != "" && ev.Kind != KindProposalCreated {
		line += "\n" + baseURL + "/#/proposal/" + ev.Proposal.Hex()
	}
	line += "\ntx " + ev.Tx.Hex()
	return truncate(line, MaxDiscordMessageLen)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
