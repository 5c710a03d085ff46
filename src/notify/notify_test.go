package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	events []Event
	err    error
}

func (r *recordSink) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

type recordSender struct {
	channel, content string
}

func (r *recordSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.channel, r.content = channelID, content
	return &discordgo.Message{ID: "1"}, nil
}

type recordStream struct {
	kind   string
	fields map[string]interface{}
}

func (r *recordStream) Publish(_ context.Context, kind string, fields map[string]interface{}) error {
	r.kind, r.fields = kind, fields
	return nil
}

var (
	proposal = common.HexToAddress("0x2222222222222222222222222222222222222222")
	actor    = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func TestMultiJoinsErrors(t *testing.T) {
	a, b := &recordSink{}, &recordSink{err: errors.New("down")}
	err := Multi{a, nil, b}.Publish(context.Background(), Event{Kind: KindCommentAdded})
	require.Error(t, err)
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.NoError(t, Multi{a}.Publish(context.Background(), Event{}))
	assert.NoError(t, Discard{}.Publish(context.Background(), Event{}))
}

func TestStreamFields(t *testing.T) {
	rs := &recordStream{}
	ev := Event{Kind: KindProposalCreated, Actor: actor, Title: "T"}
	require.NoError(t, Stream{Pub: rs}.Publish(context.Background(), ev))
	assert.Equal(t, KindProposalCreated, rs.kind)
	assert.Equal(t, "T", rs.fields["title"])
	assert.NotContains(t, rs.fields, "proposal")
}

func TestDiscordPublish(t *testing.T) {
	rs := &recordSender{}
	d := &Discord{sender: rs, channelID: "42", baseURL: "https://forum.example"}
	ev := Event{Kind: KindCommentAdded, Proposal: proposal, Actor: actor, Detail: "positive"}
	require.NoError(t, d.Publish(context.Background(), ev))
	assert.Equal(t, "42", rs.channel)
	assert.Contains(t, rs.content, "0x1111...1111 commented on 0x2222...2222 (positive)")
	assert.Contains(t, rs.content, "https://forum.example/#/proposal/"+proposal.Hex())

	rs.content = ""
	require.NoError(t, d.Publish(context.Background(), Event{Kind: KindStateSync}))
	assert.Empty(t, rs.content)
}

func TestFormatMessageTruncates(t *testing.T) {
	msg := FormatMessage(Event{Kind: KindProposalCreated, Title: strings.Repeat("x", 3000)}, "")
	assert.Equal(t, MaxDiscordMessageLen, utf8.RuneCountInString(msg))
}
