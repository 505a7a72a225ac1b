// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/orgvanize/slackline/pkg/bridge/correlate"
)

type updateCall struct {
	Channel string
	TS      string
	Text    string
}

type deleteCall struct {
	Channel string
	TS      string
}

type ephemeralCall struct {
	Channel string
	User    string
	Text    string
}

type reactionCall struct {
	Emoji   string
	Channel string
	TS      string
}

// fakeAPI is an in-memory API for one workspace. Directory data is seeded
// through the maps; outbound calls are recorded for assertions.
type fakeAPI struct {
	mu sync.Mutex

	team     slack.TeamInfo
	channels map[string]slack.Channel
	users    map[string]slack.User
	members  map[string][]string
	history  map[string][]slack.Message

	posted     []Message
	updates    []updateCall
	deletions  []deleteCall
	ephemerals []ephemeralCall
	reactions  []reactionCall

	postErr error
	base    int64
	seq     int
}

// fakeInstances distinguishes the timestamps minted by each fake so records
// from two workspaces never collide in a shared store.
var fakeInstances atomic.Int64

func newFakeAPI(teamID, domain string) *fakeAPI {
	return &fakeAPI{
		base:     9000 + fakeInstances.Add(1),
		team:     slack.TeamInfo{ID: teamID, Name: domain, Domain: domain},
		channels: make(map[string]slack.Channel),
		users:    make(map[string]slack.User),
		members:  make(map[string][]string),
		history:  make(map[string][]slack.Message),
	}
}

func (f *fakeAPI) addChannel(id, name string, members ...string) {
	f.channels[id] = slack.Channel{
		GroupConversation: slack.GroupConversation{
			Conversation: slack.Conversation{ID: id},
			Name:         name,
		},
	}
	f.members[id] = members
}

func (f *fakeAPI) addIM(id, user string) {
	f.channels[id] = slack.Channel{
		GroupConversation: slack.GroupConversation{
			Conversation: slack.Conversation{ID: id, IsIM: true, User: user},
		},
	}
}

func (f *fakeAPI) addUser(id, realName string) {
	f.users[id] = slack.User{
		ID: id,
		Profile: slack.UserProfile{
			RealName: realName,
			Image512: "https://avatars.example/" + id,
		},
	}
}

func (f *fakeAPI) TeamInfo(context.Context) (*slack.TeamInfo, error) {
	team := f.team
	return &team, nil
}

func (f *fakeAPI) ChannelInfo(_ context.Context, channelID string) (*slack.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("channel_not_found: %s", channelID)
	}
	return &channel, nil
}

func (f *fakeAPI) UserInfo(_ context.Context, userID string) (*slack.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user_not_found: %s", userID)
	}
	return &user, nil
}

func (f *fakeAPI) Conversations(_ context.Context, types []string) ([]slack.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wantIM := slices.Contains(types, "im")
	wantChannel := slices.Contains(types, "public_channel") || slices.Contains(types, "private_channel")
	var out []slack.Channel
	for _, channel := range f.channels {
		if (channel.IsIM && wantIM) || (!channel.IsIM && wantChannel) {
			out = append(out, channel)
		}
	}
	return out, nil
}

func (f *fakeAPI) Members(_ context.Context, channelID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.members[channelID]), nil
}

func (f *fakeAPI) LatestMessage(_ context.Context, channelID string) (*slack.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.history[channelID]
	if len(msgs) == 0 {
		return nil, nil
	}
	msg := msgs[0]
	return &msg, nil
}

func (f *fakeAPI) PostMessage(_ context.Context, msg Message) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", "", f.postErr
	}
	f.seq++
	f.posted = append(f.posted, msg)
	// Resolve a channel name to its ID the way the platform does.
	conversation := msg.Channel
	for id, channel := range f.channels {
		if channel.Name == msg.Channel {
			conversation = id
			break
		}
	}
	return conversation, fmt.Sprintf("%d.%06d", f.base, f.seq), nil
}

func (f *fakeAPI) UpdateMessage(_ context.Context, channelID, ts, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{Channel: channelID, TS: ts, Text: text})
	return nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, channelID, ts string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletions = append(f.deletions, deleteCall{Channel: channelID, TS: ts})
	msgs := f.history[channelID]
	for i, msg := range msgs {
		if msg.Timestamp == ts {
			f.history[channelID] = append(slices.Clone(msgs[:i]), msgs[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAPI) PostEphemeral(_ context.Context, channelID, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, ephemeralCall{Channel: channelID, User: userID, Text: text})
	return nil
}

func (f *fakeAPI) AddReaction(_ context.Context, emoji, channelID, ts string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reactionCall{Emoji: emoji, Channel: channelID, TS: ts})
	return nil
}

func (f *fakeAPI) Posted() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.posted)
}

func (f *fakeAPI) Updates() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.updates)
}

func (f *fakeAPI) Deletions() []deleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deletions)
}

func (f *fakeAPI) Ephemerals() []ephemeralCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ephemerals)
}

func (f *fakeAPI) Reactions() []reactionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.reactions)
}

// testBridge is the standard two-workspace fixture: "avengers" and "xmen",
// each with a #general bridged to the other's.
type testBridge struct {
	*Bridge
	avengers *fakeAPI
	xmen     *fakeAPI
}

// Seeded directory of the fixture.
const (
	avnTeam    = "TAVN"
	avnGeneral = "C1"
	avnTonyIM  = "D1"
	xmnTeam    = "TXMN"
	xmnGeneral = "C2"
	xmnJeanIM  = "D2"
)

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	t.Setenv("LINE_avengers_general", "xmen#general")
	t.Setenv("LINE_xmen_general", "avengers#general")

	avengers := newFakeAPI(avnTeam, "avengers")
	avengers.addUser("U1", "Tony Stark")
	avengers.addUser("U2", "Steve Rogers")
	avengers.addChannel(avnGeneral, "general", "U1", "U2")
	avengers.addIM(avnTonyIM, "U1")

	xmen := newFakeAPI(xmnTeam, "xmen")
	xmen.addUser("X1", "Jean Grey")
	xmen.addUser("X2", "Scott Summers")
	xmen.addChannel(xmnGeneral, "general", "X1", "X2")
	xmen.addIM(xmnJeanIM, "X1")

	clients := NewRegistry()
	clients.Add("avengers", avengers)
	clients.Add("xmen", xmen)

	cfg := &Config{
		Port:   "8080",
		Tokens: map[string]string{"avengers": "tok0", "xmen": "tok1"},
	}
	b := NewWithClients(cfg, correlate.NewMemory(), clients, zerolog.Nop())
	if !b.Bootstrap(context.Background()) {
		t.Fatal("fixture bootstrap failed")
	}
	return &testBridge{Bridge: b, avengers: avengers, xmen: xmen}
}

// waitFor polls until cond holds, for assertions against work done on
// background goroutines.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
