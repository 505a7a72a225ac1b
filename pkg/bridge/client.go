// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
)

// Message is the outbound post contract. Username and IconURL override the
// bot's displayed identity so the copy appears to come from the original
// sender; ThreadTS targets a thread and Broadcast mirrors Slack's
// reply_broadcast flag.
type Message struct {
	Channel   string
	Text      string
	Username  string
	IconURL   string
	ThreadTS  string
	Broadcast bool
}

// API is the per-workspace chat platform surface the bridge depends on.
// Directory lookups feed the identity cache; the rest are outbound calls.
// The production implementation wraps the Slack Web API client; tests
// substitute an in-memory fake.
type API interface {
	TeamInfo(ctx context.Context) (*slack.TeamInfo, error)
	ChannelInfo(ctx context.Context, channelID string) (*slack.Channel, error)
	UserInfo(ctx context.Context, userID string) (*slack.User, error)
	// Conversations lists every conversation of the given types, following
	// pagination cursors until exhausted.
	Conversations(ctx context.Context, types []string) ([]slack.Channel, error)
	// Members lists every member of a conversation, following pagination.
	Members(ctx context.Context, channelID string) ([]string, error)
	// LatestMessage returns a conversation's most recent message, or nil
	// when the conversation is empty.
	LatestMessage(ctx context.Context, channelID string) (*slack.Message, error)

	PostMessage(ctx context.Context, msg Message) (conversation, ts string, err error)
	UpdateMessage(ctx context.Context, channelID, ts, text string) error
	DeleteMessage(ctx context.Context, channelID, ts string) error
	PostEphemeral(ctx context.Context, channelID, userID, text string) error
	AddReaction(ctx context.Context, emoji, channelID, ts string) error
}

// slackAPI implements API against the Slack Web API.
type slackAPI struct {
	client *slack.Client
}

// NewSlackAPI builds the production API for one workspace credential.
func NewSlackAPI(token string) API {
	return &slackAPI{client: slack.New(token)}
}

func (s *slackAPI) TeamInfo(ctx context.Context) (*slack.TeamInfo, error) {
	return s.client.GetTeamInfoContext(ctx)
}

func (s *slackAPI) ChannelInfo(ctx context.Context, channelID string) (*slack.Channel, error) {
	return s.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: channelID,
	})
}

func (s *slackAPI) UserInfo(ctx context.Context, userID string) (*slack.User, error) {
	return s.client.GetUserInfoContext(ctx, userID)
}

func (s *slackAPI) Conversations(ctx context.Context, types []string) ([]slack.Channel, error) {
	var all []slack.Channel
	cursor := ""
	for {
		channels, next, err := s.client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:  types,
			Cursor: cursor,
			Limit:  200,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
		all = append(all, channels...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

func (s *slackAPI) Members(ctx context.Context, channelID string) ([]string, error) {
	var all []string
	cursor := ""
	for {
		members, next, err := s.client.GetUsersInConversationContext(ctx, &slack.GetUsersInConversationParameters{
			ChannelID: channelID,
			Cursor:    cursor,
			Limit:     200,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list members of %s: %w", channelID, err)
		}
		all = append(all, members...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

func (s *slackAPI) LatestMessage(ctx context.Context, channelID string) (*slack.Message, error) {
	resp, err := s.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history of %s: %w", channelID, err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	return &resp.Messages[0], nil
}

func (s *slackAPI) PostMessage(ctx context.Context, msg Message) (string, string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if msg.Username != "" {
		opts = append(opts, slack.MsgOptionUsername(msg.Username))
	}
	if msg.IconURL != "" {
		opts = append(opts, slack.MsgOptionIconURL(msg.IconURL))
	}
	if msg.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadTS))
		if msg.Broadcast {
			opts = append(opts, slack.MsgOptionBroadcast())
		}
	}
	return s.client.PostMessageContext(ctx, msg.Channel, opts...)
}

func (s *slackAPI) UpdateMessage(ctx context.Context, channelID, ts, text string) error {
	_, _, _, err := s.client.UpdateMessageContext(ctx, channelID, ts, slack.MsgOptionText(text, false))
	return err
}

func (s *slackAPI) DeleteMessage(ctx context.Context, channelID, ts string) error {
	_, _, err := s.client.DeleteMessageContext(ctx, channelID, ts)
	return err
}

func (s *slackAPI) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	_, err := s.client.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false))
	return err
}

func (s *slackAPI) AddReaction(ctx context.Context, emoji, channelID, ts string) error {
	return s.client.AddReactionContext(ctx, emoji, slack.NewRefToMessage(channelID, ts))
}

// Registry holds one API client per connected workspace, keyed by workspace
// domain. The first registered client doubles as the fallback for calls
// whose workspace is unknown, so a single-credential deployment still works.
type Registry struct {
	mu       sync.RWMutex
	apis     map[string]API
	fallback API
}

func NewRegistry() *Registry {
	return &Registry{apis: make(map[string]API)}
}

// Add registers a workspace client. The first client added becomes the
// fallback.
func (r *Registry) Add(domain string, api API) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apis[domain] = api
	if r.fallback == nil {
		r.fallback = api
	}
}

// Get returns the client for a workspace domain, or (nil, false).
func (r *Registry) Get(domain string) (API, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	api, ok := r.apis[domain]
	return api, ok
}

// Lookup returns the client for a workspace domain, falling back to the
// first registered client. Returns nil only when no client is registered at
// all.
func (r *Registry) Lookup(domain string) API {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if api, ok := r.apis[domain]; ok {
		return api
	}
	return r.fallback
}

// Domains returns the registered workspace domains.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	domains := make([]string, 0, len(r.apis))
	for domain := range r.apis {
		domains = append(domains, domain)
	}
	return domains
}
