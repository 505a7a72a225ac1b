// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Profile is a resolved user identity.
type Profile struct {
	Name   string
	Avatar string
}

// scope keys the reverse name index: display names are only meaningful
// within one channel of one workspace.
type scope struct {
	workspace string
	channel   string
	name      string
}

// Resolver is the identity cache. It memoizes directory lookups (user,
// channel, workspace) and maintains the reverse index from display name to
// user ID, scoped per (workspace, channel). Entries are created lazily on
// first reference and never expire; the only eviction is ForgetUser on
// channel leave.
//
// Directory failures are logged and surface as zero values so callers can
// degrade (post without enrichment) instead of halting.
type Resolver struct {
	log     zerolog.Logger
	clients *Registry
	lines   *Lines

	mu         sync.RWMutex
	channels   map[string]string            // channel ID -> channel name
	users      map[string]Profile           // user ID -> profile
	uids       map[scope]string             // (workspace, channel, name) -> user ID
	teams      map[string]string            // channel ID -> team ID
	workspaces map[string]string            // team ID -> workspace domain
	ims        map[string]map[string]string // workspace -> user ID -> IM conversation ID
}

func NewResolver(clients *Registry, lines *Lines, log zerolog.Logger) *Resolver {
	return &Resolver{
		log:        log.With().Str("component", "resolver").Logger(),
		clients:    clients,
		lines:      lines,
		channels:   make(map[string]string),
		users:      make(map[string]Profile),
		uids:       make(map[scope]string),
		teams:      make(map[string]string),
		workspaces: make(map[string]string),
		ims:        make(map[string]map[string]string),
	}
}

// ChannelName resolves and memoizes a channel's display name. Returns ""
// when the directory lookup fails.
func (r *Resolver) ChannelName(ctx context.Context, channelID, workspace string) string {
	r.mu.RLock()
	name, ok := r.channels[channelID]
	r.mu.RUnlock()
	if ok {
		return name
	}

	api := r.clients.Lookup(workspace)
	if api == nil {
		return ""
	}
	channel, err := api.ChannelInfo(ctx, channelID)
	if err != nil {
		r.log.Warn().Err(err).Str("channel_id", channelID).Msg("Failed to cache channel info")
		return ""
	}

	r.mu.Lock()
	r.channels[channelID] = channel.Name
	r.mu.Unlock()
	return channel.Name
}

// User resolves a user's display name and avatar. When update is true the
// profile is memoized and the (workspace, channel, name) reverse mapping is
// registered; update=false looks the user up without assuming channel
// membership (used for mentions of outsiders). Returns nil on lookup
// failure.
func (r *Resolver) User(ctx context.Context, userID, channel, workspace string, update bool) *Profile {
	r.mu.RLock()
	profile, ok := r.users[userID]
	r.mu.RUnlock()

	if !ok {
		api := r.clients.Lookup(workspace)
		if api == nil {
			return nil
		}
		user, err := api.UserInfo(ctx, userID)
		if err != nil {
			r.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to cache user info")
			return nil
		}
		profile = Profile{Name: user.Profile.RealName, Avatar: user.Profile.Image512}
		if !update {
			return &profile
		}
		r.mu.Lock()
		r.users[userID] = profile
		r.mu.Unlock()
	}

	if update {
		r.mu.Lock()
		r.uids[scope{workspace, channel, profile.Name}] = userID
		r.mu.Unlock()
	}
	return &profile
}

// ForgetUser drops the reverse-index entry for a user in one channel scope,
// used on channel leave. The cached profile itself is kept.
func (r *Resolver) ForgetUser(ctx context.Context, userID, channel, workspace string) {
	profile := r.User(ctx, userID, channel, workspace, false)
	if profile == nil {
		return
	}
	r.mu.Lock()
	delete(r.uids, scope{workspace, channel, profile.Name})
	r.mu.Unlock()
}

// FindByName resolves a display name to a user ID within a channel scope.
// An exact match returns (id, nil); otherwise it returns ("", candidates)
// where candidates is the sorted set of every known name in that scope, for
// "did you mean" suggestions.
func (r *Resolver) FindByName(name, channel, workspace string) (string, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.uids[scope{workspace, channel, name}]; ok && id != "" {
		return id, nil
	}
	return "", r.namesLocked(channel, workspace)
}

// Names returns the sorted display names known in a channel scope.
func (r *Resolver) Names(channel, workspace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked(channel, workspace)
}

func (r *Resolver) namesLocked(channel, workspace string) []string {
	var names []string
	for key, id := range r.uids {
		if id != "" && key.workspace == workspace && key.channel == channel {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names
}

// IsMember reports whether the user's display name is registered in the
// channel's reverse index.
func (r *Resolver) IsMember(ctx context.Context, userID, channel, workspace string) bool {
	profile := r.User(ctx, userID, channel, workspace, false)
	if profile == nil {
		return false
	}
	id, _ := r.FindByName(profile.Name, channel, workspace)
	return id != ""
}

// WorkspaceDomain maps a team ID to its workspace domain. Domains are
// registered at bootstrap; an unknown team degrades to "".
func (r *Resolver) WorkspaceDomain(teamID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	domain, ok := r.workspaces[teamID]
	if !ok {
		r.log.Warn().Str("team_id", teamID).Msg("Team was never bootstrapped")
	}
	return domain
}

// TeamOf maps a channel ID to the team ID it was observed in.
func (r *Resolver) TeamOf(channelID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.teams[channelID]
}

// IM returns the ID of the direct-message conversation with a user,
// enumerating the workspace's IM list on first miss. Returns "" when the
// lookup fails (typically a missing im:read scope, which is logged).
func (r *Resolver) IM(ctx context.Context, userID, workspace string) string {
	r.mu.RLock()
	id := r.ims[workspace][userID]
	r.mu.RUnlock()
	if id != "" {
		return id
	}

	api := r.clients.Lookup(workspace)
	if api == nil {
		return ""
	}
	channels, err := api.Conversations(ctx, []string{"im"})
	if err != nil {
		r.log.Warn().Err(err).
			Str("workspace", workspace).
			Str("user_id", userID).
			Msg("Workspace missing OAuth scope im:read?")
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ims := r.ims[workspace]
	if ims == nil {
		ims = make(map[string]string)
		r.ims[workspace] = ims
	}
	for _, channel := range channels {
		if ims[channel.User] == "" {
			ims[channel.User] = channel.ID
		}
	}
	return ims[userID]
}

// SetIM registers a known IM conversation without a directory call, used
// during bootstrap.
func (r *Resolver) SetIM(userID, workspace, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ims := r.ims[workspace]
	if ims == nil {
		ims = make(map[string]string)
		r.ims[workspace] = ims
	}
	if ims[userID] == "" {
		ims[userID] = conversationID
	}
}

// IMOwner reverse-maps an IM conversation ID to the remote user it belongs
// to, or "".
func (r *Resolver) IMOwner(conversationID, workspace string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for userID, id := range r.ims[workspace] {
		if id == conversationID {
			return userID
		}
	}
	return ""
}

// Bootstrap walks every registered workspace: resolves its team identity,
// enumerates its conversations, and pre-populates the roster of every
// bridged channel into the reverse index. IM conversations are indexed by
// remote user. Failures are logged and degrade the affected capability
// rather than halting; the return value reports whether every workspace
// bootstrapped cleanly.
func (r *Resolver) Bootstrap(ctx context.Context) bool {
	clean := true
	for _, domain := range r.clients.Domains() {
		if !r.bootstrapWorkspace(ctx, domain) {
			clean = false
		}
	}
	return clean
}

func (r *Resolver) bootstrapWorkspace(ctx context.Context, domain string) bool {
	api, ok := r.clients.Get(domain)
	if !ok {
		return false
	}

	team, err := api.TeamInfo(ctx)
	if err != nil {
		r.log.Error().Err(err).Str("workspace", domain).Msg("Failed to resolve workspace identity")
		return false
	}
	r.mu.Lock()
	r.workspaces[team.ID] = team.Domain
	r.mu.Unlock()

	channels, err := api.Conversations(ctx, []string{"public_channel", "private_channel", "im"})
	if err != nil {
		r.log.Error().Err(err).
			Str("workspace", domain).
			Msg("Missing OAuth scope channels:read, groups:read, and/or im:read?")
		return false
	}

	for _, channel := range channels {
		if !channel.IsIM && r.lines.Pair(team.Domain, channel.Name, true) == nil {
			continue
		}
		r.mu.Lock()
		r.teams[channel.ID] = team.ID
		if !channel.IsIM {
			r.channels[channel.ID] = channel.Name
		}
		r.mu.Unlock()

		if channel.IsIM {
			r.SetIM(channel.User, team.Domain, channel.ID)
			continue
		}

		members, err := api.Members(ctx, channel.ID)
		if err != nil {
			r.log.Warn().Err(err).
				Str("channel", channel.Name).
				Msg("Failed to enumerate channel members")
			continue
		}
		for _, member := range members {
			r.User(ctx, member, channel.Name, team.Domain, true)
		}
	}

	r.log.Info().
		Str("workspace", team.Domain).
		Int("conversations", len(channels)).
		Msg("Workspace bootstrapped")
	return true
}
