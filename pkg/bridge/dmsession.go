// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import "sync"

// Session is one user's DM tunnel state. A user is paired while TargetID is
// set; Channel records the bridged channel that licensed the pairing so
// reply routing knows which bridge pair to use, and it survives unpairing
// so the next command can infer context. Command remembers the slash
// command the user paired with, for re-pair hints.
type Session struct {
	PeerWorkspace string
	Channel       string
	TargetID      string
	Command       string
}

// Paired reports whether the session currently has a DM target.
func (s Session) Paired() bool {
	return s.TargetID != ""
}

// Sessions tracks the ephemeral DM tunnel of each initiating user. At most
// one target per user; pairing again replaces the previous target without
// an explicit unpair step. Accessors trade in value snapshots so no aliased
// pointer ever leaves the lock. Nothing here is persisted.
type Sessions struct {
	mu     sync.Mutex
	byUser map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byUser: make(map[string]*Session)}
}

// Get returns a snapshot of the user's session. An unknown user reads as an
// unpaired session.
func (s *Sessions) Get(userID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byUser[userID]; ok {
		return *sess
	}
	return Session{}
}

// Pair points the user's DM tunnel at a new target and returns the
// resulting state. An empty command keeps the previously remembered one.
func (s *Sessions) Pair(userID, peerWorkspace, channel, targetID, command string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUser[userID]
	if !ok {
		sess = &Session{}
		s.byUser[userID] = sess
	}
	sess.PeerWorkspace = peerWorkspace
	sess.Channel = channel
	sess.TargetID = targetID
	if command != "" {
		sess.Command = command
	}
	return *sess
}

// Unpair clears the user's DM target. The licensed channel is kept so a
// later command can still infer its context.
func (s *Sessions) Unpair(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byUser[userID]; ok {
		sess.TargetID = ""
	}
}

// PairedWith returns every user currently tunneling to the given target.
func (s *Sessions) PairedWith(targetID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for userID, sess := range s.byUser {
		if sess.TargetID == targetID {
			users = append(users, userID)
		}
	}
	return users
}
