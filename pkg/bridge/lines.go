// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Pair identifies the remote side of a bridged channel.
type Pair struct {
	Workspace string
	Channel   string
}

// Lines resolves the static pairing between a (workspace, channel) and its
// counterpart. Each pairing is declared as
//
//	LINE_<workspace>_<channel> = otherworkspace#otherchannel
//
// with "-" spelled "__hyphen__" in the variable name because environment
// variable names cannot contain hyphens. Declarations are read lazily and
// memoized; there is no mutation after that, and an unconfigured side simply
// yields "not bridged".
type Lines struct {
	log zerolog.Logger

	mu    sync.Mutex
	pairs map[string]*Pair
}

func NewLines(log zerolog.Logger) *Lines {
	return &Lines{
		log:   log.With().Str("component", "lines").Logger(),
		pairs: make(map[string]*Pair),
	}
}

// Pair returns the remote counterpart of the given channel, or nil when the
// channel is not bridged. Unless quiet, a missing declaration is logged.
func (l *Lines) Pair(workspace, channel string, quiet bool) *Pair {
	key := workspace + "#" + channel
	l.mu.Lock()
	defer l.mu.Unlock()
	if pair, ok := l.pairs[key]; ok {
		return pair
	}

	variable := "LINE_" + escaped(workspace) + "_" + escaped(channel)
	value := os.Getenv(variable)
	if value == "" {
		if !quiet {
			l.log.Warn().Str("variable", variable).Msg("Environment is missing bridge declaration")
		}
		return nil
	}

	remoteWorkspace, remoteChannel, ok := strings.Cut(value, "#")
	if !ok || strings.Contains(remoteChannel, "#") {
		l.log.Warn().Str("variable", variable).Msg("Bridge declaration is not #-delimited")
		return nil
	}

	pair := &Pair{Workspace: remoteWorkspace, Channel: remoteChannel}
	l.pairs[key] = pair
	return pair
}

// escaped rewrites a name into the form usable in an environment variable
// name.
func escaped(name string) string {
	return strings.ReplaceAll(name, "-", "__hyphen__")
}
