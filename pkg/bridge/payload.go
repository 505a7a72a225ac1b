// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// payloadKind discriminates the inbound payload variants. The shape is
// decided once at the transport boundary; everything downstream dispatches
// on the tag instead of probing fields.
type payloadKind int

const (
	kindUnknown payloadKind = iota
	kindHandshake
	kindCommand
	kindEvent
)

// inbound is the classified form of one delivered payload.
type inbound struct {
	kind      payloadKind
	challenge string
	command   *slack.SlashCommand
	event     *slackevents.EventsAPIEvent
}

// classify decides what kind of payload arrived. JSON bodies are Events API
// traffic (handshake or event callback); form-encoded bodies are slash
// commands. Anything else is unrecognized but non-fatal: the platform grows
// new shapes over time.
func classify(body []byte) (*inbound, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse form payload: %w", err)
		}
		if values.Get("command") == "" {
			return &inbound{kind: kindUnknown}, nil
		}
		return &inbound{kind: kindCommand, command: parseSlashCommand(values)}, nil
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return nil, fmt.Errorf("failed to parse event payload: %w", err)
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			return nil, fmt.Errorf("failed to parse verification challenge: %w", err)
		}
		return &inbound{kind: kindHandshake, challenge: challenge.Challenge}, nil
	case slackevents.CallbackEvent:
		return &inbound{kind: kindEvent, event: &event}, nil
	default:
		return &inbound{kind: kindUnknown}, nil
	}
}

func parseSlashCommand(values url.Values) *slack.SlashCommand {
	return &slack.SlashCommand{
		Token:       values.Get("token"),
		TeamID:      values.Get("team_id"),
		TeamDomain:  values.Get("team_domain"),
		ChannelID:   values.Get("channel_id"),
		ChannelName: values.Get("channel_name"),
		UserID:      values.Get("user_id"),
		UserName:    values.Get("user_name"),
		Command:     values.Get("command"),
		Text:        values.Get("text"),
		ResponseURL: values.Get("response_url"),
	}
}
