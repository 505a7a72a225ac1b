// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

// Package bridge relays messages between paired channels of two Slack
// workspaces. Each workspace delivers Events API callbacks and slash
// commands to the same webhook endpoint; the bridge classifies each payload
// once at that boundary and routes it.
//
// # Core Types
//
// [Bridge] owns the process state: the per-workspace client [Registry], the
// static channel topology ([Lines]), the identity cache ([Resolver]),
// ephemeral DM tunnels ([Sessions]), the message correlation store, and the
// delivery dedup set.
//
// [Resolver] memoizes directory lookups and maintains the reverse index
// from display name to user ID, scoped per (workspace, channel). Display
// names are the only identity that crosses the bridge; user IDs never do.
//
// # Message Correlation
//
// Every relayed message is recorded in both directions (origin timestamp
// and copy timestamp) so that a later edit or deletion of either side can
// find its counterpart. See the correlate sub-package.
//
// # Echo Prevention
//
// Relayed copies are posted with a username override through the bot
// identity; inbound messages carrying a bot ID are dropped before any other
// handling, which keeps the two workspaces from echoing each other's copies
// back and forth.
//
// # Sub-packages
//
//   - correlate stores the bidirectional message correlation records.
//   - mentionfmt rewrites @-mention tokens for the crossing.
package bridge
