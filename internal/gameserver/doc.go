// Package gameserver hosts the authoritative room: it serializes every
// state-changing request, applies it to the participant registry and seat
// arbitrator, and fans the resulting events out to session outboxes.
//
// The room knows nothing about transports. The WebSocket and line gateways
// call Accept, Dispatch and Close, and drain each session's Outbox on their
// own write loop. Events are pushed into outboxes while the room lock is
// held, so every session observes them in the order the room committed them.
package gameserver
