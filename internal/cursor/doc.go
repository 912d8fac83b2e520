// Package cursor handles ephemeral cursor position traffic.
//
// Cursor frames are the highest-frequency traffic in a room and carry no
// durable state, so both directions shed load freely: outbound positions are
// throttled to a minimum publish interval with a trailing-edge send of the
// latest pending frame, and inbound positions resolve last-write-wins per
// user before fanning out to subscribers over non-blocking channels. A slow
// subscriber drops frames rather than stalling delivery to the others.
package cursor
