// Package notify implements the cross-process notification channel
//(spec.md §6 "Notification channel"): a 20-byte message carrying only the
// latest recv high-water mark, over either UDP multicast or a watched
// file, grounded on original_source's ipcbus/udp_multicast.rs and
// ipcbus/inotify.rs.
package notify

import (
	"encoding/binary"
	"errors"
)

// MessageSize is the fixed wire size of a notification message:
// env_id(8) | origin_pid(4) | high_water_recv(8).
const MessageSize = 8 + 4 + 8

// ErrBadMessage is returned for a message that isn't MessageSize bytes.
var ErrBadMessage = errors.New("notify: malformed message")

// Message is one notification: receivers with a matching EnvID and a
// differing OriginPID should re-read the log starting from the last seen
// recv up to HighWaterRecv.
type Message struct {
	EnvID        [8]byte
	OriginPID    uint32
	HighWaterRecv uint64
}

// Encode serializes m to its 20-byte wire form.
func (m Message) Encode() []byte {
	buf := make([]byte, MessageSize)
	copy(buf[0:8], m.EnvID[:])
	binary.LittleEndian.PutUint32(buf[8:12], m.OriginPID)
	binary.LittleEndian.PutUint64(buf[12:20], m.HighWaterRecv)
	return buf
}

// Decode parses a 20-byte message.
func Decode(b []byte) (Message, error) {
	if len(b) != MessageSize {
		return Message{}, ErrBadMessage
	}
	var m Message
	copy(m.EnvID[:], b[0:8])
	m.OriginPID = binary.LittleEndian.Uint32(b[8:12])
	m.HighWaterRecv = binary.LittleEndian.Uint64(b[12:20])
	return m, nil
}

// Relevant reports whether a received message should trigger a re-read:
// same environment, different origin process.
func (m Message) Relevant(localEnvID [8]byte, localPID uint32) bool {
	return m.EnvID == localEnvID && m.OriginPID != localPID
}
