// Package cache provides the response cache consulted before, and populated
// after, every generation, plus the conversation-level history cache checked
// ahead of the checkpoint store. Cache failures are never fatal: errors are
// logged and treated as misses.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/fiscogo/fisco/internal/chat"
)

// Fingerprint deterministically identifies a generation input: the full
// message sequence, the model identifier, and the temperature. Every field
// is length-prefixed before hashing so adjacent fields can never collide
// ("ab"+"c" vs "a"+"bc").
func Fingerprint(msgs []chat.Message, model string, temperature float64) string {
	h := sha256.New()

	writeString := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	var count [8]byte
	binary.BigEndian.PutUint64(count[:], uint64(len(msgs)))
	h.Write(count[:])

	for _, m := range msgs {
		writeString(string(m.Role))
		writeString(m.Content)
		writeString(m.ToolCallID)
		var calls [8]byte
		binary.BigEndian.PutUint64(calls[:], uint64(len(m.ToolCalls)))
		h.Write(calls[:])
		for _, tc := range m.ToolCalls {
			writeString(tc.ID)
			writeString(tc.Name)
			writeString(tc.Arguments)
		}
	}

	writeString(model)

	var temp [8]byte
	binary.BigEndian.PutUint64(temp[:], math.Float64bits(temperature))
	h.Write(temp[:])

	return hex.EncodeToString(h.Sum(nil))
}
