package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/instadm/golang_services/internal/webhook_service/domain"
)

// ExtractTextEvents walks a decoded webhook envelope (entry[] -> messaging[])
// and returns the inbound text messages it contains. It never fails: webhook
// providers tolerate partial processing but not request failures, so any
// branch that does not match the expected shape yields zero events from that
// branch and nothing else.
//
// Skipped outright: events without a sender id, echo events (messages sent by
// our own account), and events without a text payload (attachments-only).
func ExtractTextEvents(body map[string]any) []domain.InboundEvent {
	var out []domain.InboundEvent

	entries, _ := body["entry"].([]any)
	for _, rawEntry := range entries {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			continue
		}
		messaging, _ := entry["messaging"].([]any)
		for _, rawEvt := range messaging {
			evt, ok := rawEvt.(map[string]any)
			if !ok {
				continue
			}

			senderID := partyID(evt["sender"])
			if senderID == "" {
				continue
			}

			msg, _ := evt["message"].(map[string]any)
			if msg == nil {
				continue
			}
			if isEcho, _ := msg["is_echo"].(bool); isEcho {
				continue
			}
			text, _ := msg["text"].(string)
			if text == "" {
				continue
			}

			mid, _ := msg["mid"].(string)
			if mid == "" {
				mid = synthesizeMessageID(senderID, msg)
			}

			out = append(out, domain.InboundEvent{
				SenderID:  senderID,
				MessageID: mid,
				Text:      text,
			})
		}
	}
	eventsExtractedCounter.Add(float64(len(out)))
	return out
}

// partyID pulls the id out of a sender object, tolerating both string and
// numeric encodings.
func partyID(raw any) string {
	party, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	switch id := party["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// synthesizeMessageID builds a deterministic identity key for messages that
// arrive without a mid, so dedup still has something stable to work with.
// encoding/json sorts map keys, which makes the marshaled form canonical for
// a given message structure across process runs.
func synthesizeMessageID(senderID string, msg map[string]any) string {
	canonical, err := json.Marshal(msg)
	if err != nil {
		canonical = []byte(fmt.Sprintf("%v", msg))
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("no-mid:%s:%s", senderID, hex.EncodeToString(sum[:]))
}
