package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, raw string) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &body))
	return body
}

func TestExtractTextEvents_SingleTextMessage(t *testing.T) {
	body := decodeBody(t, `{"entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"mid":"m1","text":"hi"}}]}]}`)

	events := ExtractTextEvents(body)
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].SenderID)
	assert.Equal(t, "m1", events[0].MessageID)
	assert.Equal(t, "hi", events[0].Text)
}

func TestExtractTextEvents_MultipleEntriesAndEvents(t *testing.T) {
	body := decodeBody(t, `{"entry":[
		{"messaging":[
			{"sender":{"id":"u1"},"message":{"mid":"m1","text":"one"}},
			{"sender":{"id":"u2"},"message":{"mid":"m2","text":"two"}}
		]},
		{"messaging":[
			{"sender":{"id":"u3"},"message":{"mid":"m3","text":"three"}}
		]}
	]}`)

	events := ExtractTextEvents(body)
	require.Len(t, events, 3)
	assert.Equal(t, "m3", events[2].MessageID)
}

func TestExtractTextEvents_SkipsEchoEvents(t *testing.T) {
	body := decodeBody(t, `{"entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"mid":"m1","text":"hi","is_echo":true}}]}]}`)
	assert.Empty(t, ExtractTextEvents(body))
}

func TestExtractTextEvents_SkipsAttachmentOnlyEvents(t *testing.T) {
	body := decodeBody(t, `{"entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"mid":"m1","attachments":[{"type":"image"}]}}]}]}`)
	assert.Empty(t, ExtractTextEvents(body))
}

func TestExtractTextEvents_SkipsMissingSender(t *testing.T) {
	body := decodeBody(t, `{"entry":[{"messaging":[{"message":{"mid":"m1","text":"hi"}}]}]}`)
	assert.Empty(t, ExtractTextEvents(body))
}

func TestExtractTextEvents_NumericSenderID(t *testing.T) {
	body := decodeBody(t, `{"entry":[{"messaging":[{"sender":{"id":1234567890},"message":{"mid":"m1","text":"hi"}}]}]}`)

	events := ExtractTextEvents(body)
	require.Len(t, events, 1)
	assert.Equal(t, "1234567890", events[0].SenderID)
}

func TestExtractTextEvents_SynthesizesDeterministicID(t *testing.T) {
	raw := `{"entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"text":"no mid here"}}]}]}`

	first := ExtractTextEvents(decodeBody(t, raw))
	second := ExtractTextEvents(decodeBody(t, raw))
	require.Len(t, first, 1)
	require.Len(t, second, 1)

	assert.Equal(t, first[0].MessageID, second[0].MessageID,
		"the same malformed input must synthesize the same key across runs")
	assert.Contains(t, first[0].MessageID, "no-mid:u1:")

	// A different sender or body must synthesize a different key.
	other := ExtractTextEvents(decodeBody(t,
		`{"entry":[{"messaging":[{"sender":{"id":"u2"},"message":{"text":"no mid here"}}]}]}`))
	require.Len(t, other, 1)
	assert.NotEqual(t, first[0].MessageID, other[0].MessageID)
}

func TestExtractTextEvents_DegradesOnMalformedBranches(t *testing.T) {
	cases := map[string]string{
		"entry not a list":         `{"entry":"nope"}`,
		"entry item not an object": `{"entry":["nope"]}`,
		"messaging not a list":     `{"entry":[{"messaging":{"sender":{"id":"u1"}}}]}`,
		"event not an object":      `{"entry":[{"messaging":["nope"]}]}`,
		"message not an object":    `{"entry":[{"messaging":[{"sender":{"id":"u1"},"message":"hi"}]}]}`,
		"no entry at all":          `{"object":"instagram"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, ExtractTextEvents(decodeBody(t, raw)))
		})
	}
}

func TestExtractTextEvents_MalformedBranchDoesNotPoisonSiblings(t *testing.T) {
	body := decodeBody(t, `{"entry":[
		{"messaging":"broken"},
		{"messaging":[{"sender":{"id":"u9"},"message":{"mid":"m9","text":"still here"}}]}
	]}`)

	events := ExtractTextEvents(body)
	require.Len(t, events, 1)
	assert.Equal(t, "m9", events[0].MessageID)
}
