package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
}

func TestToMessage(t *testing.T) {
	msg, err := toMessage(Event{Key: "abc", Type: "document.ingested", Value: sample{DocID: "abc", Chunks: 4}})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), msg.Key)
	assert.JSONEq(t, `{"doc_id":"abc","chunks":4}`, string(msg.Value))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, "document.ingested", string(msg.Headers[0].Value))
}

func TestToMessageRejectsUnencodable(t *testing.T) {
	_, err := toMessage(Event{Key: "k", Value: make(chan int)})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	v, err := DecodeJSON[sample]([]byte(`{"doc_id":"x","chunks":2}`))
	require.NoError(t, err)
	assert.Equal(t, sample{DocID: "x", Chunks: 2}, v)

	_, err = DecodeJSON[sample]([]byte(`{`))
	assert.Error(t, err)
}
