package mq

import (
	"context"
	"testing"

	"github.com/jjudge-oj/contestd/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithoutBackend(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "kafka"})
	require.ErrorContains(t, err, "unknown mq backend")
}

func TestOpenRequiresSettings(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	require.ErrorContains(t, err, "rabbitmq url is required")

	_, err = Open(context.Background(), config.MQConfig{Backend: "pubsub"})
	require.ErrorContains(t, err, "pubsub project id is required")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))
	attrs := headersToAttributes(map[string]any{
		"contest_id": "4",
		"raw":        []byte("x"),
		"n":          int32(7),
	})
	assert.Equal(t, map[string]string{"contest_id": "4", "raw": "x", "n": "7"}, attrs)
}
