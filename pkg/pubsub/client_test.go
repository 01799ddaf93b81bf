package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codebrew/pos-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "pos-prod"}

	assert.Equal(t, "projects/pos-prod/topics/pos-order-events", c.topicResourceName(" pos-order-events "))
	assert.Equal(t, "projects/other/topics/x", c.topicResourceName("projects/other/topics/x"))
	assert.Empty(t, c.topicResourceName(""))
	assert.Empty(t, (&Client{}).topicResourceName("pos-order-events"))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, []string{"t"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
