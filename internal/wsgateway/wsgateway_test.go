package wsgateway

import (
	"testing"

	"ctp/internal/message"

	"github.com/stretchr/testify/assert"
)

func TestChannelScopeParsesValidChannel(t *testing.T) {
	scope, id, ok := channelScope("course:42")
	assert.True(t, ok)
	assert.Equal(t, message.ScopeCourse, scope)
	assert.Equal(t, 42, id)
}

func TestChannelScopeRejectsMissingSeparator(t *testing.T) {
	_, _, ok := channelScope("course")
	assert.False(t, ok)
}

func TestChannelScopeRejectsNonNumericID(t *testing.T) {
	_, _, ok := channelScope("course:abc")
	assert.False(t, ok)
}

func TestChannelNameRoundTripsWithChannelScope(t *testing.T) {
	name := channelName(message.ScopeSubmissionGroup, 7)
	assert.Equal(t, "submission_group:7", name)

	scope, id, ok := channelScope(name)
	assert.True(t, ok)
	assert.Equal(t, message.ScopeSubmissionGroup, scope)
	assert.Equal(t, 7, id)
}
