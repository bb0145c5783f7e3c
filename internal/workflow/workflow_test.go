package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronNextTimeEveryMinute(t *testing.T) {
	next, err := cronNextTime("* * * * *")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Truncate(time.Minute).Add(time.Minute), next, 2*time.Second)
}

func TestCronNextTimeWithSeconds(t *testing.T) {
	next, err := cronNextTime("*/5 * * * * *")
	require.NoError(t, err)
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(6*time.Second)))
}

func TestCronNextTimeInvalidExpression(t *testing.T) {
	_, err := cronNextTime("not a cron expression")
	assert.Error(t, err)
}
