package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaybackErrorRecoverable(t *testing.T) {
	assert.True(t, (&PlaybackError{Kind: ErrorKindNetwork}).Recoverable())
	assert.False(t, (&PlaybackError{Kind: ErrorKindMedia}).Recoverable())
	assert.False(t, (&PlaybackError{Kind: ErrorKindEngineLoad}).Recoverable())
}

func TestPlaybackErrorMessage(t *testing.T) {
	err := &PlaybackError{Kind: ErrorKindNetwork, Message: "segment timeout"}
	assert.Contains(t, err.Error(), "segment timeout")
	assert.Contains(t, err.Error(), string(ErrorKindNetwork))
}
