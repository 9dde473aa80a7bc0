package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewPicksFormatterAndLevel(t *testing.T) {
	dev := New("debug", false)
	_, isText := dev.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
	assert.Equal(t, logrus.DebugLevel, dev.GetLevel())

	prod := New("nonsense", true)
	_, isText = prod.Formatter.(*logrus.TextFormatter)
	assert.False(t, isText)
	assert.Equal(t, logrus.InfoLevel, prod.GetLevel())
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().WithField("k", "v").Error("dropped") })
}
