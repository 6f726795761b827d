package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.InstanceID)
	assert.NotEmpty(t, info.Hostname)

	// Instance identity is computed once and stable for the process lifetime
	again := GetInfo()
	assert.Equal(t, info.InstanceID, again.InstanceID)
}

func TestInfo_String(t *testing.T) {
	s := GetInfo().String()
	assert.True(t, strings.HasPrefix(s, "gatekeeper version "))
	assert.Contains(t, s, "commit:")
	assert.Contains(t, s, "built:")
}
