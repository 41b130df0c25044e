package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOlder(t *testing.T) {
	assert.True(t, IsOlder("0.2.0", "0.3.1"))
	assert.True(t, IsOlder("v1.0.0", "1.0.1"))
	assert.False(t, IsOlder("0.3.1", "0.3.1"))
	assert.False(t, IsOlder("0.4.0", "0.3.1"))
	assert.False(t, IsOlder("dev", "0.3.1"))
	assert.False(t, IsOlder("0.3.1", "dev"))
	assert.False(t, IsOlder("", "0.3.1"))
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "dev", CommitHash: "abcdef123456", BuildTime: "unknown"}
	assert.True(t, strings.HasPrefix(info.String(), "dawn dev"))
	assert.Equal(t, "abcdef1", info.Short())

	info.Version = "0.3.1"
	assert.Contains(t, info.String(), "dawn 0.3.1")
}
