package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_VoiceRateLimiter_SlidingWindow(t *testing.T) {
	req := require.New(t)
	rl := NewVoiceRateLimiter(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		req.True(rl.Allow("alice"), "frame %d inside the limit", i)
	}
	req.False(rl.Allow("alice"))

	// Another principal has its own window.
	req.True(rl.Allow("bob"))

	time.Sleep(60 * time.Millisecond)
	req.True(rl.Allow("alice"), "window expired")
}

func Test_VoiceRateLimiter_Forget(t *testing.T) {
	req := require.New(t)
	rl := NewVoiceRateLimiter(1, time.Minute)

	req.True(rl.Allow("alice"))
	req.False(rl.Allow("alice"))

	rl.Forget("alice")
	req.True(rl.Allow("alice"))
}
