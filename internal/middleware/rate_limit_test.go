package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindow(t *testing.T) {
	w := newSlidingWindow(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.True(t, w.allow(1, now.Add(time.Duration(i)*time.Second)))
	}
	assert.False(t, w.allow(1, now.Add(4*time.Second)))

	// Another chat has its own window.
	assert.True(t, w.allow(2, now.Add(4*time.Second)))

	// Denied attempts don't extend the window; once the first entries
	// age out, the chat may speak again.
	assert.True(t, w.allow(1, now.Add(61*time.Second)))
}
