package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeedbackWeight(t *testing.T) {
	assert.InDelta(t, WeightReaction, FeedbackWeight(ResolutionReaction), 0.001)
	assert.InDelta(t, WeightEdit, FeedbackWeight(ResolutionEdit), 0.001)
	assert.InDelta(t, WeightRejected, FeedbackWeight(ResolutionRejected), 0.001)
	assert.InDelta(t, WeightTimeout, FeedbackWeight(ResolutionTimeout), 0.001)

	// Active review outweighs passive expiry.
	assert.Greater(t, FeedbackWeight(ResolutionEdit), FeedbackWeight(ResolutionReaction))
	assert.Greater(t, FeedbackWeight(ResolutionReaction), FeedbackWeight(ResolutionTimeout))
}

func TestMemberMessageID(t *testing.T) {
	assert.Equal(t, "m1:1", MemberMessageID("m1", 1))
	assert.Equal(t, "m1:2", MemberMessageID("m1", 2))
	assert.Empty(t, MemberMessageID("", 1))
}

func TestPendingConfirmationExpired(t *testing.T) {
	now := time.Now().UTC()
	pending := PendingConfirmation{ExpiresAt: now.Add(30 * time.Minute)}

	assert.False(t, pending.Expired(now))
	assert.False(t, pending.Expired(pending.ExpiresAt))
	assert.True(t, pending.Expired(now.Add(31*time.Minute)))
}
