package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("locationReview")
	require.NoError(t, err)

	_, err = r.Register("locationReview")
	assert.Error(t, err)

	_, err = r.Register("userReview")
	assert.NoError(t, err)

	_, err = r.Register("  ")
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{"locationReview", "userReview"}, r.Names())
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("post")
	assert.Panics(t, func() { r.MustRegister("post") })
}

func TestKey_Hash(t *testing.T) {
	r := NewRegistry()
	review := r.MustRegister("locationReview")
	userReview := r.MustRegister("userReview")

	t.Run("identical inputs share a hash", func(t *testing.T) {
		assert.Equal(t, review.Key("loc-1", "morning").Hash(), review.Key("loc-1", "morning").Hash())
	})

	t.Run("different inputs never collide", func(t *testing.T) {
		hashes := map[string]struct{}{}
		for _, k := range []Key{
			review.Key("loc-1", "morning"),
			review.Key("loc-1", "evening"),
			review.Key("loc-2", "morning"),
			review.Key("loc-1"),
			userReview.Key("loc-1", "morning"),
			review.Key("1"),
			review.Key(1),
			review.Key(true),
			review.Key(nil),
		} {
			hashes[k.Hash()] = struct{}{}
		}
		assert.Len(t, hashes, 9)
	})

	t.Run("integer widths normalize", func(t *testing.T) {
		assert.Equal(t, review.Key(int32(10)).Hash(), review.Key(10).Hash())
		assert.Equal(t, review.Key(uint8(3)).Hash(), review.Key(int64(3)).Hash())
	})

	t.Run("parts are copied and normalized", func(t *testing.T) {
		k := review.Key("loc-1", 20)
		if diff := cmp.Diff([]any{"loc-1", int64(20)}, k.Parts()); diff != "" {
			t.Errorf("Parts() mismatch (-want +got):\n%s", diff)
		}
		parts := k.Parts()
		parts[0] = "mutated"
		assert.Equal(t, "loc-1", k.Parts()[0])
	})
}

func TestKey_HasPrefix(t *testing.T) {
	r := NewRegistry()
	comments := r.MustRegister("locationComments")
	posts := r.MustRegister("locationPosts")

	full := comments.Key("loc-1", 20)

	assert.True(t, full.HasPrefix(comments.Key()))
	assert.True(t, full.HasPrefix(comments.Key("loc-1")))
	assert.True(t, full.HasPrefix(full))
	assert.False(t, full.HasPrefix(comments.Key("loc-2")))
	assert.False(t, full.HasPrefix(comments.Key("loc-1", 20, "x")))
	assert.False(t, full.HasPrefix(posts.Key("loc-1")))
}

func TestKey_Zero(t *testing.T) {
	var k Key
	assert.True(t, k.IsZero())
	assert.False(t, NewRegistry().MustRegister("feed").Key().IsZero())
}
