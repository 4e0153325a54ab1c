package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idleassets/api/internal/config"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "listing-photos/listing-1/0.jpg", ListingPhotoPath("listing-1", 0, "jpg"))
	assert.Equal(t, "avatars/u1/avatar.png", AvatarPath("u1", "png"))
}

func TestImageExt(t *testing.T) {
	ext, err := ImageExt("image/png", "x.jpg")
	require.NoError(t, err)
	assert.Equal(t, "png", ext)

	ext, err = ImageExt("application/octet-stream", "photo.JPEG")
	require.NoError(t, err)
	assert.Equal(t, "jpg", ext)

	_, err = ImageExt("text/plain", "notes.txt")
	assert.Error(t, err)
}

func TestPublicURLAndKey(t *testing.T) {
	cfg := &config.Config{ImageBaseS3URL: "https://cdn.example.com/"}
	url := PublicURL(cfg, "/avatars/u1/avatar.png")
	assert.Equal(t, "https://cdn.example.com/avatars/u1/avatar.png", url)

	key, ok := KeyFromURL(cfg, url)
	assert.True(t, ok)
	assert.Equal(t, "avatars/u1/avatar.png", key)

	_, ok = KeyFromURL(cfg, "https://elsewhere.example.com/a.png")
	assert.False(t, ok)

	cfg = &config.Config{AwsS3Bucket: "bucket", AwsRegion: "us-east-1"}
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/a.png", PublicURL(cfg, "a.png"))
}

func TestCleanKey(t *testing.T) {
	key, err := CleanKey("/listing-photos/listing-1/0.jpg")
	require.NoError(t, err)
	assert.Equal(t, "listing-photos/listing-1/0.jpg", key)

	for _, bad := range []string{"", "/", "a/../b", "a//b"} {
		_, err := CleanKey(bad)
		assert.Error(t, err, bad)
	}
}
