package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

var extByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ImageExt picks the file extension for an uploaded image. The content type
// wins; the filename is the fallback.
func ImageExt(contentType, filename string) (string, error) {
	if ext, ok := extByContentType[strings.ToLower(contentType)]; ok {
		return ext, nil
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "jpeg":
		return "jpg", nil
	case "jpg", "png", "gif", "webp":
		return ext, nil
	}
	return "", fmt.Errorf("unsupported image type %q", contentType)
}

// ListingPhotoPath is where the n-th photo of a listing is stored.
func ListingPhotoPath(listingID string, n int, ext string) string {
	return fmt.Sprintf("listing-photos/%s/%d.%s", listingID, n, ext)
}

// AvatarPath is where a user's avatar is stored. Uploading again replaces it.
func AvatarPath(userID, ext string) string {
	return fmt.Sprintf("avatars/%s/avatar.%s", userID, ext)
}
