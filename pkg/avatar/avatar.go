// Package avatar decides whether an extracted avatar URL is worth storing:
// it rejects known placeholder/default images by URL shape and compares
// candidate images against the current one with a perceptual hash so the
// merge engine can skip no-op avatar churn.
package avatar

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // GIF support
	_ "image/jpeg" // JPEG support
	_ "image/png"  // PNG support
	"log/slog"
	"math/bits"
	"strings"

	"github.com/corona10/goimagehash"

	"github.com/codeGROOVE-dev/magpie/pkg/fetch"
)

// similarityThreshold is the maximum hamming distance (out of 64 bits)
// at which two avatars are considered the same image.
const similarityThreshold = 10

// IsPlaceholder reports whether an avatar URL points at a default or
// generated image rather than something the creator uploaded. Only the path
// is inspected: Gravatar-style d= fallbacks in the query still serve the
// real image when one exists.
func IsPlaceholder(avatarURL string) bool {
	lower := strings.ToLower(avatarURL)
	path := lower
	if idx := strings.Index(lower, "?"); idx != -1 {
		path = lower[:idx]
	}

	return strings.Contains(path, "identicon") ||
		strings.Contains(path, "default") ||
		strings.Contains(path, "avatar_default") ||
		strings.Contains(path, "placeholder") ||
		strings.Contains(path, "/anonymous") ||
		strings.Contains(path, "blank-profile")
}

// Hash fetches an avatar image and computes its difference hash.
// Returns 0 on any failure (network, decode, unsupported format); a zero
// hash means "unknown", never "match".
func Hash(ctx context.Context, client *fetch.Client, avatarURL string, logger *slog.Logger) uint64 {
	if avatarURL == "" || IsPlaceholder(avatarURL) || client == nil {
		return 0
	}

	resp, err := client.Fetch(ctx, avatarURL, nil)
	if err != nil {
		if logger != nil {
			logger.Debug("avatar fetch failed", "url", avatarURL, "error", err)
		}
		return 0
	}

	img, _, err := image.Decode(bytes.NewReader(resp.Body))
	if err != nil {
		if logger != nil {
			logger.Debug("avatar decode failed", "url", avatarURL, "error", err)
		}
		return 0
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0
	}
	return hash.GetHash()
}

// Similar reports whether two avatar hashes are perceptually the same image.
func Similar(a, b uint64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return Distance(a, b) <= similarityThreshold
}

// Distance returns the hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
