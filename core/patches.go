package core

import (
	"fmt"
	"strings"
)

// GeneratePatches decomposes a width x height frame into 13 fixed
// regions: the full frame, four quadrants, and each quadrant split
// vertically into a left and right half. Midpoints use floor division,
// with the far side sized as the remainder, so the quadrants tile the
// frame exactly even for odd dimensions.
//
// The order is fixed: full, the four quadrants (top-left, top-right,
// bottom-left, bottom-right), then each quadrant's left/right pair in
// the same quadrant order.
func GeneratePatches(width, height int) []PatchSpec {
	midX := width / 2
	midY := height / 2

	patches := make([]PatchSpec, 0, 13)
	patches = append(patches, PatchSpec{PatchType: "full", X: 0, Y: 0, Width: width, Height: height})

	quadrants := []PatchSpec{
		{PatchType: "top-left", X: 0, Y: 0, Width: midX, Height: midY},
		{PatchType: "top-right", X: midX, Y: 0, Width: width - midX, Height: midY},
		{PatchType: "bottom-left", X: 0, Y: midY, Width: midX, Height: height - midY},
		{PatchType: "bottom-right", X: midX, Y: midY, Width: width - midX, Height: height - midY},
	}
	patches = append(patches, quadrants...)

	for _, q := range quadrants {
		qMidX := q.Width / 2
		patches = append(patches, PatchSpec{
			PatchType: q.PatchType + "-left",
			X:         q.X,
			Y:         q.Y,
			Width:     qMidX,
			Height:    q.Height,
		})
		patches = append(patches, PatchSpec{
			PatchType: q.PatchType + "-right",
			X:         q.X + qMidX,
			Y:         q.Y,
			Width:     q.Width - qMidX,
			Height:    q.Height,
		})
	}

	return patches
}

// SanitizeTitle normalizes a movie title for use inside a vector id.
func SanitizeTitle(title string) string {
	return strings.ReplaceAll(title, " ", "_")
}

// VectorID derives the deterministic storage id for one patch of one
// frame: {sanitized title}_{timestamp:06d}_{patch type}. Processing the
// same (movie, frame, patch) twice yields the same id, making upserts
// idempotent.
func VectorID(movieTitle string, timestampSec int, patchType string) string {
	return fmt.Sprintf("%s_%06d_%s", SanitizeTitle(movieTitle), timestampSec, patchType)
}
