package model

import "github.com/rotisserie/eris"

// NeighborMode selects the spatial relationship used for neighbor detection
// and boundary exclusion. Semantics are owned by the geometry engine.
type NeighborMode string

const (
	// ModeTouches matches polygons sharing any boundary point (vertex or edge).
	ModeTouches NeighborMode = "touches"
	// ModeSharesSegment matches polygons sharing at least one full boundary segment.
	ModeSharesSegment NeighborMode = "shares-segment"
	// ModeIntersects matches polygons whose geometries intersect at all.
	ModeIntersects NeighborMode = "intersects"
)

// ParseNeighborMode validates a user-supplied mode string.
func ParseNeighborMode(s string) (NeighborMode, error) {
	switch NeighborMode(s) {
	case ModeTouches, ModeSharesSegment, ModeIntersects:
		return NeighborMode(s), nil
	}
	return "", eris.Errorf("model: unsupported neighbor mode %q (want touches, shares-segment, or intersects)", s)
}
