package cell

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// GridSize is the side length of the square grid. Coordinates run
	// [0, GridSize) on both axes.
	GridSize = 32

	// MaxTextLen is the maximum number of characters a cell may hold.
	MaxTextLen = 140

	// PlaceholderText is stored when a claim arrives with empty text.
	PlaceholderText = "?"
)

// Key is the string form of a coordinate pair, "x-y". It is the map key
// used in snapshot payloads and in the engine's authoritative map.
type Key string

// KeyFor returns the Key for a coordinate pair.
func KeyFor(x, y int) Key {
	return Key(strconv.Itoa(x) + "-" + strconv.Itoa(y))
}

// ParseKey parses an "x-y" key back into coordinates.
func ParseKey(k Key) (x, y int, err error) {
	s := string(k)
	i := strings.IndexByte(s, '-')
	if i <= 0 {
		return 0, 0, fmt.Errorf("invalid cell key %q", s)
	}
	x, err = strconv.Atoi(s[:i])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cell key %q: %w", s, err)
	}
	y, err = strconv.Atoi(s[i+1:])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cell key %q: %w", s, err)
	}
	return x, y, nil
}

// InRange reports whether (x, y) lies on the grid.
func InRange(x, y int) bool {
	return x >= 0 && x < GridSize && y >= 0 && y < GridSize
}

// NormalizeText trims surrounding whitespace, substitutes the placeholder
// for empty text, and truncates to MaxTextLen characters.
func NormalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return PlaceholderText
	}
	if runes := []rune(text); len(runes) > MaxTextLen {
		return string(runes[:MaxTextLen])
	}
	return text
}

// Cell is one claimed square of the grid. Text and Owner are immutable after
// the claim; Likes, LikedBy, and ExpiresAt change only through like
// operations. Likes always equals len(LikedBy).
type Cell struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Text      string    `json:"text"`
	Owner     string    `json:"owner"`
	Likes     int       `json:"likes"`
	LikedBy   []string  `json:"liked_by"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Key returns the cell's coordinate key.
func (c *Cell) Key() Key {
	return KeyFor(c.X, c.Y)
}

// Liked reports whether ownerID has already liked this cell.
func (c *Cell) Liked(ownerID string) bool {
	for _, id := range c.LikedBy {
		if id == ownerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. The engine hands out clones so callers can
// never mutate the authoritative map.
func (c *Cell) Clone() *Cell {
	dup := *c
	if c.LikedBy != nil {
		dup.LikedBy = make([]string, len(c.LikedBy))
		copy(dup.LikedBy, c.LikedBy)
	}
	return &dup
}

// Expired reports whether the cell's TTL has passed at the given instant.
func (c *Cell) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
