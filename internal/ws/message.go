package ws

import (
	"encoding/json"
	"fmt"

	"github.com/gridwall/gridwall/internal/cell"
)

// Event type strings on the realtime channel. Every frame, in both
// directions, is a JSON object with a "type" field.
const (
	TypeSnapshotLoad = "snapshot-load" // server → client, once on connect
	TypeCellUpdated  = "cell-updated"  // server → client, claim or like
	TypeCellRemoved  = "cell-removed"  // server → client, expiry
	TypeClaimRequest = "claim-request" // client → server
	TypeLikeRequest  = "like-request"  // client → server
)

type snapshotEvent struct {
	Type  string                 `json:"type"`
	Cells map[cell.Key]cell.Cell `json:"cells"`
}

type updateEvent struct {
	Type string     `json:"type"`
	Cell *cell.Cell `json:"cell"`
}

type removeEvent struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Request is an inbound claim or like frame. Text is ignored for likes.
type Request struct {
	Type    string `json:"type"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Text    string `json:"text,omitempty"`
	OwnerID string `json:"owner_id"`
}

func marshalSnapshot(cells map[cell.Key]cell.Cell) ([]byte, error) {
	return json.Marshal(snapshotEvent{Type: TypeSnapshotLoad, Cells: cells})
}

func marshalUpdate(c *cell.Cell) ([]byte, error) {
	return json.Marshal(updateEvent{Type: TypeCellUpdated, Cell: c})
}

func marshalRemoval(x, y int) ([]byte, error) {
	return json.Marshal(removeEvent{Type: TypeCellRemoved, X: x, Y: y})
}

func parseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("parse request: %w", err)
	}
	switch req.Type {
	case TypeClaimRequest, TypeLikeRequest:
		return req, nil
	default:
		return Request{}, fmt.Errorf("unknown request type %q", req.Type)
	}
}
