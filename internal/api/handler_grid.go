package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gridwall/gridwall/internal/cell"
)

// Grid is the read-only view of the engine the REST API serves.
type Grid interface {
	Snapshot() map[cell.Key]cell.Cell
	Cell(x, y int) *cell.Cell
	Len() int
}

// SessionCounter reports connected websocket sessions. Satisfied by *ws.Hub.
type SessionCounter interface {
	Len() int
}

// --- Huma Input/Output types ---

type GetGridOutput struct {
	Body GridResponse
}

type GridResponse struct {
	GridSize int                    `json:"grid_size" doc:"Side length of the square grid"`
	Cells    map[cell.Key]cell.Cell `json:"cells" doc:"Occupied cells keyed by \"x-y\""`
}

type GetCellInput struct {
	X int `path:"x" doc:"Cell column" minimum:"0"`
	Y int `path:"y" doc:"Cell row" minimum:"0"`
}

type GetCellOutput struct {
	Body cell.Cell
}

type GetStatsOutput struct {
	Body StatsResponse
}

type StatsResponse struct {
	GridSize int `json:"grid_size" doc:"Side length of the square grid"`
	Occupied int `json:"occupied" doc:"Number of claimed cells"`
	Sessions int `json:"sessions" doc:"Connected websocket sessions"`
}

// --- Handler ---

// GridHandler serves read-only views of the grid. All mutations go through
// the websocket channel.
type GridHandler struct {
	grid     Grid
	sessions SessionCounter
}

func NewGridHandler(grid Grid, sessions SessionCounter) *GridHandler {
	return &GridHandler{grid: grid, sessions: sessions}
}

func registerGridRoutes(humaAPI huma.API, h *GridHandler) {
	huma.Register(humaAPI, huma.Operation{
		OperationID: "get-grid",
		Method:      http.MethodGet,
		Path:        "/v1/grid",
		Summary:     "Get the full grid snapshot",
		Tags:        []string{"grid"},
	}, h.GetGrid)

	huma.Register(humaAPI, huma.Operation{
		OperationID: "get-cell",
		Method:      http.MethodGet,
		Path:        "/v1/grid/{x}/{y}",
		Summary:     "Get a single cell",
		Tags:        []string{"grid"},
	}, h.GetCell)

	huma.Register(humaAPI, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/v1/stats",
		Summary:     "Get grid occupancy and session counts",
		Tags:        []string{"grid"},
	}, h.GetStats)
}

func (h *GridHandler) GetGrid(ctx context.Context, _ *struct{}) (*GetGridOutput, error) {
	return &GetGridOutput{Body: GridResponse{
		GridSize: cell.GridSize,
		Cells:    h.grid.Snapshot(),
	}}, nil
}

func (h *GridHandler) GetCell(ctx context.Context, input *GetCellInput) (*GetCellOutput, error) {
	if !cell.InRange(input.X, input.Y) {
		return nil, huma.Error404NotFound("no such cell")
	}
	c := h.grid.Cell(input.X, input.Y)
	if c == nil {
		return nil, huma.Error404NotFound("cell is free")
	}
	return &GetCellOutput{Body: *c}, nil
}

func (h *GridHandler) GetStats(ctx context.Context, _ *struct{}) (*GetStatsOutput, error) {
	return &GetStatsOutput{Body: StatsResponse{
		GridSize: cell.GridSize,
		Occupied: h.grid.Len(),
		Sessions: h.sessions.Len(),
	}}, nil
}
