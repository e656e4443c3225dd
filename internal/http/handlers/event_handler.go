// README: Event handlers for create/get/join and the polled status view.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rally/internal/modules/arrival"
	"rally/internal/modules/event"
	"rally/internal/types"
)

type EventHandler struct {
	events   *event.Service
	arrivals *arrival.Aggregator
}

func NewEventHandler(events *event.Service, arrivals *arrival.Aggregator) *EventHandler {
	return &EventHandler{events: events, arrivals: arrivals}
}

type createEventReq struct {
	Title     string   `json:"title"`
	Address   string   `json:"address"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	ArrivalAt string   `json:"arrival_at"`
	CreatorID string   `json:"creator_id"`
}

func (h *EventHandler) Create(c *gin.Context) {
	var req createEventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	arrivalAt, err := time.Parse(time.RFC3339, req.ArrivalAt)
	if err != nil {
		writeError(c, http.StatusBadRequest, "arrival_at must be RFC3339")
		return
	}
	cmd := event.CreateCommand{
		Title:     req.Title,
		Address:   req.Address,
		ArrivalAt: arrivalAt,
		CreatorID: types.ID(req.CreatorID),
	}
	if req.Lat != nil && req.Lng != nil {
		cmd.Location = &types.Point{Lat: *req.Lat, Lng: *req.Lng}
	}
	id, err := h.events.Create(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event_id": id})
}

func (h *EventHandler) Get(c *gin.Context) {
	ev, err := h.events.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"event_id":   ev.ID,
		"title":      ev.Title,
		"address":    ev.Address,
		"lat":        ev.Location.Lat,
		"lng":        ev.Location.Lng,
		"arrival_at": ev.ArrivalAt.Format(time.RFC3339),
		"creator_id": ev.CreatorID,
	})
}

type joinEventReq struct {
	UserID  string `json:"user_id"`
	Profile string `json:"travel_profile"`
}

func (h *EventHandler) Join(c *gin.Context) {
	var req joinEventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.events.Join(c.Request.Context(), event.JoinCommand{
		EventID: types.ID(c.Param("id")),
		UserID:  types.ID(req.UserID),
		Profile: event.Profile(req.Profile),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true})
}

type participantViewResp struct {
	UserID    string   `json:"user_id"`
	ETAMs     *int64   `json:"eta_ms,omitempty"`
	DistanceM *float64 `json:"distance_m,omitempty"`
	Arrived   bool     `json:"arrived"`
	ArrivedAt *string  `json:"arrived_at,omitempty"`
}

// Status is the endpoint the mobile client polls. Each call runs a full
// aggregation pass, so arrival detection happens here on demand.
func (h *EventHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	ev, err := h.events.Get(ctx, types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	parts, err := h.events.Participants(ctx, ev.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	views, err := h.arrivals.Aggregate(ctx, ev, parts, time.Now().UTC())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := make([]participantViewResp, len(views))
	for i, v := range views {
		r := participantViewResp{UserID: string(v.UserID), Arrived: v.Arrived}
		if v.ETA != nil {
			ms := v.ETA.Milliseconds()
			r.ETAMs = &ms
		}
		if v.DistanceM != nil {
			d := *v.DistanceM
			r.DistanceM = &d
		}
		if v.ArrivedAt != nil {
			at := v.ArrivedAt.UTC().Format(time.RFC3339)
			r.ArrivedAt = &at
		}
		resp[i] = r
	}
	c.JSON(http.StatusOK, gin.H{"event_id": ev.ID, "participants": resp})
}
