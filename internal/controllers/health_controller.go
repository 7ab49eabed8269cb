package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/dtos"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
)

// Pinger is satisfied by repositories.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	store   Pinger
	backend string
}

func NewHealthController(store Pinger, backend string) *HealthController {
	return &HealthController{store: store, backend: backend}
}

func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		utils.RespondErrorWithCode(w, http.StatusServiceUnavailable, utils.ErrCodeServiceUnavailable, "Database unavailable", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthCheckResponse{Status: "OK", Store: c.backend})
}
