package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/playscope/playkit/internal/analytics"
	"github.com/playscope/playkit/internal/catalog"
	"github.com/playscope/playkit/internal/config"
	"github.com/playscope/playkit/internal/history"
	"github.com/playscope/playkit/internal/middleware"
	"github.com/playscope/playkit/internal/prefs"
	"github.com/playscope/playkit/internal/session"
	"github.com/playscope/playkit/internal/tracing"
	"github.com/playscope/playkit/pkg/models"
)

// API carries the daemon's services into the HTTP handlers
type API struct {
	cfg     *config.Config
	manager *session.Manager
	stats   *analytics.Service
	catalog *catalog.Catalog
	history *history.Repository
	prefs   *prefs.Store
	log     zerolog.Logger
}

func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{"players": api.manager.Count()}

	if api.prefs != nil {
		if err := api.prefs.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		checks["prefs"] = "ok"
	}
	if api.history != nil {
		if err := api.history.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		checks["history"] = "ok"
	}

	checks["status"] = "healthy"
	c.JSON(http.StatusOK, checks)
}

type createPlayerRequest struct {
	Sources  []models.Source        `json:"sources" binding:"required"`
	AutoPlay *bool                  `json:"auto_play"`
	Subtitle []models.SubtitleTrack `json:"subtitles"`
}

func (api *API) createPlayer(c *gin.Context) {
	var req createPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	autoPlay := api.cfg.Player.AutoPlay
	if req.AutoPlay != nil {
		autoPlay = *req.AutoPlay
	}

	cfg := session.Config{
		AutoPlay:  autoPlay,
		Subtitles: req.Subtitle,
	}
	if !api.cfg.Player.PreferHighest {
		cfg.PreferQuality = preferLowest
	}

	span, ctx := tracing.StartSpan(c.Request.Context(), "player.create")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, tracing.TagProfile, middleware.GetProfile(c))

	player, handle, err := api.manager.Create(ctx, middleware.GetProfile(c), cfg, req.Sources)
	if err != nil {
		tracing.LogError(span, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	tracing.SetTag(span, tracing.TagSourceKind, string(handle.Source.Kind))
	tracing.SetTag(span, tracing.TagQualityModel, string(handle.Model))

	c.JSON(http.StatusCreated, gin.H{
		"player_id": player.ID,
		"session":   handle,
		"state":     player.Store.Snapshot(),
	})
}

func (api *API) getPlayer(c *gin.Context) {
	player, err := api.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"player_id": player.ID,
		"session":   player.Controller.Handle(),
		"state":     player.Store.Snapshot(),
		"position":  player.Element.CurrentTime(),
		"paused":    player.Element.Paused(),
	})
}

func (api *API) closePlayer(c *gin.Context) {
	if err := api.manager.Close(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Player closed"})
}

type selectQualityRequest struct {
	Label string `json:"label" binding:"required"`
}

func (api *API) selectQuality(c *gin.Context) {
	player, err := api.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req selectQualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span, ctx := tracing.StartSessionSpan(c.Request.Context(), "player.select_quality", sessionID(player))
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, tracing.TagQualityLabel, req.Label)

	if err := player.Controller.SelectQuality(ctx, req.Label); err != nil {
		tracing.LogError(span, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": player.Store.Snapshot()})
}

type selectTrackRequest struct {
	ID string `json:"id"`
}

func (api *API) selectAudio(c *gin.Context) {
	player, err := api.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req selectTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := player.Controller.SelectAudio(c.Request.Context(), req.ID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": player.Store.Snapshot()})
}

// selectSubtitle changes the subtitle selection; an empty id disables
// subtitles
func (api *API) selectSubtitle(c *gin.Context) {
	player, err := api.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req selectTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := player.Controller.SelectSubtitle(req.ID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": player.Store.Snapshot()})
}

func (api *API) retry(c *gin.Context) {
	player, err := api.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if err := player.Controller.Retry(c.Request.Context()); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": player.Controller.Handle(),
		"state":   player.Store.Snapshot(),
	})
}

// fireCanPlay delivers the ready-to-play signal on the simulated surface
func (api *API) fireCanPlay(c *gin.Context) {
	player, err := api.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	player.Element.FireCanPlay()
	c.JSON(http.StatusOK, gin.H{
		"position": player.Element.CurrentTime(),
		"paused":   player.Element.Paused(),
	})
}

type advanceRequest struct {
	Seconds float64 `json:"seconds" binding:"required"`
}

// advance moves the simulated playhead forward
func (api *API) advance(c *gin.Context) {
	player, err := api.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player.Element.Advance(req.Seconds)
	c.JSON(http.StatusOK, gin.H{"position": player.Element.CurrentTime()})
}

func (api *API) listTitles(c *gin.Context) {
	if api.catalog == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Catalog not configured"})
		return
	}

	titles, err := api.catalog.Titles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"titles": titles})
}

func (api *API) titleSources(c *gin.Context) {
	if api.catalog == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Catalog not configured"})
		return
	}

	sources, err := api.catalog.Sources(c.Request.Context(), c.Param("title"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

func (api *API) statsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, api.stats.Summary())
}

func (api *API) statsSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": api.stats.Sessions()})
}

func (api *API) sessionEvents(c *gin.Context) {
	if api.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Session history not configured"})
		return
	}

	events, err := api.history.SessionEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// preferLowest picks the bottom of a label list already sorted by height
// descending
func preferLowest(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1]
}

func sessionID(player *session.Player) string {
	if handle := player.Controller.Handle(); handle != nil {
		return handle.SessionID
	}
	return ""
}
