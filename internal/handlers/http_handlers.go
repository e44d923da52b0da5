package handlers

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prizedraw/internal/models"
	"prizedraw/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

// LotteryService is the part of services.LotteryService the HTTP layer uses.
type LotteryService interface {
	RegisterUser(ctx context.Context, name, email string) (*models.User, error)
	RegisterEvent(ctx context.Context, in services.RegisterEventInput) (*models.Event, error)
	ListEvents(ctx context.Context) ([]*models.Event, error)
	Join(ctx context.Context, eventID int64, identityToken string) (models.Ticket, error)
	JoinedEventsFor(ctx context.Context, identityToken string) ([]*models.JoinedEvent, error)
	ListWinners(ctx context.Context) ([]*models.Winner, error)
	RemovePastEvents(ctx context.Context) (models.ExpiryReport, error)
	FinalizeEvents(ctx context.Context) (models.FinalizeReport, error)
}

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service LotteryService
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service LotteryService) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/getevents", h.GetEventsLegacy)

	api := router.Group("/api")
	api.POST("/add_user", h.AddUser)
	api.POST("/add_organiser", h.AddOrganiser)
	api.POST("/events", h.CreateEvent)
	api.GET("/events", h.ListEvents)
	api.POST("/events/:id/join", h.JoinEvent)
	api.GET("/participants/:email/events", h.JoinedEvents)
	api.POST("/sweep/expire", h.SweepExpire)
	api.POST("/sweep/finalize", h.SweepFinalize)
	api.GET("/winners", h.ListWinners)
	api.GET("/winners/export", h.ExportWinnersCSV)
}

type addUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

type addOrganiserRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required"`
	EventName  string `json:"event_name" binding:"required"`
	PrizeMoney *int64 `json:"prize_money" binding:"required"`
	EventTime  string `json:"event_time" binding:"required"`
}

type createEventRequest struct {
	Name          string `json:"name" binding:"required"`
	ScheduledTime string `json:"scheduled_time" binding:"required"`
	Prize         *int64 `json:"prize" binding:"required"`
}

type joinRequest struct {
	Email string `json:"email" binding:"required"`
}

// legacyEvent is the row shape served on /getevents.
type legacyEvent struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	EventTime string `json:"event_time"`
	Prize     int64  `json:"prize"`
}

// Health reports that the process is serving.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AddUser registers an identity that can later join events.
func (h *HTTPHandler) AddUser(c *gin.Context) {
	var req addUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.service.RegisterUser(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// AddOrganiser registers an event together with the person organising it.
func (h *HTTPHandler) AddOrganiser(c *gin.Context) {
	var req addOrganiserRequest
	if !bindJSON(c, &req) {
		return
	}
	event, err := h.service.RegisterEvent(c.Request.Context(), services.RegisterEventInput{
		Name:           req.EventName,
		ScheduledTime:  req.EventTime,
		Prize:          *req.PrizeMoney,
		OrganiserName:  req.Name,
		OrganiserEmail: req.Email,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// CreateEvent registers an event without organiser details.
func (h *HTTPHandler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if !bindJSON(c, &req) {
		return
	}
	event, err := h.service.RegisterEvent(c.Request.Context(), services.RegisterEventInput{
		Name:          req.Name,
		ScheduledTime: req.ScheduledTime,
		Prize:         *req.Prize,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// ListEvents returns every open event.
func (h *HTTPHandler) ListEvents(c *gin.Context) {
	events, err := h.service.ListEvents(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetEventsLegacy serves the event list with the scheduled time under
// "event_time", which is what existing frontends read.
func (h *HTTPHandler) GetEventsLegacy(c *gin.Context) {
	events, err := h.service.ListEvents(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	rows := make([]legacyEvent, 0, len(events))
	for _, e := range events {
		rows = append(rows, legacyEvent{ID: e.ID, Name: e.Name, EventTime: e.ScheduledTime, Prize: e.Prize})
	}
	c.JSON(http.StatusOK, gin.H{"events": rows})
}

// JoinEvent issues (or returns the existing) ticket for the caller.
func (h *HTTPHandler) JoinEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || eventID <= 0 {
		writeError(c, http.StatusBadRequest, codeInvalidID, "event id must be a positive integer")
		return
	}
	var req joinRequest
	if !bindJSON(c, &req) {
		return
	}

	ticket, err := h.service.Join(c.Request.Context(), eventID, req.Email)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	status := http.StatusOK
	if ticket.Created {
		status = http.StatusCreated
	}
	c.JSON(status, ticket)
}

// JoinedEvents lists the events an identity holds tickets for.
func (h *HTTPHandler) JoinedEvents(c *gin.Context) {
	joined, err := h.service.JoinedEventsFor(c.Request.Context(), c.Param("email"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": joined})
}

// SweepExpire deletes past events without drawing winners.
func (h *HTTPHandler) SweepExpire(c *gin.Context) {
	report, err := h.service.RemovePastEvents(c.Request.Context())
	if err != nil {
		logger.Errorf("Expiry sweep stopped after removing %d events: %v", len(report.Removed), err)
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SweepFinalize draws winners for past events and tears them down.
func (h *HTTPHandler) SweepFinalize(c *gin.Context) {
	report, err := h.service.FinalizeEvents(c.Request.Context())
	if err != nil {
		logger.Errorf("Finalize sweep stopped after %d winners: %v", len(report.Winners), err)
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListWinners returns the winner ledger, newest first.
func (h *HTTPHandler) ListWinners(c *gin.Context) {
	winners, err := h.service.ListWinners(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"winners": winners})
}

// ExportWinnersCSV handles the request to download the winner ledger as a CSV file.
func (h *HTTPHandler) ExportWinnersCSV(c *gin.Context) {
	winners, err := h.service.ListWinners(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment;filename=winners.csv")

	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)
	if err := w.Write([]string{"event_id", "event_name", "prize", "winner_name", "winner_email", "ticket_number", "drawn_at"}); err != nil {
		logger.Errorf("Error writing CSV header: %v", err)
		return
	}
	for _, winner := range winners {
		row := []string{
			strconv.FormatInt(winner.EventID, 10),
			winner.EventName,
			strconv.FormatInt(winner.Prize, 10),
			winner.WinnerName,
			winner.WinnerIdentityToken,
			strconv.FormatInt(winner.TicketNumber, 10),
			time.UnixMilli(winner.DrawnAtMillis).UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			logger.Errorf("Error writing CSV row: %v", err)
			return
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		logger.Errorf("Error flushing CSV writer: %v", err)
	}
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Warningf("Invalid request body on %s: %v", c.FullPath(), err)
		writeError(c, http.StatusBadRequest, codeInvalidRequestBody, strings.TrimSpace(err.Error()))
		return false
	}
	return true
}
