package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ontodb/ontosync/internal/pipeline"
)

// Handler subscribes to pipeline events and formats them as dashboard
// messages. It bridges between the sync engine and the WebSocket server.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
	}
}

// HandleEvent routes a pipeline event to the matching broadcast.
// Install it on an engine with Engine.OnEvent(handler.HandleEvent).
func (h *Handler) HandleEvent(ev pipeline.Event) {
	switch ev.Type {
	case pipeline.EventRunStarted:
		h.onSyncStarted(ev)
	case pipeline.EventPageFetched:
		h.onProgress(ev)
	case pipeline.EventTermSkipped:
		h.onTermSkipped(ev)
	case pipeline.EventRunCompleted:
		h.onSyncComplete(ev)
	}
}

// onSyncStarted handles run start events
func (h *Handler) onSyncStarted(ev pipeline.Event) {
	h.logger.Printf("Sync %d started (%s)", ev.ExecutionID, ev.Message)

	data := SyncStartedData{
		ExecutionID: ev.ExecutionID,
		Mode:        ev.Message,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal sync start data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeSyncStarted,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

// onProgress handles page fetch events
func (h *Handler) onProgress(ev pipeline.Event) {
	data := ProgressData{
		ExecutionID: ev.ExecutionID,
		Detail:      ev.Message,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal progress data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeProgress,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

// onTermSkipped handles validation skip events
func (h *Handler) onTermSkipped(ev pipeline.Event) {
	data := TermSkippedData{
		ExecutionID: ev.ExecutionID,
		Detail:      ev.Message,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal skip data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeTermSkipped,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

// onSyncComplete handles run completion events
func (h *Handler) onSyncComplete(ev pipeline.Event) {
	res := ev.Result
	if res == nil {
		return
	}

	h.logger.Printf("Sync %d complete: %s (%d fetched, %d inserted, %d updated, %d unchanged)",
		ev.ExecutionID, res.Status, res.TermsFetched, res.TermsInserted,
		res.TermsUpdated, res.TermsUnchanged)

	h.server.metrics.ObserveRun(res)

	dataJSON, err := json.Marshal(res)
	if err != nil {
		h.logger.Printf("Failed to marshal sync result: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeSyncComplete,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})

	// Broadcast refreshed store statistics
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.RefreshStats(ctx)
}

// RefreshStats queries the store and broadcasts current statistics.
// Useful at startup and after every completed run.
func (h *Handler) RefreshStats(ctx context.Context) {
	stats, err := h.server.currentStats(ctx)
	if err != nil {
		h.logger.Printf("Failed to refresh stats: %v", err)
		return
	}

	h.server.metrics.SetStored(stats.Terms, stats.Relationships)

	dataJSON, err := json.Marshal(stats)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
