package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yangwenmai/readtrack/internal/live"
	"github.com/yangwenmai/readtrack/internal/logger"
	"github.com/yangwenmai/readtrack/internal/model"
	"github.com/yangwenmai/readtrack/internal/store"
)

// heartbeatInterval keeps idle event streams open through proxies.
var heartbeatInterval = 25 * time.Second

func (s *Server) handleLiveBookmarks(w http.ResponseWriter, r *http.Request) {
	stream(s, w, r, []string{store.TableBookmark}, func(ctx context.Context) ([]model.Bookmark, error) {
		list, err := s.Store.ListBookmarks(ctx)
		if list == nil {
			list = []model.Bookmark{}
		}
		return list, err
	})
}

func (s *Server) handleLiveDomainReadStates(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	stream(s, w, r, []string{store.TableReadState}, func(ctx context.Context) ([]model.ReadState, error) {
		list, err := s.Store.ListReadStates(ctx, domain)
		if list == nil {
			list = []model.ReadState{}
		}
		return list, err
	})
}

func (s *Server) handleLiveReadState(w http.ResponseWriter, r *http.Request) {
	domain, slug := chi.URLParam(r, "domain"), chi.URLParam(r, "slug")
	if err := model.Required(
		model.Field{Name: "domain", Value: domain},
		model.Field{Name: "slug", Value: slug},
	); err != nil {
		s.writeFailure(w, r, err, "invalid document")
		return
	}
	stream(s, w, r, []string{store.TableReadState}, func(ctx context.Context) (model.ReadState, error) {
		return s.Engine.Get(ctx, domain, slug)
	})
}

// stream serves a live query as server-sent events. Every snapshot is sent
// as a "snapshot" event; a failed query run is sent as an "error" event and
// the stream stays open. The stream ends when the client disconnects.
func stream[T any](s *Server, w http.ResponseWriter, r *http.Request, tables []string, query live.QueryFunc[T]) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := live.Subscribe(r.Context(), s.Hub, tables, query)
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeEvent(w, snap); err != nil {
				s.Log.Debug("live stream closed",
					logger.String("request_id", middleware.GetReqID(r.Context())),
					logger.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent[T any](w http.ResponseWriter, snap live.Snapshot[T]) error {
	event := "snapshot"
	var payload any = snap.Data
	if snap.Err != nil {
		event = "error"
		payload = map[string]string{"error": snap.Err.Error()}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", snap.Seq, event, data)
	return err
}
