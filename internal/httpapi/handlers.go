package httpapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/colibrishin/dx-api-sub000/internal/hub"
	"github.com/colibrishin/dx-api-sub000/internal/session"
	"github.com/colibrishin/dx-api-sub000/internal/store"
	"github.com/colibrishin/dx-api-sub000/internal/types"
	api "github.com/colibrishin/dx-api-sub000/pkg/types"
)

const defaultMatchLimit = 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Rooms(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views := reg.Rooms()
		out := make([]api.Room, 0, len(views))
		for _, v := range views {
			out = append(out, types.Room(v))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func Room(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 32)
		if err != nil {
			http.Error(w, "bad room id", http.StatusBadRequest)
			return
		}
		v, ok := reg.Room(int32(id))
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, types.Room(v))
	}
}

func Lobby(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.Lobby(reg.Lobby()))
	}
}

// Matches lists recent results, newest first. ?limit=N caps the count.
func Matches(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultMatchLimit
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n <= 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		results, err := st.Recent(r.Context(), limit)
		if err != nil {
			log.Error("list match results", zap.Error(err))
			http.Error(w, "failed to load results", http.StatusInternalServerError)
			return
		}
		out := make([]api.MatchResult, 0, len(results))
		for _, res := range results {
			out = append(out, types.Result(res))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Feeds lists the rooms spectators can currently subscribe to.
func Feeds(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := h.Rooms(r.Context())
		slices.Sort(rooms)
		writeJSON(w, http.StatusOK, rooms)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
