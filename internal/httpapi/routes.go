package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/colibrishin/dx-api-sub000/internal/hub"
	"github.com/colibrishin/dx-api-sub000/internal/session"
	"github.com/colibrishin/dx-api-sub000/internal/store"
	"github.com/colibrishin/dx-api-sub000/internal/ws"
)

type Deps struct {
	Hub      *hub.Hub
	Registry *session.Registry
	Store    store.Store
	Log      *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/lobby", Lobby(d.Registry))
	r.Get("/rooms", Rooms(d.Registry))
	r.Get("/rooms/{id}", Room(d.Registry))
	r.Get("/matches", Matches(d.Store, d.Log))
	r.Get("/feeds", Feeds(d.Hub))
	r.Get("/ws", ws.Handler(d.Hub, d.Log))
	return r
}
