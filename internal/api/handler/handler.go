package handler

import (
	"brandlink/backend/internal/config"
	"brandlink/backend/internal/localization"
	"brandlink/backend/internal/realtime"
	"brandlink/backend/internal/storage"
)

// Handler carries the dependencies of every HTTP and WebSocket endpoint.
type Handler struct {
	Store realtime.Store
	DB    storage.Storage
	Loc   *localization.Localizer
	Cfg   *config.Config
}

func NewHandler(store realtime.Store, db storage.Storage, loc *localization.Localizer, cfg *config.Config) *Handler {
	return &Handler{Store: store, DB: db, Loc: loc, Cfg: cfg}
}
