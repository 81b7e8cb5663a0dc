package api

import (
	"context"
	"time"

	"github.com/convomesh/memoryd/internal/embedding"
	"github.com/convomesh/memoryd/internal/lifecycle"
	"github.com/convomesh/memoryd/internal/service"
	"github.com/convomesh/memoryd/internal/store"
)

// Handler bundles every dependency the route handlers need. It is built
// once in cmd/server/main.go and its methods registered as gin handlers
// in router.go.
type Handler struct {
	messages        *service.MessageService
	lifecycleEngine *lifecycle.Engine
	store           store.Store
	embedder        embedding.Provider
	dbPing          func(ctx context.Context) error

	startedAt   time.Time
	environment string
	version     string
}

// NewHandler builds a Handler.
func NewHandler(messages *service.MessageService, lifecycleEngine *lifecycle.Engine, st store.Store, embedder embedding.Provider, dbPing func(ctx context.Context) error, environment, version string) *Handler {
	return &Handler{
		messages:        messages,
		lifecycleEngine: lifecycleEngine,
		store:           st,
		embedder:        embedder,
		dbPing:          dbPing,
		startedAt:       time.Now(),
		environment:     environment,
		version:         version,
	}
}
