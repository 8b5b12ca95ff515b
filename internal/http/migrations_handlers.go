package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"db_schema_migrator/internal/migrate"
)

// StatusSource is implemented by *migrate.Runner.
type StatusSource interface {
	Status(ctx context.Context) ([]migrate.Status, error)
}

type MigrationHandler struct {
	source StatusSource
	logger requestLogger
}

func NewMigrationHandler(source StatusSource, logger requestLogger) *MigrationHandler {
	return &MigrationHandler{
		source: source,
		logger: logger,
	}
}

type migrationsResponse struct {
	Migrations []migrate.Status `json:"migrations"`
	Applied    int              `json:"applied"`
	Pending    int              `json:"pending"`
	Batch      int              `json:"batch"`
}

func (h *MigrationHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.source.Status(r.Context())
	if err != nil {
		h.logger.Error("list migrations failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "list_failed", "failed to list migrations")
		return
	}
	resp := migrationsResponse{Migrations: items}
	for _, item := range items {
		if item.Applied {
			resp.Applied++
		} else {
			resp.Pending++
		}
		if item.Batch > resp.Batch {
			resp.Batch = item.Batch
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MigrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, _, err := migrate.ParseID(id); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "invalid migration id")
		return
	}
	items, err := h.source.Status(r.Context())
	if err != nil {
		h.logger.Error("get migration failed", "error", err, "migration_id", id)
		writeError(w, r, http.StatusInternalServerError, "get_failed", "failed to load migration")
		return
	}
	for _, item := range items {
		if item.ID == id {
			writeJSON(w, http.StatusOK, item)
			return
		}
	}
	writeError(w, r, http.StatusNotFound, "not_found", "migration not found")
}
