// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/iamdeveloper17/specsCloud/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// ReadyChecker — интерфейс проверки готовности зависимости
// (Postgres, хранилище blob).
type ReadyChecker interface {
	CheckReady() (status string, message string)
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// db — проверка доступности Postgres
	db ReadyChecker
	// blobs — проверка файлового хранилища
	blobs ReadyChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(db, blobs ReadyChecker) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		db:      db,
		blobs:   blobs,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "specscloud",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: подключение к Postgres, доступность хранилища blob.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	checks := map[string]any{}

	dbStatus, dbMessage := h.db.CheckReady()
	checks["database"] = map[string]string{"status": dbStatus, "message": dbMessage}
	if dbStatus != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	blobStatus, blobMessage := h.blobs.CheckReady()
	checks["blobstore"] = map[string]string{"status": blobStatus, "message": blobMessage}
	if blobStatus != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "specscloud",
		"checks":    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
