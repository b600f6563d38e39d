// handler.go — общие помощники для HTTP handlers.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/iamdeveloper17/specsCloud/internal/api/errors"
	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
)

// writeJSON сериализует ответ с заданным статусом.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON читает JSON-тело запроса в dst.
// При ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректное JSON-тело запроса")
		return false
	}
	return true
}

// parseKind валидирует обязательный параметр kind.
// При ошибке пишет 400 и возвращает false.
func parseKind(w http.ResponseWriter, raw string) (model.Kind, bool) {
	kind := model.Kind(raw)
	if !kind.Valid() {
		apierrors.ValidationError(w, "Параметр kind должен быть 'catalogue' или 'specification'")
		return "", false
	}
	return kind, true
}
