package httpapi

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/example/food-order-service/internal/domain"
	"github.com/example/food-order-service/internal/logger"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeError — ошибки валидации и "не найдено" уходят клиенту как 400 с
// причиной, остальное логируется и отдаётся как 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err), domain.IsNotFound(err):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		logger.FromContext(r.Context(), s.Log).WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

// writeLookupError — для публичных маршрутов по имени: отсутствие — 404.
func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsNotFound(err) {
		writeDetail(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeError(w, r, err)
}
