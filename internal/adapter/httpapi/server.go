package httpapi

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/food-order-service/internal/adapter/auth"
	"github.com/example/food-order-service/internal/adapter/realtime"
	"github.com/example/food-order-service/internal/logger"
	"github.com/example/food-order-service/internal/usecase"
)

const serviceName = "food-order-service"

// UseCases — сценарии, доступные через HTTP.
type UseCases struct {
	PlaceOrder           usecase.PlaceOrder
	GetNextOrder         usecase.GetNextOrder
	GetAllOrders         usecase.GetAllOrders
	CompleteCurrentOrder usecase.CompleteCurrentOrder

	CreateVendor       usecase.CreateVendor
	GetVendor          usecase.GetVendor
	GetVendorByName    usecase.GetVendorByName
	UpdateVendorStatus usecase.UpdateVendorStatus
	AddFoods           usecase.AddFoods
	GetMenu            usecase.GetMenu
	GetFood            usecase.GetFood

	CreateAnonymousConsumer usecase.CreateAnonymousConsumer
	CreateSignedConsumer    usecase.CreateSignedConsumer
	GetConsumer             usecase.GetConsumer
}

// Connector — регистрация realtime-соединений продавцов.
type Connector interface {
	Connect(name string, conn realtime.Conn)
	Release(name string, conn realtime.Conn)
}

type Server struct {
	Router   *mux.Router
	UC       UseCases
	Auth     *auth.Verifier
	Conns    Connector
	Upgrader *websocket.Upgrader
	Log      logrus.FieldLogger
}

func NewServer(uc UseCases, verifier *auth.Verifier, conns Connector, log logrus.FieldLogger) *Server {
	s := &Server{
		Router:   mux.NewRouter(),
		UC:       uc,
		Auth:     verifier,
		Conns:    conns,
		Upgrader: &websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		Log:      log,
	}
	s.Router.Use(s.requestLog)

	s.Router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.Router.Handle("/order", s.authed(s.handlePlaceOrder)).Methods(http.MethodPost)

	s.Router.Handle("/consumer", s.authed(s.handleGetConsumer)).Methods(http.MethodGet)
	s.Router.Handle("/consumer/anonymous", s.authed(s.handleCreateAnonymousConsumer)).Methods(http.MethodPost)
	s.Router.Handle("/consumer/signed", s.authed(s.handleCreateSignedConsumer)).Methods(http.MethodPost)

	// маршруты без {vendor_name} регистрируются раньше шаблонных
	s.Router.Handle("/vendor", s.authed(s.handleGetVendor)).Methods(http.MethodGet)
	s.Router.Handle("/vendor/new", s.authed(s.handleCreateVendor)).Methods(http.MethodPost)
	s.Router.Handle("/vendor/change-status", s.authed(s.handleChangeStatus)).Methods(http.MethodPatch)
	s.Router.Handle("/vendor/menu", s.authed(s.handleAddFoods)).Methods(http.MethodPost)
	s.Router.Handle("/vendor/orders/all", s.authed(s.handleAllOrders)).Methods(http.MethodGet)
	s.Router.Handle("/vendor/orders/next", s.authed(s.handleNextOrder)).Methods(http.MethodGet)
	s.Router.Handle("/vendor/orders/current/complete", s.authed(s.handleCompleteCurrent)).Methods(http.MethodPatch)

	s.Router.HandleFunc("/vendor/{vendor_name}", s.handleVendorByName).Methods(http.MethodGet)
	s.Router.HandleFunc("/vendor/{vendor_name}/menu", s.handleMenu).Methods(http.MethodGet)
	s.Router.HandleFunc("/vendor/{vendor_name}/menu/{food_name}", s.handleFood).Methods(http.MethodGet)
	s.Router.HandleFunc("/vendor/{vendor_name}/ws/order-count", s.handleOrderCount).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.Auth.Middleware(h)
}

// requestLog выдаёт запросу id и пишет строку лога после ответа.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithRequestID(r.Context(), uuid.NewString())
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))
		logger.FromContext(ctx, s.Log).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, serviceName)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack нужен апгрейду websocket.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
