package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/example/food-order-service/internal/adapter/auth"
	"github.com/example/food-order-service/internal/adapter/realtime"
	"github.com/example/food-order-service/internal/domain"
	"github.com/example/food-order-service/internal/usecase"
)

const maxBody = 1 << 20

// identity — личность из токена; без неё маршрут за authed не вызывается.
func identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeDetail(w, http.StatusForbidden, "forbidden")
	}
	return id, ok
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type placeOrderRequest struct {
	VendorID   uuid.UUID         `json:"vendor_id"`
	Foods      []domain.FoodItem `json:"foods"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req placeOrderRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := s.UC.PlaceOrder.Execute(r.Context(), usecase.PlaceOrderCommand{
		VendorID:   req.VendorID,
		ConsumerID: id.SubjectID,
		Foods:      req.Foods,
		TotalPrice: req.TotalPrice,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetConsumer(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	c, err := s.UC.GetConsumer.Execute(r.Context(), id.SubjectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateAnonymousConsumer(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	c, err := s.UC.CreateAnonymousConsumer.Execute(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCreateSignedConsumer(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var in usecase.SignedConsumerInput
	if r.ContentLength != 0 && !decode(w, r, &in) {
		return
	}
	c, err := s.UC.CreateSignedConsumer.Execute(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetVendor(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	v, err := s.UC.GetVendor.Execute(r.Context(), id.SubjectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var in usecase.VendorInput
	if !decode(w, r, &in) {
		return
	}
	v, err := s.UC.CreateVendor.Execute(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	status := domain.VendorStatus(r.URL.Query().Get("new_status"))
	v, err := s.UC.UpdateVendorStatus.Execute(r.Context(), id.SubjectID, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"detail": "status updated", "status": v.Status})
}

func (s *Server) handleAddFoods(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	// одно блюдо или список
	var raw json.RawMessage
	if !decode(w, r, &raw) {
		return
	}
	var foods []domain.Food
	if err := json.Unmarshal(raw, &foods); err != nil {
		var one domain.Food
		if err := json.Unmarshal(raw, &one); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid request body")
			return
		}
		foods = []domain.Food{one}
	}
	added, err := s.UC.AddFoods.Execute(r.Context(), id.SubjectID, foods)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleAllOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	orders, err := s.UC.GetAllOrders.Execute(r.Context(), id.SubjectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleNextOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	order, err := s.UC.GetNextOrder.Execute(r.Context(), id.SubjectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCompleteCurrent(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	order, err := s.UC.CompleteCurrentOrder.Execute(r.Context(), id.SubjectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleVendorByName(w http.ResponseWriter, r *http.Request) {
	v, err := s.UC.GetVendorByName.Execute(r.Context(), mux.Vars(r)["vendor_name"])
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	foods, err := s.UC.GetMenu.Execute(r.Context(), mux.Vars(r)["vendor_name"])
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, foods)
}

func (s *Server) handleFood(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	f, err := s.UC.GetFood.Execute(r.Context(), vars["vendor_name"], vars["food_name"])
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleOrderCount — websocket продавца: сервер шлёт число ожидающих
// заказов, входящие кадры читаются и отбрасываются.
func (s *Server) handleOrderCount(w http.ResponseWriter, r *http.Request) {
	v, err := s.UC.GetVendorByName.Execute(r.Context(), mux.Vars(r)["vendor_name"])
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	conn, err := realtime.Upgrade(s.Upgrader, w, r)
	if err != nil {
		// Upgrade уже ответил клиенту
		s.Log.WithError(err).WithField("vendor", v.Name).Debug("websocket upgrade failed")
		return
	}
	s.Conns.Connect(v.Name, conn)
	conn.ReadLoop(r.Context())
	s.Conns.Release(v.Name, conn)
}
