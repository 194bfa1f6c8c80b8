package fulfillment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appetiteclub/fulfillment/pkg/enums/orderstatus"
	"github.com/appetiteclub/fulfillment/pkg/enums/station"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	service *Service
	logger  apt.Logger
	config  *apt.Config
	tlm     *telemetry.HTTP
}

type HandlerDeps struct {
	Service *Service
}

func NewHandler(hd HandlerDeps, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		service: hd.Service,
		logger:  logger,
		config:  config,
		tlm:     telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}/prepare", h.PrepareOrder)
		r.Patch("/{id}/ready", h.ReadyOrder)
		r.Patch("/{id}/complete", h.CompleteOrder)
		r.Patch("/{id}/cancel", h.CancelOrder)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

type createOrderRequest struct {
	CustomerName  string `json:"customer_name"`
	TableID       string `json:"table_id"`
	PaymentMethod string `json:"payment_method"`
	PaymentStatus string `json:"payment_status"`
	Items         []struct {
		MenuItemID string  `json:"menu_item_id"`
		Name       string  `json:"name"`
		UnitPrice  float64 `json:"unit_price"`
		Quantity   int     `json:"quantity"`
		Notes      string  `json:"notes"`
	} `json:"items"`
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var payload createOrderRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	order := NewOrder()
	order.CustomerName = payload.CustomerName
	order.TableID = payload.TableID
	order.PaymentMethod = payload.PaymentMethod
	order.PaymentStatus = payload.PaymentStatus
	order.Subtotal = payload.Subtotal
	order.Discount = payload.Discount
	order.Total = payload.Total

	for _, item := range payload.Items {
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid menu item ID")
			return
		}
		order.Items = append(order.Items, OrderItem{
			MenuItemID: menuItemID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		})
	}

	if err := h.service.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, ErrInvalidOrder) {
			apt.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Errorf("cannot create order: %v", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create order")
		return
	}

	apt.Respond(w, http.StatusCreated, order, nil)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	var filter *station.Station
	if name := r.URL.Query().Get("station"); name != "" {
		filter = station.ByName(name)
		if filter == nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid station")
			return
		}
	}

	orders, err := h.service.ListActiveOrders(ctx, filter)
	if err != nil {
		log.Errorf("cannot list orders: %v", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list orders")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
	}, nil)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := h.service.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			apt.RespondError(w, http.StatusNotFound, "Order not found")
			return
		}
		log.Errorf("cannot find order: %v", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not fetch order")
		return
	}

	apt.Respond(w, http.StatusOK, order, nil)
}

func (h *Handler) PrepareOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Prepare", orderstatus.Statuses.Preparing, false)
}

// ReadyOrder requires the requesting station: authority over the ready
// transition differs between kitchen and bar.
func (h *Handler) ReadyOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Ready", orderstatus.Statuses.Ready, true)
}

// CompleteOrder is the manual retry path for orders whose auto-completion
// was rejected by the store.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Complete", orderstatus.Statuses.Completed, false)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Cancel", orderstatus.Statuses.Cancelled, false)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, to orderstatus.Status, stationRequired bool) {
	w, r, finish := h.tlm.Start(w, r, "Handler."+action+"Order")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var from *station.Station
	if name := r.URL.Query().Get("station"); name != "" {
		from = station.ByName(name)
		if from == nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid station")
			return
		}
	}
	if stationRequired && from == nil {
		apt.RespondError(w, http.StatusBadRequest, "Missing requesting station")
		return
	}

	result, err := h.service.RequestTransition(ctx, id, to, from)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			apt.RespondError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, ErrInvalidTransition):
			apt.RespondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrConflictOnWrite):
			apt.RespondError(w, http.StatusConflict, "Order was changed by another writer, retry")
		default:
			log.Errorf("cannot update order status: %v", err)
			apt.RespondError(w, http.StatusInternalServerError, "Could not update order status")
		}
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"order":        result.Order,
		"changed":      result.Changed,
		"acknowledged": result.Acknowledged,
	}, nil)
}
