// Package handler exposes booking endpoints for the rider app plus the
// internal dispatch surface that driver-side systems call.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/repository"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/service"
	faredomain "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

const heartbeatInterval = 15 * time.Second

type BookingHandler struct {
	svc      *service.Service
	validate *validator.Validate
	logger   *zap.Logger
}

func NewBookingHandler(svc *service.Service, logger *zap.Logger) *BookingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingHandler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes builds the rider-facing booking router.
func (h *BookingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/retry", h.retry)
	r.Get("/{id}/events", h.streamEvents)
	return r
}

// InternalRoutes builds the dispatch-facing router. It carries no rider
// auth; deployments keep it off the public listener.
func (h *BookingHandler) InternalRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/assign", h.assign)
	r.Post("/{id}/start", h.start)
	r.Post("/{id}/complete", h.complete)
	return r
}

type createBookingRequest struct {
	RiderID          string  `json:"rider_id" validate:"required,uuid"`
	ServiceType      string  `json:"service_type" validate:"required,oneof=standard outstation rental airport"`
	CarClass         string  `json:"car_class" validate:"required"`
	PickupLat        float64 `json:"pickup_lat" validate:"required,latitude"`
	PickupLng        float64 `json:"pickup_lng" validate:"required,longitude"`
	DropLat          float64 `json:"drop_lat" validate:"omitempty,latitude"`
	DropLng          float64 `json:"drop_lng" validate:"omitempty,longitude"`
	TripDays         int     `json:"trip_days" validate:"omitempty,min=1,max=30"`
	RoundTrip        bool    `json:"round_trip"`
	RentalPackage    string  `json:"rental_package"`
	AirportDirection string  `json:"airport_direction" validate:"omitempty,oneof=to_airport from_airport"`
}

type driverActionRequest struct {
	DriverID string `json:"driver_id" validate:"required,uuid"`
}

type bookingResponse struct {
	BookingID   uuid.UUID                `json:"booking_id"`
	RiderID     uuid.UUID                `json:"rider_id"`
	ServiceType faredomain.ServiceType   `json:"service_type"`
	CarClass    faredomain.CarClass      `json:"car_class"`
	Status      domain.Status            `json:"status"`
	Pickup      geo.Coordinate           `json:"pickup"`
	Drop        geo.Coordinate           `json:"drop"`
	Fare        faredomain.FareBreakdown `json:"fare"`
	Driver      *domain.DriverSnapshot   `json:"driver,omitempty"`
	FailReason  string                   `json:"fail_reason,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	ConfirmedAt *time.Time               `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time               `json:"cancelled_at,omitempty"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		BookingID:   b.ID,
		RiderID:     b.RiderID,
		ServiceType: b.ServiceType,
		CarClass:    b.CarClass,
		Status:      b.Status,
		Pickup:      b.Pickup,
		Drop:        b.Drop,
		Fare:        b.Fare,
		Driver:      b.Driver,
		FailReason:  b.FailReason,
		CreatedAt:   b.CreatedAt,
		ConfirmedAt: b.ConfirmedAt,
		CancelledAt: b.CancelledAt,
		CompletedAt: b.CompletedAt,
	}
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	riderID, err := uuid.Parse(req.RiderID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid rider_id")
		return
	}

	resp, err := h.svc.CreateBooking(r.Context(), r.Header.Get("Idempotency-Key"), service.CreateBookingRequest{
		RiderID:          riderID,
		ServiceType:      faredomain.ServiceType(req.ServiceType),
		CarClass:         faredomain.CarClass(req.CarClass),
		Pickup:           geo.Coordinate{Lat: req.PickupLat, Lng: req.PickupLng},
		Drop:             geo.Coordinate{Lat: req.DropLat, Lng: req.DropLng},
		TripDays:         req.TripDays,
		RoundTrip:        req.RoundTrip,
		RentalPackage:    req.RentalPackage,
		AirportDirection: faredomain.AirportDirection(req.AirportDirection),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *BookingHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	// body is optional
	_ = json.NewDecoder(r.Body).Decode(&payload)

	booking, err := h.svc.CancelBooking(r.Context(), id, payload.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) retry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.RetrySearch(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	driverID, ok := h.driverID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.AcceptAssignment(r.Context(), id, driverID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) start(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	driverID, ok := h.driverID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.StartTrip(r.Context(), id, driverID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.CompleteTrip(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type outcomeEvent struct {
	Kind      domain.OutcomeKind     `json:"kind"`
	DriverID  string                 `json:"driver_id,omitempty"`
	Driver    *domain.DriverSnapshot `json:"driver,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	DecidedAt time.Time              `json:"decided_at"`
}

type outcomeResult struct {
	outcome domain.MatchOutcome
	err     error
}

// streamEvents pushes booking state over SSE: an initial status event, the
// search outcome when it settles, and heartbeats in between.
func (h *BookingHandler) streamEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sendEvent(w, flusher, "status", toBookingResponse(booking))
	if booking.Status != domain.StatusSearching {
		return
	}

	ctx := r.Context()
	outcomeCh := make(chan outcomeResult, 1)
	go func() {
		outcome, err := h.svc.WaitOutcome(ctx, id)
		outcomeCh <- outcomeResult{outcome: outcome, err: err}
	}()

	// polling covers searches owned by another instance, where WaitOutcome
	// has nothing local to block on
	polling := false
	lastStatus := booking.Status
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-outcomeCh:
			if res.err != nil {
				if errors.Is(res.err, service.ErrSearchInProgress) {
					polling = true
					continue
				}
				if ctx.Err() != nil {
					return
				}
				h.logger.Warn("booking event stream ended",
					zap.String("booking_id", id.String()),
					zap.Error(res.err))
				return
			}
			sendEvent(w, flusher, "outcome", outcomeEvent{
				Kind:      res.outcome.Kind,
				DriverID:  uuidString(res.outcome.DriverID),
				Driver:    res.outcome.Driver,
				Reason:    res.outcome.Reason,
				DecidedAt: res.outcome.DecidedAt,
			})
			if final, err := h.svc.GetBooking(ctx, id); err == nil {
				sendEvent(w, flusher, "status", toBookingResponse(final))
			}
			return
		case <-ticker.C:
			sendEvent(w, flusher, "heartbeat", map[string]string{"time": time.Now().UTC().Format(time.RFC3339)})
			if !polling {
				continue
			}
			current, err := h.svc.GetBooking(ctx, id)
			if err != nil {
				continue
			}
			if current.Status != lastStatus {
				lastStatus = current.Status
				sendEvent(w, flusher, "status", toBookingResponse(current))
			}
			if current.Status != domain.StatusSearching {
				// Terminal now, so WaitOutcome resolves from the stored row.
				if outcome, err := h.svc.WaitOutcome(ctx, id); err == nil {
					sendEvent(w, flusher, "outcome", outcomeEvent{
						Kind:      outcome.Kind,
						DriverID:  uuidString(outcome.DriverID),
						Driver:    outcome.Driver,
						Reason:    outcome.Reason,
						DecidedAt: outcome.DecidedAt,
					})
				}
				return
			}
		}
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

func uuidString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func (h *BookingHandler) bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *BookingHandler) driverID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req driverActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return uuid.Nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return uuid.Nil, false
	}
	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid driver_id")
		return uuid.Nil, false
	}
	return driverID, true
}

func (h *BookingHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrDriverMismatch):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, faredomain.ErrInvalidRequest), errors.Is(err, faredomain.ErrUnknownService):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, faredomain.ErrNoFareConfig):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("booking request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
