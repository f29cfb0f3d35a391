// Package handler exposes fare estimation over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/service"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

type FareHandler struct {
	svc      *service.Service
	validate *validator.Validate
	logger   *zap.Logger
}

func NewFareHandler(svc *service.Service, logger *zap.Logger) *FareHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FareHandler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *FareHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/quotes", h.quote)
	r.Get("/classes/{serviceType}", h.classes)
	return r
}

type quoteRequest struct {
	ServiceType      string  `json:"service_type" validate:"required,oneof=standard outstation rental airport"`
	CarClass         string  `json:"car_class"`
	PickupLat        float64 `json:"pickup_lat" validate:"required,latitude"`
	PickupLng        float64 `json:"pickup_lng" validate:"required,longitude"`
	DropLat          float64 `json:"drop_lat" validate:"omitempty,latitude"`
	DropLng          float64 `json:"drop_lng" validate:"omitempty,longitude"`
	TripDays         int     `json:"trip_days" validate:"omitempty,min=1,max=30"`
	RoundTrip        bool    `json:"round_trip"`
	RentalPackage    string  `json:"rental_package"`
	AirportDirection string  `json:"airport_direction" validate:"omitempty,oneof=to_airport from_airport"`
}

func (r quoteRequest) toDomain() domain.FareRequest {
	return domain.FareRequest{
		ServiceType:      domain.ServiceType(r.ServiceType),
		CarClass:         domain.CarClass(r.CarClass),
		Pickup:           geo.Coordinate{Lat: r.PickupLat, Lng: r.PickupLng},
		Drop:             geo.Coordinate{Lat: r.DropLat, Lng: r.DropLng},
		TripDays:         r.TripDays,
		RoundTrip:        r.RoundTrip,
		RentalPackage:    r.RentalPackage,
		AirportDirection: domain.AirportDirection(r.AirportDirection),
	}
}

func (h *FareHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp, err := h.svc.Quote(r.Context(), req.toDomain())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *FareHandler) classes(w http.ResponseWriter, r *http.Request) {
	serviceType := domain.ServiceType(chi.URLParam(r, "serviceType"))
	if !serviceType.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "unknown service type")
		return
	}

	classes, err := h.svc.Classes(r.Context(), serviceType)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service_type": serviceType,
		"car_classes":  classes,
	})
}

func (h *FareHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnknownService):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNoFareConfig):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("fare quote failed", zap.Error(err))
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
