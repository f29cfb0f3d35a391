package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
)

// MemoryDispatchStore keeps dispatch assignments in process memory. The
// first recorded driver for a booking sticks.
type MemoryDispatchStore struct {
	mu          sync.RWMutex
	assignments map[uuid.UUID]domain.AssignmentSignal
}

func NewMemoryDispatchStore() *MemoryDispatchStore {
	return &MemoryDispatchStore{assignments: make(map[uuid.UUID]domain.AssignmentSignal)}
}

// RecordAssignment stores the accepted driver. It reports whether this call
// was the first to record one.
func (s *MemoryDispatchStore) RecordAssignment(_ context.Context, sig domain.AssignmentSignal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assignments[sig.BookingID]; exists {
		return false, nil
	}
	s.assignments[sig.BookingID] = sig
	return true, nil
}

// Assignment returns the recorded driver for a booking, if any.
func (s *MemoryDispatchStore) Assignment(_ context.Context, bookingID uuid.UUID) (domain.AssignmentSignal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.assignments[bookingID]
	return sig, ok, nil
}
