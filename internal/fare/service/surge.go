package service

import (
	"context"
	"time"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

const currencyINR = "INR"

// StaticSurge always answers with a fixed multiplier. The zero value quotes
// without surge.
type StaticSurge struct {
	Mult float64
}

func (s StaticSurge) Multiplier(context.Context, geo.Coordinate, time.Time) (float64, error) {
	if s.Mult < 1 {
		return 1, nil
	}
	return s.Mult, nil
}

// SurgeWindow is a daily local-time window with an elevated multiplier.
// StartHour is inclusive, EndHour exclusive.
type SurgeWindow struct {
	StartHour  int
	EndHour    int
	Multiplier float64
}

// ScheduleSurge applies peak-hour multipliers on a fixed daily schedule.
// Overlapping windows take the highest multiplier.
type ScheduleSurge struct {
	loc     *time.Location
	windows []SurgeWindow
}

func NewScheduleSurge(loc *time.Location, windows ...SurgeWindow) *ScheduleSurge {
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleSurge{loc: loc, windows: windows}
}

func (s *ScheduleSurge) Multiplier(_ context.Context, _ geo.Coordinate, when time.Time) (float64, error) {
	hour := when.In(s.loc).Hour()
	mult := 1.0
	for _, w := range s.windows {
		if hour >= w.StartHour && hour < w.EndHour && w.Multiplier > mult {
			mult = w.Multiplier
		}
	}
	return mult, nil
}
