package domain

import (
	"errors"
	"time"
)

// Station represents one tap station worker registered with the platform.
type Station struct {
	ID             int
	Name           string
	Kinds          string
	Status         StationStatus
	LastSeen       time.Time
	PoursCompleted int
	CreatedAt      time.Time
}

type StationStatus string

const (
	StationOnline  StationStatus = "online"
	StationOffline StationStatus = "offline"
)

// NewStation creates a new online station.
func NewStation(name, kinds string) (*Station, error) {
	if name == "" {
		return nil, errors.New("station name is required")
	}

	return &Station{
		Name:      name,
		Kinds:     kinds,
		Status:    StationOnline,
		LastSeen:  time.Now(),
		CreatedAt: time.Now(),
	}, nil
}

// UpdateHeartbeat refreshes the station's last seen timestamp.
func (s *Station) UpdateHeartbeat() {
	s.LastSeen = time.Now()
	s.Status = StationOnline
}

// SetOffline marks the station as offline.
func (s *Station) SetOffline() {
	s.Status = StationOffline
}

// IsOnline checks the station against a heartbeat timeout.
func (s *Station) IsOnline(heartbeatTimeout time.Duration) bool {
	if s.Status == StationOffline {
		return false
	}
	return time.Since(s.LastSeen) <= heartbeatTimeout
}
