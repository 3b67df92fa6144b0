package backend

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Broadcaster tells connected extensions to reload themselves
type Broadcaster interface {
	BroadcastReload(ctx context.Context) int
}

// UpdaterService exposes manual update and reload requests to the frontend
type UpdaterService struct {
	events Emitter
	hub    Broadcaster
}

func NewUpdaterService(events Emitter, hub Broadcaster) *UpdaterService {
	return &UpdaterService{events: events, hub: hub}
}

// TriggerManualUpdate asks the poller for an immediate check
func (s *UpdaterService) TriggerManualUpdate() {
	s.events.Emit(ManualUpdateEvent)
}

// TriggerManualReload makes connected extensions reload without checking
// for an update. It returns how many extensions were notified.
func (s *UpdaterService) TriggerManualReload(ctx context.Context) int {
	n := s.hub.BroadcastReload(ctx)
	log.Infof("manual reload sent to %d extension(s)", n)
	return n
}
