package trigger

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"leclasseur/backend"
)

// Path is the endpoint the web app calls to request an update
const Path = "/trigger-update"

type response struct {
	Status string `json:"status"`
}

// Server turns HTTP requests from the web app into manual update triggers
type Server struct {
	events backend.Emitter
	hub    backend.Broadcaster
}

func NewServer(events backend.Emitter, hub backend.Broadcaster) *Server {
	return &Server{events: events, hub: hub}
}

// Handler returns the router, open to any origin
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(Path, s.handleTrigger).Methods(http.MethodGet, http.MethodPost)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(router)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	log.Infof("update triggered by %s", r.RemoteAddr)

	s.events.Emit(backend.ManualUpdateEvent)
	if s.hub != nil {
		s.hub.BroadcastReload(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response{Status: "update_triggered"}); err != nil {
		log.Debugf("failed to write trigger response: %v", err)
	}
}
