package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"healthledger/core/errs"
)

type respondersRequest struct {
	Responders []string `json:"responders"`
}

func (s *Server) handleTriggerEmergency(w http.ResponseWriter, r *http.Request) {
	var req respondersRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	grants, err := s.net.TriggerEmergency(actorFrom(r.Context()), mux.Vars(r)["patientID"], req.Responders)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grants)
}

func (s *Server) handleResolveEmergency(w http.ResponseWriter, r *http.Request) {
	var req respondersRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	grants, err := s.net.ResolveEmergency(actorFrom(r.Context()), mux.Vars(r)["patientID"], req.Responders)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

// handleListEmergencies shows active grants to the patient and to
// administrators.
func (s *Server) handleListEmergencies(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patientID"]
	actor, err := s.net.Participant(actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if actor.ID != patientID && !actor.Role.IsAdmin() {
		s.writeError(w, &errs.PermissionError{Actor: actor.ID, Role: string(actor.Role), Action: "READ emergency grants", AssetID: patientID})
		return
	}
	writeJSON(w, http.StatusOK, s.net.ActiveEmergencies(patientID))
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	res, err := s.net.PerformPredictiveAnalysis(r.Context(), actorFrom(r.Context()), mux.Vars(r)["patientID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
