package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"healthledger/core/errs"
	"healthledger/core/participant"
)

type registerRequest struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Role       participant.Role       `json:"role"`
	Attributes participant.Attributes `json:"attributes"`
}

func (s *Server) handleRegisterParticipant(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := participant.New(req.ID, req.Name, req.Role, req.Attributes)
	if err != nil {
		s.writeError(w, &errs.ValidationError{Subject: "participant", Problems: []string{err.Error()}})
		return
	}
	if err := s.net.RegisterParticipant(actorFrom(r.Context()), p); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleListParticipants is open to administrators only.
func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	actor, err := s.net.Participant(actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !actor.Role.IsAdmin() {
		s.writeError(w, &errs.PermissionError{Actor: actor.ID, Role: string(actor.Role), Action: "READ Participant", Reason: "listing requires an administrator"})
		return
	}
	writeJSON(w, http.StatusOK, s.net.Participants())
}

// handleGetParticipant returns a participant to itself or to an
// administrator.
func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor, err := s.net.Participant(actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if actor.ID != id && !actor.Role.IsAdmin() {
		s.writeError(w, &errs.PermissionError{Actor: actor.ID, Role: string(actor.Role), Action: "READ Participant", AssetID: id})
		return
	}
	p, err := s.net.Participant(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	var attrs participant.Attributes
	if err := decode(r, &attrs); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.net.UpdateParticipant(actorFrom(r.Context()), mux.Vars(r)["id"], attrs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
