package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"healthledger/core/errs"
	"healthledger/core/network"
	"healthledger/core/physio"
)

// RegisterMedicalRecordAPI mounts the PHI and PPPs routes on r.
func RegisterMedicalRecordAPI(r *mux.Router, s *Server) {
	r.HandleFunc("/phi", s.handleUploadPHI).Methods(http.MethodPost)
	r.HandleFunc("/phi/{assetID}", s.handleAccessPHI).Methods(http.MethodGet)
	r.HandleFunc("/phi/{assetID}", s.handleUpdatePHI).Methods(http.MethodPatch)
	r.HandleFunc("/phi/{assetID}", s.handleDeletePHI).Methods(http.MethodDelete)
	r.HandleFunc("/phi/{assetID}/transfer", s.handleTransferRights).Methods(http.MethodPost)
	r.HandleFunc("/phi/{assetID}/grants", s.handleGrantAccess).Methods(http.MethodPost)
	r.HandleFunc("/phi/{assetID}/grants/{entityID}", s.handleRevokeAccess).Methods(http.MethodDelete)

	r.HandleFunc("/patients/{patientID}/readings", s.handleUploadReading).Methods(http.MethodPost)
	r.HandleFunc("/patients/{patientID}/readings", s.handleReadReadings).Methods(http.MethodGet)
}

type uploadPHIRequest struct {
	network.PHIInput
	AuthorizingEntity string `json:"authorizing_entity"`
}

func (s *Server) handleUploadPHI(w http.ResponseWriter, r *http.Request) {
	var req uploadPHIRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.net.UploadPHI(actorFrom(r.Context()), req.PHIInput, req.AuthorizingEntity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleAccessPHI(w http.ResponseWriter, r *http.Request) {
	rec, err := s.net.AccessPHI(actorFrom(r.Context()), mux.Vars(r)["assetID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdatePHI(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := decode(r, &updates); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.net.UpdatePHI(actorFrom(r.Context()), mux.Vars(r)["assetID"], updates)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeletePHI(w http.ResponseWriter, r *http.Request) {
	if err := s.net.DeletePHI(actorFrom(r.Context()), mux.Vars(r)["assetID"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	To string `json:"to"`
}

func (s *Server) handleTransferRights(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.net.TransferRights(actorFrom(r.Context()), req.To, mux.Vars(r)["assetID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type grantRequest struct {
	Entity string `json:"entity"`
}

func (s *Server) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.net.GrantAccess(actorFrom(r.Context()), req.Entity, mux.Vars(r)["assetID"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.net.RevokeAccess(actorFrom(r.Context()), vars["entityID"], vars["assetID"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadReading(w http.ResponseWriter, r *http.Request) {
	var in network.ReadingInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	patientID := mux.Vars(r)["patientID"]
	if in.PatientID == "" {
		in.PatientID = patientID
	}
	if in.PatientID != patientID {
		s.writeError(w, &errs.ValidationError{Subject: "reading", Problems: []string{"patient_id does not match the request path"}})
		return
	}
	reading, err := s.net.UploadPPPs(actorFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reading)
}

// handleReadReadings accepts optional from and to query bounds in any
// format devices use for capture times.
func (s *Server) handleReadReadings(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	q := r.URL.Query()
	for _, b := range []struct {
		key string
		dst *time.Time
	}{{"from", &from}, {"to", &to}} {
		raw := q.Get(b.key)
		if raw == "" {
			continue
		}
		t, err := physio.ParseCaptureTime(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		*b.dst = t
	}
	readings, err := s.net.ReadPPPsWindow(actorFrom(r.Context()), mux.Vars(r)["patientID"], from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}
