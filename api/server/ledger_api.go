package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"healthledger/core/errs"
	"healthledger/core/ledger"
	"healthledger/core/participant"
	"healthledger/core/storage"
)

// requireAdmin resolves the caller and denies non-administrators.
func (s *Server) requireAdmin(r *http.Request, action string) (participant.Participant, error) {
	actor, err := s.net.Participant(actorFrom(r.Context()))
	if err != nil {
		return actor, err
	}
	if !actor.Role.IsAdmin() {
		return actor, &errs.PermissionError{Actor: actor.ID, Role: string(actor.Role), Action: action, Reason: "administrators only"}
	}
	return actor, nil
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r, "MINE ledger"); err != nil {
		s.writeError(w, err)
		return
	}
	b, err := s.net.MineBlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summarize(b))
}

type verifyResponse struct {
	Valid  bool   `json:"valid"`
	Height uint64 `json:"height"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := s.net.VerifyIntegrity(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, Height: s.net.Ledger().Height()})
}

// handleHistory returns the caller's own transactions. Administrators may
// ask for any participant, or for everything by omitting the parameter.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	caller := actorFrom(r.Context())
	target, given := r.URL.Query()["participant"]
	id := caller
	if given {
		id = target[0]
	}
	if id != caller {
		if _, err := s.requireAdmin(r, "READ history"); err != nil {
			s.writeError(w, err)
			return
		}
	}
	txs, err := s.net.GetTransactionHistory(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func summarize(b ledger.Block) storage.BlockSummary {
	return storage.BlockSummary{
		Index:        b.Index,
		Hash:         b.Hash,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Transactions: len(b.Transactions),
	}
}

// handleBlocks lists recent blocks, newest first. It reads the archive
// when one is configured and the in-memory chain otherwise.
func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, &errs.ParseError{Field: "limit", Raw: raw, Err: err})
			return
		}
		limit = n
	}
	if s.archive != nil {
		out, err := s.archive.Recent(limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	blocks := s.net.Ledger().Blocks()
	out := make([]storage.BlockSummary, 0, limit)
	for i := len(blocks) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, summarize(blocks[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r, "READ block"); err != nil {
		s.writeError(w, err)
		return
	}
	raw := mux.Vars(r)["index"]
	idx, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		s.writeError(w, &errs.ParseError{Field: "index", Raw: raw, Err: err})
		return
	}
	b, err := s.net.Ledger().Block(idx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r, "READ pending"); err != nil {
		s.writeError(w, err)
		return
	}
	txs := s.net.Ledger().Pending()
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}
