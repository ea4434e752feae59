package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"healthledger/core/errs"
	"healthledger/core/ledger"
)

// RegisterTxInspectAPI mounts the transaction inspection endpoint.
func RegisterTxInspectAPI(r *mux.Router, s *Server) {
	r.HandleFunc("/ledger/tx/{txID}", s.handleInspectTx).Methods(http.MethodGet)
}

type txInspection struct {
	Transaction ledger.Transaction `json:"transaction"`
	BlockIndex  uint64             `json:"blockIndex"`
	Signed      bool               `json:"signed"`
	SignatureOK bool               `json:"signatureOk"`
	Reason      string             `json:"reason,omitempty"`
}

// handleInspectTx returns a committed transaction with its block and
// signature status. Participants may inspect their own transactions;
// administrators any.
func (s *Server) handleInspectTx(w http.ResponseWriter, r *http.Request) {
	txID := mux.Vars(r)["txID"]
	tx, block, err := s.net.Ledger().Find(txID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tx.Actor != actorFrom(r.Context()) {
		if _, err := s.requireAdmin(r, "READ transaction"); err != nil {
			s.writeError(w, err)
			return
		}
	}
	out := txInspection{Transaction: tx, BlockIndex: block, Signed: tx.Signature != ""}
	if out.Signed {
		err := s.net.VerifyTransaction(txID)
		var ise *errs.InvalidStateError
		switch {
		case err == nil:
			out.SignatureOK = true
		case errors.As(err, &ise):
			out.Reason = ise.Reason
		default:
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}
