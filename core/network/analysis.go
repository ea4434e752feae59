package network

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"healthledger/core/asset"
	"healthledger/core/errs"
	"healthledger/core/ledger"
	"healthledger/core/notify"
	"healthledger/core/warning"
)

// Analysis is the outcome of evaluating a patient's latest reading.
type Analysis struct {
	PatientID string             `json:"patientId"`
	Reading   asset.Reading      `json:"reading"`
	Warnings  []warning.Warning  `json:"warnings"`
	Skipped   []*errs.ParseError `json:"skipped,omitempty"`
	// Unevaluated lists reading fields with no numeric parser, such as
	// EEG and ECG traces.
	Unevaluated []string `json:"unevaluated,omitempty"`
	// TxID is the EarlyWarning transaction, empty when nothing was
	// recorded.
	TxID string `json:"txId,omitempty"`
	// Duplicate is set when the same warnings were already recorded for
	// this reading.
	Duplicate bool `json:"duplicate,omitempty"`
}

// PerformPredictiveAnalysis runs the warning engine on the patient's most
// recent reading. When it yields warnings an EarlyWarning transaction is
// recorded once per (patient, warning set, reading time) and the patient
// and the entities caring for them are notified.
func (n *Network) PerformPredictiveAnalysis(ctx context.Context, actorID, patientID string) (Analysis, error) {
	defer n.locks.lock(patientID)()
	actor, err := n.pppsRequest(actorID, patientID, readAction)
	if err != nil {
		return Analysis{}, err
	}
	latest, err := n.store.Latest(patientID)
	if err != nil {
		return Analysis{}, err
	}
	res, err := n.warnings.Evaluate(ctx, latest.Fields())
	if err != nil {
		return Analysis{}, err
	}
	out := Analysis{PatientID: patientID, Reading: latest, Warnings: res.Warnings, Skipped: res.Skipped}
	for field, raw := range latest.Fields() {
		if raw != "" && !warning.Parseable(field) {
			out.Unevaluated = append(out.Unevaluated, field)
		}
	}
	sort.Strings(out.Unevaluated)
	if len(res.Warnings) == 0 {
		return out, nil
	}

	at := latest.CapturedAt.UTC().Format(time.RFC3339Nano)
	key := patientID + "|" + res.Key() + "|" + at
	n.mu.Lock()
	_, seen := n.warned[key]
	if !seen {
		n.warned[key] = struct{}{}
	}
	n.mu.Unlock()
	if seen {
		out.Duplicate = true
		return out, nil
	}

	parts := make([]string, len(res.Warnings))
	for i, w := range res.Warnings {
		parts[i] = w.String()
	}
	tx, err := n.record(ledger.KindEarlyWarning, actor.ID, asset.PPPsSeriesID(patientID), map[string]string{
		"warnings":    strings.Join(parts, ","),
		"count":       strconv.Itoa(len(parts)),
		"reading_id":  latest.ID(),
		"captured_at": at,
	})
	if err != nil {
		n.mu.Lock()
		delete(n.warned, key)
		n.mu.Unlock()
		return Analysis{}, err
	}
	out.TxID = tx.TxID

	reason := strings.Join(parts, ", ")
	recipients := []string{patientID}
	if phi := n.phiOf(patientID); phi != nil {
		for _, id := range phi.AuthorizedEntities() {
			if id != patientID {
				recipients = append(recipients, id)
			}
		}
	}
	for _, r := range recipients {
		n.notifier.Notify(notify.Notification{Type: notify.NotifyEarlyWarning, Recipient: r, PatientID: patientID, TxID: tx.TxID, Reason: reason})
	}
	n.log.Warn("early warning", zap.String("patient", patientID), zap.Strings("warnings", parts))
	return out, nil
}
