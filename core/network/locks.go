package network

import (
	"hash/fnv"
	"strings"
	"sync"

	"healthledger/core/asset"
)

const lockStripes = 64

// patientLocks serializes the operations on one patient's assets, from the
// access decision through the submitted transaction. Patients share a
// stripe when their IDs hash together; an operation holds one stripe at a
// time.
type patientLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *patientLocks) lock(patientID string) func() {
	h := fnv.New32a()
	h.Write([]byte(patientID))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

// ownerOf maps an asset ID back to its patient. Unknown shapes map to
// themselves.
func ownerOf(assetID string) string {
	for _, suffix := range []string{asset.PHIAssetID(""), asset.PPPsSeriesID("")} {
		if p, ok := strings.CutSuffix(assetID, suffix); ok && p != "" {
			return p
		}
	}
	return assetID
}
