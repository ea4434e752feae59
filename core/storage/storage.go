// Package storage archives mined blocks to LevelDB. The in-memory ledger
// stays authoritative; the archive is an export that can be verified
// offline.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"healthledger/core/crypto"
	"healthledger/core/errs"
	"healthledger/core/ledger"
)

const blockPrefix = "block:"

var heightKey = []byte("meta:height")

// Archive stores blocks under "block:<zero padded index>" so that
// iteration order is chain order. Values are sealed when a cipher is set.
type Archive struct {
	db     *leveldb.DB
	cipher *crypto.FieldCipher
	log    *zap.Logger
}

// Open opens or creates the archive at path. A nil cipher stores blocks
// as plain JSON.
func Open(path string, cipher *crypto.FieldCipher, log *zap.Logger) (*Archive, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open block archive %s: %w", path, err)
	}
	return &Archive{db: db, cipher: cipher, log: log}, nil
}

func blockKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", blockPrefix, index))
}

// SaveBlock writes b and advances the stored height.
func (a *Archive) SaveBlock(b ledger.Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if a.cipher != nil {
		if data, err = a.cipher.EncryptField(data); err != nil {
			return fmt.Errorf("seal block %d: %w", b.Index, err)
		}
	}
	h := make([]byte, 8)
	binary.BigEndian.PutUint64(h, b.Index)

	batch := new(leveldb.Batch)
	batch.Put(blockKey(b.Index), data)
	batch.Put(heightKey, h)
	if err := a.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write block %d: %w", b.Index, err)
	}
	a.log.Debug("block archived", zap.Uint64("index", b.Index), zap.String("hash", b.Hash))
	return nil
}

// Block loads the block at index.
func (a *Archive) Block(index uint64) (ledger.Block, error) {
	data, err := a.db.Get(blockKey(index), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ledger.Block{}, errs.NotFound("archived block", fmt.Sprint(index))
	}
	if err != nil {
		return ledger.Block{}, err
	}
	return a.decode(data)
}

// Blocks loads the whole archive in chain order.
func (a *Archive) Blocks() ([]ledger.Block, error) {
	iter := a.db.NewIterator(util.BytesPrefix([]byte(blockPrefix)), nil)
	defer iter.Release()

	var out []ledger.Block
	for iter.Next() {
		b, err := a.decode(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("archived key %s: %w", iter.Key(), err)
		}
		out = append(out, b)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// BlockSummary is a short description of an archived block.
type BlockSummary struct {
	Index        uint64    `json:"index"`
	Hash         string    `json:"hash"`
	PreviousHash string    `json:"previousHash"`
	Timestamp    time.Time `json:"timestamp"`
	Transactions int       `json:"transactions"`
}

// Recent summarizes up to max blocks, newest first. Blocks that fail to
// decode are skipped.
func (a *Archive) Recent(max int) ([]BlockSummary, error) {
	iter := a.db.NewIterator(util.BytesPrefix([]byte(blockPrefix)), nil)
	defer iter.Release()

	var out []BlockSummary
	for ok := iter.Last(); ok && len(out) < max; ok = iter.Prev() {
		b, err := a.decode(iter.Value())
		if err != nil {
			a.log.Warn("skipping unreadable archived block", zap.ByteString("key", iter.Key()), zap.Error(err))
			continue
		}
		out = append(out, BlockSummary{
			Index:        b.Index,
			Hash:         b.Hash,
			PreviousHash: b.PreviousHash,
			Timestamp:    b.Timestamp,
			Transactions: len(b.Transactions),
		})
	}
	return out, iter.Error()
}

// Height returns the highest archived index. ok is false for an empty
// archive.
func (a *Archive) Height() (height uint64, ok bool, err error) {
	h, err := a.db.Get(heightKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(h) != 8 {
		return 0, false, fmt.Errorf("corrupt height record")
	}
	return binary.BigEndian.Uint64(h), true, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) decode(data []byte) (ledger.Block, error) {
	var err error
	if a.cipher != nil {
		if data, err = a.cipher.DecryptField(data); err != nil {
			return ledger.Block{}, fmt.Errorf("open sealed block: %w", err)
		}
	}
	var b ledger.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return ledger.Block{}, err
	}
	return b, nil
}
