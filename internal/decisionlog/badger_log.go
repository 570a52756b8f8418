package decisionlog

import (
	"encoding/binary"
	"encoding/json"

	"solana-yield-bot-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

var (
	decisionPrefix = []byte("decision/")
	sequenceKey    = []byte("decision_seq")
)

// badgerLog is the BadgerDB implementation of the DecisionLog.
// Records are keyed by a monotonic sequence number so that key order
// equals append order and Recent can iterate in reverse.
type badgerLog struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewBadgerLog opens (or creates) the decision database at dbPath.
func NewBadgerLog(dbPath string) (DecisionLog, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is disabled to keep the app's logs clean.
	// Errors are still returned from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	seq, err := db.GetSequence(sequenceKey, 64)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &badgerLog{db: db, seq: seq}, nil
}

func decisionKey(seq uint64) []byte {
	key := make([]byte, len(decisionPrefix)+8)
	copy(key, decisionPrefix)
	binary.BigEndian.PutUint64(key[len(decisionPrefix):], seq)
	return key
}

// Append stores the decision under the next sequence number.
func (l *badgerLog) Append(decision *models.Decision) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return err
	}

	seq, err := l.seq.Next()
	if err != nil {
		return err
	}

	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(decisionKey(seq), data)
	})
}

// Recent iterates the key space in reverse, newest first.
func (l *badgerLog) Recent(n int) ([]models.Decision, error) {
	if n <= 0 {
		return nil, nil
	}

	out := make([]models.Decision, 0, n)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = decisionPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode iteration must start past the end of the prefix range.
		seekKey := append(append([]byte{}, decisionPrefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for it.Seek(seekKey); it.Valid() && len(out) < n; it.Next() {
			var decision models.Decision
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &decision)
			})
			if err != nil {
				return err
			}
			out = append(out, decision)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the unused part of the sequence band and closes the database.
func (l *badgerLog) Close() error {
	if err := l.seq.Release(); err != nil {
		l.db.Close()
		return err
	}
	return l.db.Close()
}
