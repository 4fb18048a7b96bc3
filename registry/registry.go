package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/luca-patrignani/docledger/chain"
)

const (
	statusPrefix  = "status_"
	pendingPrefix = "pending_"
	pendingValue  = "pending"
)

var ErrInvalidPayload = errors.New("registry: payload is not a JSON value")

// IDSource hands out candidate document ids. Ids must be 64 lowercase hex characters.
type IDSource interface {
	NewID() string
}

// Status is the lifecycle state of a document id.
type Status struct {
	Pending bool
	Block   uint64
}

func (s Status) String() string {
	if s.Pending {
		return pendingValue
	}
	return strconv.FormatUint(s.Block, 10)
}

// Registry owns document statuses and the pending pool. Reads are safe for
// concurrent use; writers are expected to be serialized by the owning ledger.
type Registry struct {
	db  *leveldb.DB
	ids IDSource
	now func() time.Time
}

// New opens an empty registry drawing ids from ids.
func New(ids IDSource) (*Registry, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("registry: open index: %w", err)
	}
	return &Registry{db: db, ids: ids, now: time.Now}, nil
}

// Close releases the index. Every later call fails.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Validate reports whether doc may enter the pending pool.
func (r *Registry) Validate(doc chain.Document) bool {
	return chain.ValidDocument(doc)
}

// Create stores a new pending document with a fresh id and the current time.
// Ids already known to the registry are drawn again. An empty payload is stored
// as an absent (nil) payload.
func (r *Registry) Create(payload json.RawMessage) (chain.Document, error) {
	if len(payload) == 0 {
		payload = nil
	}
	if payload != nil && !json.Valid(payload) {
		return chain.Document{}, ErrInvalidPayload
	}
	id := r.ids.NewID()
	for {
		known, err := r.Known(id)
		if err != nil {
			return chain.Document{}, err
		}
		if !known {
			break
		}
		id = r.ids.NewID()
	}
	doc := chain.Document{
		ID:        id,
		CreatedAt: r.now().UTC(),
		Payload:   slices.Clone(payload),
	}
	if err := r.putPending(&leveldb.Batch{}, doc); err != nil {
		return chain.Document{}, err
	}
	return doc, nil
}

// Add inserts a valid document into the pending pool, overwriting a pending entry
// with the same id. Invalid documents and ids already committed to a block are
// refused without mutation.
func (r *Registry) Add(doc chain.Document) (bool, error) {
	ok, err := r.admissible(doc)
	if err != nil || !ok {
		return false, err
	}
	if err := r.putPending(&leveldb.Batch{}, doc); err != nil {
		return false, err
	}
	return true, nil
}

// Import adds every admissible document of docs in one batch and returns how many
// were taken. Invalid documents and documents that cannot be encoded are skipped.
func (r *Registry) Import(docs map[string]chain.Document) (int, error) {
	batch := &leveldb.Batch{}
	n := 0
	for _, doc := range docs {
		ok, err := r.admissible(doc)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		if err := stagePending(batch, doc); err != nil {
			continue
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := r.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("registry: import: %w", err)
	}
	return n, nil
}

// Known reports whether id has a status.
func (r *Registry) Known(id string) (bool, error) {
	ok, err := r.db.Has(statusKey(id), nil)
	if err != nil {
		return false, fmt.Errorf("registry: lookup %s: %w", id, err)
	}
	return ok, nil
}

// Status returns the status of id. The boolean is false for unknown ids.
func (r *Registry) Status(id string) (Status, bool, error) {
	v, err := r.db.Get(statusKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Status{}, false, nil
	}
	if err != nil {
		return Status{}, false, fmt.Errorf("registry: lookup %s: %w", id, err)
	}
	s, err := parseStatus(v)
	if err != nil {
		return Status{}, false, err
	}
	return s, true, nil
}

// Pending returns a snapshot of the pending pool.
func (r *Registry) Pending() (map[string]chain.Document, error) {
	out := map[string]chain.Document{}
	iter := r.db.NewIterator(util.BytesPrefix([]byte(pendingPrefix)), nil)
	for iter.Next() {
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			iter.Release()
			return nil, fmt.Errorf("registry: decode %s: %w", iter.Key(), err)
		}
		out[rec.ID] = rec.document()
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("registry: scan pending: %w", err)
	}
	return out, nil
}

// PendingCount returns the size of the pending pool.
func (r *Registry) PendingCount() (int, error) {
	n := 0
	iter := r.db.NewIterator(util.BytesPrefix([]byte(pendingPrefix)), nil)
	for iter.Next() {
		n++
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("registry: scan pending: %w", err)
	}
	return n, nil
}

// Commit marks ids as committed by block number and drops them from the pending pool.
func (r *Registry) Commit(number uint64, ids []string) error {
	batch := &leveldb.Batch{}
	v := []byte(strconv.FormatUint(number, 10))
	for _, id := range ids {
		batch.Put(statusKey(id), v)
		batch.Delete(pendingKey(id))
	}
	if err := r.db.Write(batch, nil); err != nil {
		return fmt.Errorf("registry: commit block %d: %w", number, err)
	}
	return nil
}

// Reset forgets every status. The pending pool is left untouched; MarkPending
// restores the statuses of its members.
func (r *Registry) Reset() error {
	batch := &leveldb.Batch{}
	iter := r.db.NewIterator(util.BytesPrefix([]byte(statusPrefix)), nil)
	for iter.Next() {
		batch.Delete(slices.Clone(iter.Key()))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("registry: scan statuses: %w", err)
	}
	if err := r.db.Write(batch, nil); err != nil {
		return fmt.Errorf("registry: reset: %w", err)
	}
	return nil
}

// MarkPending gives every document of the pending pool the pending status.
func (r *Registry) MarkPending() error {
	batch := &leveldb.Batch{}
	iter := r.db.NewIterator(util.BytesPrefix([]byte(pendingPrefix)), nil)
	for iter.Next() {
		id := string(iter.Key()[len(pendingPrefix):])
		batch.Put(statusKey(id), []byte(pendingValue))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("registry: scan pending: %w", err)
	}
	if err := r.db.Write(batch, nil); err != nil {
		return fmt.Errorf("registry: mark pending: %w", err)
	}
	return nil
}

// admissible applies the document rule and keeps committed ids out of the pool.
func (r *Registry) admissible(doc chain.Document) (bool, error) {
	if !r.Validate(doc) {
		return false, nil
	}
	s, known, err := r.Status(doc.ID)
	if err != nil {
		return false, err
	}
	return !known || s.Pending, nil
}

func (r *Registry) putPending(batch *leveldb.Batch, doc chain.Document) error {
	if err := stagePending(batch, doc); err != nil {
		return err
	}
	if err := r.db.Write(batch, nil); err != nil {
		return fmt.Errorf("registry: store %s: %w", doc.ID, err)
	}
	return nil
}

// record is the stored form of a pending document. The payload is kept as opaque
// bytes so it comes back exactly as it was given, nil included.
type record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Payload   []byte    `json:"payload"`
}

func (rec record) document() chain.Document {
	doc := chain.Document{ID: rec.ID, CreatedAt: rec.CreatedAt}
	if rec.Payload != nil {
		doc.Payload = json.RawMessage(rec.Payload)
	}
	return doc
}

func stagePending(batch *leveldb.Batch, doc chain.Document) error {
	data, err := json.Marshal(record{ID: doc.ID, CreatedAt: doc.CreatedAt, Payload: doc.Payload})
	if err != nil {
		return fmt.Errorf("registry: encode %s: %w", doc.ID, err)
	}
	batch.Put(pendingKey(doc.ID), data)
	batch.Put(statusKey(doc.ID), []byte(pendingValue))
	return nil
}

func parseStatus(v []byte) (Status, error) {
	if string(v) == pendingValue {
		return Status{Pending: true}, nil
	}
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return Status{}, fmt.Errorf("registry: corrupt status %q: %w", v, err)
	}
	return Status{Block: n}, nil
}

func statusKey(id string) []byte  { return []byte(statusPrefix + id) }
func pendingKey(id string) []byte { return []byte(pendingPrefix + id) }
