package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/mtorresweb/spotlight-server/internal/store"
)

// Key layout for an entity with prefix "post:":
//
//	post:{id}                                 JSON record
//	post:idx:{unique}:{value}                 -> id
//	post:idx:{ordered}:{group}:{sort}:{id}    -> id
//
// Unique indexes give O(1) point lookups; ordered indexes give O(k) scans of
// one group in sort order, in either direction.
const idxSegment = "idx:"

// Entity stores records of type T under a key prefix with secondary indexes.
// Every method takes the caller's transaction so several entities can be
// mutated atomically.
type Entity[T any] struct {
	prefix  string
	unique  []uniqueIndex[T]
	ordered []orderedIndex[T]
}

type uniqueIndex[T any] struct {
	name string
	key  func(*T) string // empty means not indexed
}

type orderedIndex[T any] struct {
	name string
	// entries returns (group, sort) pairs for the record.
	entries func(*T) [][2]string
}

// NewEntity creates an Entity for records stored under prefix.
func NewEntity[T any](prefix string) *Entity[T] {
	return &Entity[T]{prefix: prefix}
}

// WithUniqueIndex adds an index that maps one value to at most one record.
func (e *Entity[T]) WithUniqueIndex(name string, key func(*T) string) *Entity[T] {
	e.unique = append(e.unique, uniqueIndex[T]{name: name, key: key})
	return e
}

// WithOrderedIndex adds a non-unique index scanned by group in sort order.
func (e *Entity[T]) WithOrderedIndex(name string, entries func(*T) [][2]string) *Entity[T] {
	e.ordered = append(e.ordered, orderedIndex[T]{name: name, entries: entries})
	return e
}

func (e *Entity[T]) primaryKey(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) uniqueKey(name, value string) []byte {
	return []byte(e.prefix + idxSegment + name + ":" + value)
}

func (e *Entity[T]) groupPrefix(name, group string) []byte {
	return []byte(e.prefix + idxSegment + name + ":" + group + ":")
}

func (e *Entity[T]) orderedKey(name, group, sort, id string) []byte {
	return []byte(e.prefix + idxSegment + name + ":" + group + ":" + sort + ":" + id)
}

// indexKeys lists every index key the record occupies, unique keys first.
func (e *Entity[T]) indexKeys(id string, v *T) (unique [][]byte, ordered [][]byte) {
	for _, idx := range e.unique {
		if k := idx.key(v); k != "" {
			unique = append(unique, e.uniqueKey(idx.name, k))
		}
	}
	for _, idx := range e.ordered {
		for _, entry := range idx.entries(v) {
			ordered = append(ordered, e.orderedKey(idx.name, entry[0], entry[1], id))
		}
	}
	return unique, ordered
}

// Get loads the record with id. Returns store.ErrNotFound if absent.
func (e *Entity[T]) Get(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(e.primaryKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s%s: %w", e.prefix, id, err)
	}

	var v T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return nil, fmt.Errorf("decode %s%s: %w", e.prefix, id, err)
	}
	return &v, nil
}

// Exists reports whether a record with id is present.
func (e *Entity[T]) Exists(txn *badger.Txn, id string) (bool, error) {
	_, err := txn.Get(e.primaryKey(id))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("get %s%s: %w", e.prefix, id, err)
	}
}

// LookupUnique resolves a unique index value to a record id.
func (e *Entity[T]) LookupUnique(txn *badger.Txn, name, value string) (string, error) {
	item, err := txn.Get(e.uniqueKey(name, value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s index %s: %w", e.prefix, name, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// GetByUnique loads the record a unique index value points to.
func (e *Entity[T]) GetByUnique(txn *badger.Txn, name, value string) (*T, error) {
	id, err := e.LookupUnique(txn, name, value)
	if err != nil {
		return nil, err
	}
	return e.Get(txn, id)
}

// Create inserts a record. Fails with store.ErrAlreadyExists when the id or
// any unique index value is taken.
func (e *Entity[T]) Create(txn *badger.Txn, id string, v *T) error {
	exists, err := e.Exists(txn, id)
	if err != nil {
		return err
	}
	if exists {
		return store.ErrAlreadyExists.WithMessagef("%s%s already exists", e.prefix, id)
	}

	unique, ordered := e.indexKeys(id, v)
	for _, k := range unique {
		if err := e.claim(txn, k); err != nil {
			return err
		}
	}

	return e.write(txn, id, v, unique, ordered)
}

// Put replaces an existing record, moving its index entries.
func (e *Entity[T]) Put(txn *badger.Txn, id string, v *T) error {
	old, err := e.Get(txn, id)
	if err != nil {
		return err
	}

	oldUnique, oldOrdered := e.indexKeys(id, old)
	newUnique, newOrdered := e.indexKeys(id, v)

	keep := make(map[string]bool, len(oldUnique))
	for _, k := range oldUnique {
		keep[string(k)] = true
	}
	for _, k := range newUnique {
		if keep[string(k)] {
			continue
		}
		if err := e.claim(txn, k); err != nil {
			return err
		}
	}

	if err := deleteKeys(txn, oldUnique, oldOrdered); err != nil {
		return err
	}
	return e.write(txn, id, v, newUnique, newOrdered)
}

// Delete removes a record and its index entries. Returns store.ErrNotFound if absent.
func (e *Entity[T]) Delete(txn *badger.Txn, id string) error {
	old, err := e.Get(txn, id)
	if err != nil {
		return err
	}
	unique, ordered := e.indexKeys(id, old)
	if err := deleteKeys(txn, unique, ordered); err != nil {
		return err
	}
	return txn.Delete(e.primaryKey(id))
}

// GroupIDs returns the ids in one ordered index group, in sort order.
func (e *Entity[T]) GroupIDs(txn *badger.Txn, name, group string) ([]string, error) {
	var ids []string
	for id, err := range e.scanGroup(txn, name, group, false) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CountGroup counts the entries of one ordered index group without reading values.
func (e *Entity[T]) CountGroup(txn *badger.Txn, name, group string) int64 {
	prefix := e.groupPrefix(name, group)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var n int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}

// scanGroup yields the record ids of an ordered index group. The id is read
// from the index value since composite ids may contain the key separator.
func (e *Entity[T]) scanGroup(txn *badger.Txn, name, group string, reverse bool) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		prefix := e.groupPrefix(name, group)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = reverse

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if reverse {
			// Seek past every key in the group.
			seek = append(append([]byte{}, prefix...), 0xFF)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				yield("", fmt.Errorf("read index %s: %w", it.Item().Key(), err))
				return
			}
			if !yield(string(val), nil) {
				return
			}
		}
	}
}

// ListGroup lazily yields records of an ordered index group. Each range opens
// its own read transaction.
func (e *Entity[T]) ListGroup(ctx context.Context, db *badger.DB, name, group string, reverse bool) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = db.View(func(txn *badger.Txn) error {
			for id, err := range e.scanGroup(txn, name, group, reverse) {
				if err == nil {
					err = ctx.Err()
				}
				if err != nil {
					yield(nil, err)
					return nil
				}
				v, err := e.Get(txn, id)
				if errors.Is(err, store.ErrNotFound) {
					// Index entry without a record; skip rather than fail the scan.
					continue
				}
				if !yield(v, err) || err != nil {
					return nil
				}
			}
			return nil
		})
	}
}

// List lazily yields every record in key order.
func (e *Entity[T]) List(ctx context.Context, db *badger.DB) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = db.View(func(txn *badger.Txn) error {
			prefix := []byte(e.prefix)
			idxPrefix := e.prefix + idxSegment

			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return nil
				}
				if strings.HasPrefix(string(it.Item().Key()), idxPrefix) {
					continue
				}

				var v T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &v)
				})
				if err != nil {
					yield(nil, fmt.Errorf("decode %s: %w", it.Item().Key(), err))
					return nil
				}
				if !yield(&v, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

func (e *Entity[T]) claim(txn *badger.Txn, key []byte) error {
	_, err := txn.Get(key)
	if err == nil {
		return store.ErrAlreadyExists.WithMessagef("index entry %s is taken", key)
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("check index %s: %w", key, err)
	}
	return nil
}

func (e *Entity[T]) write(txn *badger.Txn, id string, v *T, unique, ordered [][]byte) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s%s: %w", e.prefix, id, err)
	}
	if err := txn.Set(e.primaryKey(id), data); err != nil {
		return fmt.Errorf("set %s%s: %w", e.prefix, id, err)
	}
	for _, k := range append(unique, ordered...) {
		if err := txn.Set(k, []byte(id)); err != nil {
			return fmt.Errorf("set index %s: %w", k, err)
		}
	}
	return nil
}

func deleteKeys(txn *badger.Txn, groups ...[][]byte) error {
	for _, keys := range groups {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete index %s: %w", k, err)
			}
		}
	}
	return nil
}
