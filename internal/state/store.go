// Package state holds the in-memory key/value state shared by the token, the
// staking pool and the deposit ledger. Writes are journaled so that an
// operation can be reverted to a checkpoint as if it never ran.
package state

import (
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type entry struct {
	key     string
	prev    any
	existed bool
}

// Store is not safe for concurrent use; the engine serializes access.
type Store struct {
	kvs     map[string]any
	journal []entry
}

func New() *Store {
	return &Store{kvs: make(map[string]any)}
}

// Get returns the value for key. Values must be treated as immutable.
func (s *Store) Get(key string) (any, bool) {
	v, ok := s.kvs[key]
	return v, ok
}

func (s *Store) Set(key string, value any) {
	prev, existed := s.kvs[key]
	s.journal = append(s.journal, entry{key: key, prev: prev, existed: existed})
	s.kvs[key] = value
}

func (s *Store) Delete(key string) {
	prev, existed := s.kvs[key]
	if !existed {
		return
	}
	s.journal = append(s.journal, entry{key: key, prev: prev, existed: true})
	delete(s.kvs, key)
}

// Checkpoint returns a revision that RevertTo can roll back to.
func (s *Store) Checkpoint() int {
	return len(s.journal)
}

// RevertTo undoes every write made after checkpoint cp.
func (s *Store) RevertTo(cp int) {
	if cp < 0 {
		cp = 0
	}
	for i := len(s.journal) - 1; i >= cp; i-- {
		e := s.journal[i]
		if e.existed {
			s.kvs[e.key] = e.prev
		} else {
			delete(s.kvs, e.key)
		}
	}
	if cp < len(s.journal) {
		s.journal = s.journal[:cp]
	}
}

// Commit discards the undo journal. Outstanding checkpoints become invalid.
func (s *Store) Commit() {
	s.journal = s.journal[:0]
}

// Keys returns the keys with the given prefix in sorted order.
func (s *Store) Keys(prefix string) []string {
	var keys []string
	for k := range s.kvs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of live keys.
func (s *Store) Len() int {
	return len(s.kvs)
}

// Key joins a namespace and its parts into a store key.
func Key(ns string, parts ...string) string {
	return ns + "/" + strings.Join(parts, "/")
}

// AddrKey builds a key for an address-indexed entry of a namespace.
func AddrKey(ns, field string, addr common.Address) string {
	return Key(ns, field, AddrPart(addr))
}

// AddrPart renders an address as a lowercase key part so that keys sort in
// address order.
func AddrPart(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// Big returns a copy of the integer stored at key, or zero.
func (s *Store) Big(key string) *big.Int {
	if v, ok := s.kvs[key].(*big.Int); ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// SetBig stores a copy of v; zero values delete the key.
func (s *Store) SetBig(key string, v *big.Int) {
	if v == nil || v.Sign() == 0 {
		s.Delete(key)
		return
	}
	s.Set(key, new(big.Int).Set(v))
}

func (s *Store) Flag(key string) bool {
	v, _ := s.kvs[key].(bool)
	return v
}

func (s *Store) SetFlag(key string, on bool) {
	if !on {
		s.Delete(key)
		return
	}
	s.Set(key, true)
}
