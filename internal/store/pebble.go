package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"roster-cli/internal/model"

	"github.com/cockroachdb/pebble"
)

// Pebble stores members in a Pebble key-value directory.
//
// Key layout:
//
//	m/<collection>/<memberID>        -> member JSON (rank included)
//	x/<collection>/<memberID>/<key>  -> meta value
//
// Collection names and member ids never contain '/', so prefixes are unambiguous.
type Pebble struct {
	// Guards read-modify-write sequences (existence checks before batches).
	mu sync.Mutex
	db *pebble.DB
}

func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, persistErr("open", err)
	}
	return &Pebble{db: db}, nil
}

func memberKey(collection, id string) []byte {
	return []byte("m/" + collection + "/" + id)
}

func memberPrefix(collection string) []byte {
	return []byte("m/" + collection + "/")
}

func metaKey(collection, id, key string) []byte {
	return []byte("x/" + collection + "/" + id + "/" + key)
}

func metaPrefix(collection string) []byte {
	return []byte("x/" + collection + "/")
}

func metaMemberPrefix(collection, id string) []byte {
	return []byte("x/" + collection + "/" + id + "/")
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *Pebble) scan(prefix []byte, fn func(k, v []byte) error) error {
	it := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	for it.First(); it.Valid(); it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			_ = it.Close()
			return err
		}
	}
	return it.Close()
}

func (s *Pebble) ListMembers(_ context.Context, collection string) ([]model.Member, error) {
	out := []model.Member{}
	err := s.scan(memberPrefix(collection), func(_, v []byte) error {
		var m model.Member
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, persistErr("list members", err)
	}
	sortCreated(out)
	return out, nil
}

func (s *Pebble) GetMember(_ context.Context, collection, id string) (model.Member, error) {
	m, err := s.getMember(collection, id)
	if err != nil {
		return model.Member{}, persistErr("get member", err)
	}
	return m, nil
}

func (s *Pebble) getMember(collection, id string) (model.Member, error) {
	v, closer, err := s.db.Get(memberKey(collection, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return model.Member{}, memberNotFound(id)
	}
	if err != nil {
		return model.Member{}, err
	}
	defer closer.Close()
	var m model.Member
	if err := json.Unmarshal(v, &m); err != nil {
		return model.Member{}, err
	}
	return m, nil
}

func (s *Pebble) PutMember(_ context.Context, m model.Member) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return persistErr("put member", err)
	}
	return persistErr("put member", s.db.Set(memberKey(m.Collection, m.ID), raw, pebble.Sync))
}

func (s *Pebble) DeleteMember(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getMember(collection, id); err != nil {
		return persistErr("delete member", err)
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(memberKey(collection, id), nil); err != nil {
		return persistErr("delete member", err)
	}
	prefix := metaMemberPrefix(collection, id)
	if err := b.DeleteRange(prefix, prefixUpperBound(prefix), nil); err != nil {
		return persistErr("delete member", err)
	}
	return persistErr("delete member", b.Commit(pebble.Sync))
}

func (s *Pebble) SetRanks(ctx context.Context, collection string, ranks map[string]int) error {
	if len(ranks) == 0 {
		return nil
	}
	return s.CommitRanks(ctx, collection, ranks, MetaChange{})
}

func (s *Pebble) CommitRanks(_ context.Context, collection string, ranks map[string]int, meta MetaChange) error {
	if len(ranks) == 0 && meta.empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.db.NewBatch()
	defer b.Close()
	if err := s.batchRanks(b, collection, ranks); err != nil {
		return persistErr("commit ranks", err)
	}
	if !meta.empty() {
		if meta.Clear {
			if err := s.batchClearMeta(b, collection, meta.Key); err != nil {
				return persistErr("commit ranks", err)
			}
		}
		if err := s.batchSetMeta(b, collection, meta.Key, meta.Set); err != nil {
			return persistErr("commit ranks", err)
		}
	}
	return persistErr("commit ranks", b.Commit(pebble.Sync))
}

func (s *Pebble) batchRanks(b *pebble.Batch, collection string, ranks map[string]int) error {
	for id, r := range ranks {
		m, err := s.getMember(collection, id)
		if err != nil {
			return err
		}
		m.Rank = r
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := b.Set(memberKey(collection, id), raw, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Pebble) ReplaceMembers(ctx context.Context, collection string, deleteExisting bool, members []model.Member) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.db.NewBatch()
	defer b.Close()
	deleted := 0
	if deleteExisting {
		existing, err := s.ListMembers(ctx, collection)
		if err != nil {
			return 0, err
		}
		deleted = len(existing)
		for _, prefix := range [][]byte{memberPrefix(collection), metaPrefix(collection)} {
			if err := b.DeleteRange(prefix, prefixUpperBound(prefix), nil); err != nil {
				return 0, persistErr("replace members", err)
			}
		}
	}
	for _, m := range members {
		m.Collection = collection
		raw, err := json.Marshal(m)
		if err != nil {
			return 0, persistErr("replace members", err)
		}
		if err := b.Set(memberKey(collection, m.ID), raw, nil); err != nil {
			return 0, persistErr("replace members", err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, persistErr("replace members", err)
	}
	return deleted, nil
}

func (s *Pebble) GetMeta(_ context.Context, collection, id, key string) (string, bool, error) {
	v, closer, err := s.db.Get(metaKey(collection, id, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, persistErr("get meta", err)
	}
	defer closer.Close()
	return string(v), true, nil
}

func (s *Pebble) SetMeta(_ context.Context, collection, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.db.NewBatch()
	defer b.Close()
	if err := s.batchSetMeta(b, collection, key, values); err != nil {
		return persistErr("set meta", err)
	}
	return persistErr("set meta", b.Commit(pebble.Sync))
}

func (s *Pebble) batchSetMeta(b *pebble.Batch, collection, key string, values map[string]string) error {
	for id, v := range values {
		if _, err := s.getMember(collection, id); err != nil {
			return err
		}
		if err := b.Set(metaKey(collection, id, key), []byte(v), nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Pebble) ListMeta(_ context.Context, collection, key string) (map[string]string, error) {
	out := map[string]string{}
	prefix := metaPrefix(collection)
	err := s.scan(prefix, func(k, v []byte) error {
		rest := strings.TrimPrefix(string(k), string(prefix))
		id, metaName, ok := strings.Cut(rest, "/")
		if ok && metaName == key {
			out[id] = string(v)
		}
		return nil
	})
	if err != nil {
		return nil, persistErr("list meta", err)
	}
	return out, nil
}

func (s *Pebble) ClearMeta(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.db.NewBatch()
	defer b.Close()
	if err := s.batchClearMeta(b, collection, key); err != nil {
		return persistErr("clear meta", err)
	}
	if b.Empty() {
		return nil
	}
	return persistErr("clear meta", b.Commit(pebble.Sync))
}

func (s *Pebble) batchClearMeta(b *pebble.Batch, collection, key string) error {
	prefix := metaPrefix(collection)
	return s.scan(prefix, func(k, _ []byte) error {
		rest := strings.TrimPrefix(string(k), string(prefix))
		if _, metaName, ok := strings.Cut(rest, "/"); ok && metaName == key {
			return b.Delete(append([]byte(nil), k...), nil)
		}
		return nil
	})
}

func (s *Pebble) Close() error {
	return s.db.Close()
}
