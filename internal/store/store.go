package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"roster-cli/internal/model"
)

// Backend is the persistence collaborator for member collections.
//
// Every write that touches more than one member (SetRanks, CommitRanks, SetMeta,
// ReplaceMembers) is atomic: either all of it is visible afterwards or none of it is.
type Backend interface {
	// ListMembers returns all members of a collection in creation order.
	ListMembers(ctx context.Context, collection string) ([]model.Member, error)
	GetMember(ctx context.Context, collection, id string) (model.Member, error)
	// PutMember inserts or replaces a member.
	PutMember(ctx context.Context, m model.Member) error
	// DeleteMember removes a member and its meta. Remaining ranks are not compacted.
	DeleteMember(ctx context.Context, collection, id string) error

	// SetRanks rewrites the rank of every listed member. Unknown ids fail the whole batch.
	SetRanks(ctx context.Context, collection string, ranks map[string]int) error
	// CommitRanks is SetRanks plus a meta change in the same transaction.
	CommitRanks(ctx context.Context, collection string, ranks map[string]int, meta MetaChange) error

	// ReplaceMembers inserts members, first deleting the whole collection when
	// deleteExisting is set. It returns the number of deleted members.
	ReplaceMembers(ctx context.Context, collection string, deleteExisting bool, members []model.Member) (int, error)

	GetMeta(ctx context.Context, collection, id, key string) (string, bool, error)
	// SetMeta writes key for each member id in values.
	SetMeta(ctx context.Context, collection, key string, values map[string]string) error
	// ListMeta returns key for every member that has it.
	ListMeta(ctx context.Context, collection, key string) (map[string]string, error)
	// ClearMeta removes key from every member of the collection.
	ClearMeta(ctx context.Context, collection, key string) error

	Close() error
}

// MetaChange is a meta update committed together with a rank batch. Clear runs
// before Set, so both together replace Key wholesale.
type MetaChange struct {
	Key string
	// Clear removes Key from every member of the collection.
	Clear bool
	// Set writes Key for each member id. Unknown ids fail the whole commit.
	Set map[string]string
}

func (c MetaChange) empty() bool {
	return c.Key == "" || (!c.Clear && len(c.Set) == 0)
}

type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindPebble Kind = "pebble"
	KindMemory Kind = "memory"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindSQLite:
		return KindSQLite, nil
	case KindPebble:
		return KindPebble, nil
	case KindMemory:
		return KindMemory, nil
	default:
		return "", model.ValidationError{Field: "backend", Reason: "expected sqlite|pebble|memory"}
	}
}

type Options struct {
	Kind Kind
	// Path is the SQLite file or the Pebble directory. Empty selects DefaultPath.
	Path string
}

// Open opens the configured backend, creating parent directories as needed.
func Open(ctx context.Context, opts Options) (Backend, error) {
	if opts.Kind == "" {
		opts.Kind = KindSQLite
	}
	if opts.Kind == KindMemory {
		return NewMemory(), nil
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		p, err := DefaultPath(opts.Kind)
		if err != nil {
			return nil, err
		}
		path = p
	}
	switch opts.Kind {
	case KindSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, path)
	case KindPebble:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
		return OpenPebble(path)
	default:
		return nil, fmt.Errorf("unknown backend: %s", opts.Kind)
	}
}

// DataDir is where stores live unless a path is given.
func DataDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching the home directory).
	if v := strings.TrimSpace(os.Getenv("ROSTER_DATA_DIR")); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); v != "" {
		return filepath.Join(v, "roster"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "roster"), nil
}

func DefaultPath(kind Kind) (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	switch kind {
	case KindPebble:
		return filepath.Join(dir, "roster.pebble"), nil
	default:
		return filepath.Join(dir, "roster.sqlite"), nil
	}
}

var collectionNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// NormalizeCollection lowercases and validates a collection name.
// Names are used as key prefixes, so the alphabet is kept small.
func NormalizeCollection(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return model.DefaultCollection, nil
	}
	if !collectionNameRe.MatchString(name) {
		return "", model.ValidationError{Field: "collection", Reason: "use lowercase letters, digits, '-' or '_'"}
	}
	return name, nil
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var nf model.NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	var ve model.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	var pe model.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return model.PersistenceError{Op: op, Err: err}
}

func memberNotFound(id string) error {
	return model.NotFoundError{Kind: "member", ID: id}
}
