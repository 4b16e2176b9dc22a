package keystore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veilmesh/veilmesh/pkg/address"
	"github.com/veilmesh/veilmesh/pkg/identity"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store persists local identities and known remote peers in SQLite. The
// transport core itself keeps no durable state; attaching a store is the
// consumer's choice.
type Store struct {
	db *sql.DB
}

// Peer is a remote identity learned from a validated announce
type Peer struct {
	Hash      address.Hash
	PublicKey []byte
	FirstSeen int64
	LastSeen  int64
}

// Open opens (or creates) a keystore database at the given path
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	-- Local identities, keyed by the name they were saved under
	CREATE TABLE IF NOT EXISTS identities (
		name TEXT PRIMARY KEY,
		public_key BLOB NOT NULL,
		private_key BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	-- Remote peers learned from validated announces
	CREATE TABLE IF NOT EXISTS peers (
		hash TEXT PRIMARY KEY,
		public_key BLOB NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_peers_last_seen ON peers(last_seen DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveIdentity stores a full identity under a name, replacing any previous
// identity saved under it
func (s *Store) SaveIdentity(name string, id *identity.Identity) error {
	priv, err := id.PrivateBytes()
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO identities (name, public_key, private_key, created_at)
		 VALUES (?, ?, ?, ?)`,
		name, id.PublicBytes(), priv, time.Now().Unix(),
	)
	return err
}

// LoadIdentity restores a named identity
func (s *Store) LoadIdentity(name string) (*identity.Identity, error) {
	var priv []byte
	err := s.db.QueryRow(
		`SELECT private_key FROM identities WHERE name = ?`, name,
	).Scan(&priv)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return identity.FromPrivateBytes(priv)
}

// RememberPeer records (or refreshes) a remote peer. Satisfies the
// transport's PeerStore.
func (s *Store) RememberPeer(hash address.Hash, publicKey []byte) error {
	now := time.Now().Unix()

	_, err := s.db.Exec(
		`INSERT INTO peers (hash, public_key, first_seen, last_seen)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET public_key = excluded.public_key, last_seen = excluded.last_seen`,
		hash.String(), publicKey, now, now,
	)
	return err
}

// LookupPeer returns a known peer by address hash
func (s *Store) LookupPeer(hash address.Hash) (*Peer, error) {
	p := &Peer{Hash: hash}

	err := s.db.QueryRow(
		`SELECT public_key, first_seen, last_seen FROM peers WHERE hash = ?`,
		hash.String(),
	).Scan(&p.PublicKey, &p.FirstSeen, &p.LastSeen)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}

// PeerIdentity returns a known peer's public-only identity
func (s *Store) PeerIdentity(hash address.Hash) (*identity.Identity, error) {
	p, err := s.LookupPeer(hash)
	if err != nil {
		return nil, err
	}
	return identity.FromPublicBytes(p.PublicKey)
}

// ForgetPeersBefore deletes peers not seen since the cutoff and returns the
// number removed
func (s *Store) ForgetPeersBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM peers WHERE last_seen < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
