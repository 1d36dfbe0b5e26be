// Package store persists machine tags in a LevelDB database.
//
// Every machine is one record keyed by its id. A record holds an xxhash
// checksum of the payload followed by the tag encoded as little-endian NBT,
// the same encoding used by Bedrock world databases.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/df-mc/goleveldb/leveldb/storage"
	"github.com/df-mc/goleveldb/leveldb/util"
	"github.com/google/uuid"
	"github.com/oriumgames/mecs"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
	"go.uber.org/zap"
)

// ErrCorrupt is returned for a record whose checksum does not match its
// payload or whose payload cannot be decoded.
var ErrCorrupt = errors.New("store: corrupt record")

var keyPrefix = []byte("machine/")

const checksumSize = 8

// LevelDB is a mecs.Store backed by LevelDB.
type LevelDB struct {
	db  *leveldb.DB
	log *zap.Logger
}

var _ mecs.Store = (*LevelDB)(nil)

// Open opens or creates the database at path. A nil log discards output.
func Open(path string, log *zap.Logger) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		Compression: opt.FlateCompression,
		BlockSize:   16 * opt.KiB,
	})
	if err != nil {
		return nil, fmt.Errorf("open machine db %s: %w", path, err)
	}
	return newLevelDB(db, log), nil
}

// OpenMemory opens a database kept in memory.
func OpenMemory(log *zap.Logger) (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory machine db: %w", err)
	}
	return newLevelDB(db, log), nil
}

func newLevelDB(db *leveldb.DB, log *zap.Logger) *LevelDB {
	if log == nil {
		log = zap.NewNop()
	}
	return &LevelDB{db: db, log: log.Named("store")}
}

func key(id uuid.UUID) []byte {
	k := make([]byte, 0, len(keyPrefix)+len(id))
	k = append(k, keyPrefix...)
	return append(k, id[:]...)
}

// Save implements mecs.Store.
func (s *LevelDB) Save(id uuid.UUID, tag map[string]any) error {
	payload, err := nbt.MarshalEncoding(tag, nbt.LittleEndian)
	if err != nil {
		return fmt.Errorf("encode machine %s: %w", id, err)
	}
	record := make([]byte, checksumSize, checksumSize+len(payload))
	binary.LittleEndian.PutUint64(record, xxhash.Sum64(payload))
	record = append(record, payload...)

	if err := s.db.Put(key(id), record, nil); err != nil {
		return fmt.Errorf("write machine %s: %w", id, err)
	}
	return nil
}

// Delete implements mecs.Store. Deleting a missing record is not an error.
func (s *LevelDB) Delete(id uuid.UUID) error {
	if err := s.db.Delete(key(id), nil); err != nil {
		return fmt.Errorf("delete machine %s: %w", id, err)
	}
	return nil
}

// Get returns the tag stored for id, mecs.ErrNotFound when there is none or
// ErrCorrupt when the record cannot be read.
func (s *LevelDB) Get(id uuid.UUID) (map[string]any, error) {
	record, err := s.db.Get(key(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, mecs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read machine %s: %w", id, err)
	}
	return decode(record)
}

// Load implements mecs.Store. Corrupt records and keys that are not machine
// ids are logged and skipped. An error returned by fn stops the iteration.
func (s *LevelDB) Load(fn func(id uuid.UUID, tag map[string]any) error) error {
	it := s.db.NewIterator(util.BytesPrefix(keyPrefix), nil)
	defer it.Release()

	for it.Next() {
		id, err := uuid.FromBytes(it.Key()[len(keyPrefix):])
		if err != nil {
			s.log.Warn("skipping malformed key", zap.ByteString("key", it.Key()))
			continue
		}
		tag, err := decode(it.Value())
		if err != nil {
			s.log.Warn("skipping machine record", zap.Stringer("id", id), zap.Error(err))
			continue
		}
		if err := fn(id, tag); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("iterate machines: %w", err)
	}
	return nil
}

// Close implements mecs.Store.
func (s *LevelDB) Close() error {
	return s.db.Close()
}

func decode(record []byte) (map[string]any, error) {
	if len(record) < checksumSize {
		return nil, fmt.Errorf("%w: short record of %d bytes", ErrCorrupt, len(record))
	}
	payload := record[checksumSize:]
	if binary.LittleEndian.Uint64(record) != xxhash.Sum64(payload) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	var tag map[string]any
	if err := nbt.UnmarshalEncoding(payload, &tag, nbt.LittleEndian); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return tag, nil
}
