package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/audt-staking/backend/internal/models"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var opPrefix = []byte("op/")

var writeOpt = opt.WriteOptions{Sync: true}

// LevelDB stores one JSON record per operation under a big-endian sequence
// key, so iteration order is sequence order.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates a persistent journal at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open journal storage")
	}
	return openLevelDB(stg)
}

// NewMemLevelDB creates a leveldb journal backed by memory.
func NewMemLevelDB() (*LevelDB, error) {
	return openLevelDB(storage.NewMemStorage())
}

func openLevelDB(stg storage.Storage) (*LevelDB, error) {
	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: 16,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open journal db")
	}
	return &LevelDB{db: db}, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, len(opPrefix)+8)
	copy(key, opPrefix)
	binary.BigEndian.PutUint64(key[len(opPrefix):], seq)
	return key
}

func (l *LevelDB) Append(_ context.Context, op models.Operation) error {
	next, err := l.length()
	if err != nil {
		return err
	}
	if op.Seq != next {
		return errors.Wrapf(ErrSeqConflict, "append seq %d at length %d", op.Seq, next)
	}
	data, err := json.Marshal(op)
	if err != nil {
		return errors.Wrap(err, "encode operation")
	}
	return errors.Wrap(l.db.Put(seqKey(op.Seq), data, &writeOpt), "put operation")
}

func (l *LevelDB) Load(_ context.Context) ([]models.Operation, error) {
	it := l.db.NewIterator(util.BytesPrefix(opPrefix), nil)
	defer it.Release()

	var ops []models.Operation
	for it.Next() {
		var op models.Operation
		if err := json.Unmarshal(it.Value(), &op); err != nil {
			return nil, errors.Wrapf(err, "decode operation %x", it.Key())
		}
		ops = append(ops, op)
	}
	return ops, errors.Wrap(it.Error(), "iterate journal")
}

// length returns the next expected sequence number.
func (l *LevelDB) length() (uint64, error) {
	it := l.db.NewIterator(util.BytesPrefix(opPrefix), nil)
	defer it.Release()
	if !it.Last() {
		return 0, errors.Wrap(it.Error(), "seek journal tail")
	}
	return binary.BigEndian.Uint64(it.Key()[len(opPrefix):]) + 1, nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
