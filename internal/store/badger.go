package store

import (
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v3"
)

// BadgerStore persists records in an embedded badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database in dir.
func OpenBadger(dir string, logger Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger(logger))
	return openBadger(opts)
}

// OpenBadgerInMemory opens a badger database that lives only in memory.
func OpenBadgerInMemory(logger Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger(logger))
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, storeError("open", opts.Dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Get implements Store.
func (s *BadgerStore) Get(key string, v any) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeError("get", key, err)
	}

	if err := JSONDecode(data, v); err != nil {
		return false, storeError("decode", key, err)
	}
	return true, nil
}

// Put implements Store.
func (s *BadgerStore) Put(key string, v any) error {
	if err := validKey(key); err != nil {
		return err
	}

	data, err := JSONEncode(v)
	if err != nil {
		return storeError("encode", key, err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		return storeError("put", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}); err != nil {
		return storeError("delete", key, err)
	}
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// loggerAdapter routes badger's internal logging into the vigil logger.
type loggerAdapter struct {
	l Logger
}

func badgerLogger(l Logger) badger.Logger {
	if l == nil {
		return nil
	}
	return loggerAdapter{l: l}
}

func (a loggerAdapter) Errorf(format string, args ...any) {
	a.l.Error("badger: "+strings.TrimSuffix(format, "\n"), args...)
}

func (a loggerAdapter) Warningf(format string, args ...any) {
	a.l.Error("badger: "+strings.TrimSuffix(format, "\n"), args...)
}

func (a loggerAdapter) Infof(format string, args ...any) {
	a.l.Debug("badger: "+strings.TrimSuffix(format, "\n"), args...)
}

func (a loggerAdapter) Debugf(format string, args ...any) {
	a.l.Debug("badger: "+strings.TrimSuffix(format, "\n"), args...)
}
