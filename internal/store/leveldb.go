package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var ErrNotFound = errors.New("Ключ не найден.")

type Store struct {
	conn *leveldb.DB
}

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("Не удалось открыть хранилище %s: %w", path, err)
	}
	return &Store{conn: db}, nil
}

func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("Не удалось открыть хранилище в памяти: %w", err)
	}
	return &Store{conn: db}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Get(key string) ([]byte, error) {
	value, err := s.conn.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Не удалось прочитать ключ %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Put(key string, value []byte) error {
	if err := s.conn.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("Не удалось записать ключ %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	if err := s.conn.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("Не удалось удалить ключ %s: %w", key, err)
	}
	return nil
}
