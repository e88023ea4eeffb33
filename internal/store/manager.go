package store

import (
	"fmt"
	"sync"
)

// Manager provides shared access to one bolt database file. bbolt holds an
// exclusive file lock, so components embedding the library must share a
// single handle per path.
type Manager struct {
	db     *KV
	dbPath string
	refs   int
}

var (
	globalManager *Manager
	managerMu     sync.Mutex
)

// GetSharedKV returns a shared handle for the bolt database at path.
// Multiple calls with the same path return the same underlying connection;
// the connection closes when the last reference is released.
func GetSharedKV(path string) (*SharedKV, error) {
	managerMu.Lock()
	defer managerMu.Unlock()

	if globalManager == nil || globalManager.dbPath != path {
		if globalManager != nil {
			globalManager.close()
		}

		db, err := OpenKV(path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}

		globalManager = &Manager{
			db:     db,
			dbPath: path,
		}
	}

	globalManager.refs++

	return &SharedKV{
		manager: globalManager,
		KV:      globalManager.db,
	}, nil
}

// SharedKV wraps a KV with reference counting.
type SharedKV struct {
	manager *Manager
	*KV
}

// Close decrements the reference count and closes the underlying database
// when no more references exist.
func (s *SharedKV) Close() error {
	if s.manager == nil {
		return nil
	}

	managerMu.Lock()
	defer managerMu.Unlock()

	s.manager.refs--
	if s.manager.refs <= 0 {
		err := s.manager.close()
		globalManager = nil
		return err
	}
	return nil
}

func (m *Manager) close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
