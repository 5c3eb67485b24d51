//go:build sqlite

package storage

// DefaultStoreKind prefers the durable backend when it was compiled in.
func DefaultStoreKind() string { return "sqlite" }

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}
