package badgerstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"

	"github.com/apphub/apphub-server/internal/store"
)

// Key layout. Everything a user owns sits under a prefix ending in the user id,
// so a single prefix scan finds (or deletes) it.
//
//	cat:{uid}:{categoryId}          category record (without apps)
//	app:{uid}:{appId}               domain.App
//	appcat:{uid}:{categoryId}:{id}  membership index, empty value
//	fav:{uid}:{appId}               domain.Favorite
//	hist:{uid}:{ulid}               domain.AccessEntry
//	config:app                      domain.AppConfig
//	user:{id}, user:idx:email:{e}   local accounts (Entity)
const (
	prefixCategory = "cat:"
	prefixApp      = "app:"
	prefixAppCat   = "appcat:"
	prefixFavorite = "fav:"
	prefixHistory  = "hist:"
	prefixUser     = "user:"
	keyAppConfig   = "config:app"
)

// buildKey concatenates prefix and suffix into a fresh slice. Badger keeps
// references to keys until the transaction commits, so buffers are not reused.
func buildKey(prefix, suffix string) []byte {
	buf := make([]byte, 0, len(prefix)+len(suffix))
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

func userScope(prefix, userID string) string {
	return prefix + userID + ":"
}

func categoryKey(userID, categoryID string) []byte {
	return buildKey(userScope(prefixCategory, userID), categoryID)
}

func appKey(userID, appID string) []byte {
	return buildKey(userScope(prefixApp, userID), appID)
}

func appCatPrefix(userID, categoryID string) []byte {
	return buildKey(userScope(prefixAppCat, userID), categoryID+":")
}

func appCatKey(userID, categoryID, appID string) []byte {
	return buildKey(userScope(prefixAppCat, userID), categoryID+":"+appID)
}

func favoriteKey(userID, appID string) []byte {
	return buildKey(userScope(prefixFavorite, userID), appID)
}

func historyKey(userID, entryID string) []byte {
	return buildKey(userScope(prefixHistory, userID), entryID)
}

// getJSON decodes the value at key into dest. Missing keys map to store.ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, dest); err != nil {
			return fmt.Errorf("unmarshal %s: %w", key, err)
		}
		return nil
	})
}

func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scanPrefix yields copies of every key and value under prefix, in key order.
func scanPrefix(txn *badger.Txn, prefix []byte) iter.Seq2[[]byte, []byte] {
	return scan(txn, prefix, false)
}

// scanPrefixReverse is scanPrefix in descending key order.
func scanPrefixReverse(txn *badger.Txn, prefix []byte) iter.Seq2[[]byte, []byte] {
	return scan(txn, prefix, true)
}

func scan(txn *badger.Txn, prefix []byte, reverse bool) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = reverse

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if reverse {
			// Seek past every key with this prefix.
			seek = append(append([]byte{}, prefix...), 0xFF)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return
			}
			if !yield(item.KeyCopy(nil), val) {
				return
			}
		}
	}
}

// scanKeys yields copies of keys under prefix without fetching values.
func scanKeys(txn *badger.Txn, prefix []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if !yield(it.Item().KeyCopy(nil)) {
				return
			}
		}
	}
}

// deletePrefix removes every key under prefix and reports how many were deleted.
func deletePrefix(txn *badger.Txn, prefix []byte) (int, error) {
	var keys [][]byte
	for k := range scanKeys(txn, prefix) {
		keys = append(keys, k)
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return 0, fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return len(keys), nil
}
