package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"go.etcd.io/bbolt"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
)

// Buckets
var (
	BucketFiles  = []byte("files")  // user\x00id -> zstd(json(Record))
	BucketTokens = []byte("tokens") // user -> json(Token)
	BucketState  = []byte("state")  // user\x00key -> json value
)

// KV is the embedded bbolt store. File rows are zstd-compressed at rest.
type KV struct {
	db  *bbolt.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenKV opens (creating if needed) the bolt database at path.
func OpenKV(path string) (*KV, error) {
	db, err := bbolt.Open(path, 0666, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{BucketFiles, BucketTokens, BucketState} {
			if _, e := tx.CreateBucketIfNotExists(b); e != nil {
				return e
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}

	return &KV{db: db, enc: enc, dec: dec}, nil
}

// Close closes the database.
func (kv *KV) Close() error {
	kv.enc.Close()
	kv.dec.Close()
	return kv.db.Close()
}

func scopedKey(user, suffix string) []byte {
	return append(append([]byte(user), 0), suffix...)
}

// LoadEntries implements filetree.Backend.LoadEntries.
func (kv *KV) LoadEntries(ctx context.Context, user string) ([]filetree.Record, error) {
	prefix := scopedKey(user, "")
	var out []filetree.Record

	err := kv.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(BucketFiles).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			raw, err := kv.dec.DecodeAll(v, nil)
			if err != nil {
				return fmt.Errorf("decompress row %q: %w", k, err)
			}
			var rec filetree.Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode row %q: %w", k, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// UpsertEntry implements filetree.Backend.UpsertEntry.
func (kv *KV) UpsertEntry(ctx context.Context, user string, rec filetree.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	compressed := kv.enc.EncodeAll(raw, nil)

	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketFiles).Put(scopedKey(user, rec.ID), compressed)
	})
}

// DeleteEntries implements filetree.Backend.DeleteEntries.
func (kv *KV) DeleteEntries(ctx context.Context, user string, ids []string) error {
	return kv.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(BucketFiles)
		for _, id := range ids {
			if err := b.Delete(scopedKey(user, id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetModified implements filetree.Backend.SetModified.
func (kv *KV) SetModified(ctx context.Context, user, id string, modified bool) error {
	return kv.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(BucketFiles)
		key := scopedKey(user, id)
		v := b.Get(key)
		if v == nil {
			return filetree.ErrNotFound
		}
		raw, err := kv.dec.DecodeAll(v, nil)
		if err != nil {
			return fmt.Errorf("decompress row: %w", err)
		}
		var rec filetree.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode row: %w", err)
		}
		rec.IsModified = modified
		raw, err = json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		return b.Put(key, kv.enc.EncodeAll(raw, nil))
	})
}

// SaveToken stores a GitHub credential for a user.
func (kv *KV) SaveToken(ctx context.Context, user string, tok Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketTokens).Put([]byte(user), raw)
	})
}

// GetToken returns the stored credential for a user.
func (kv *KV) GetToken(ctx context.Context, user string) (string, string, error) {
	var tok Token
	err := kv.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(BucketTokens).Get([]byte(user))
		if v == nil {
			return ErrTokenNotFound
		}
		return json.Unmarshal(v, &tok)
	})
	if err != nil {
		return "", "", err
	}
	return tok.Token, tok.Username, nil
}

// DeleteToken removes the stored credential for a user.
func (kv *KV) DeleteToken(ctx context.Context, user string) error {
	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketTokens).Delete([]byte(user))
	})
}

// PutState stores a JSON-encoded session-state value.
func (kv *KV) PutState(ctx context.Context, user, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketState).Put(scopedKey(user, key), raw)
	})
}

// GetState loads a session-state value into v.
func (kv *KV) GetState(ctx context.Context, user, key string, v any) error {
	return kv.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(BucketState).Get(scopedKey(user, key))
		if raw == nil {
			return ErrStateNotFound
		}
		return json.Unmarshal(raw, v)
	})
}

// DeleteState removes a session-state key.
func (kv *KV) DeleteState(ctx context.Context, user, key string) error {
	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketState).Delete(scopedKey(user, key))
	})
}
