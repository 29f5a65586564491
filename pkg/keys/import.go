// Package keys imports chapter keys exported by the reader app.
//
// Every key file is named by the base64 encoding of its origin id and holds
// the raw key string.
package keys

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lifegpc/cwm-export/pkg/data"
	"github.com/lifegpc/cwm-export/pkg/metrics"
)

type Store interface {
	AllKeys() (map[string]string, error)
	Begin() (*data.KeyTx, error)
}

var nameEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// DecodeName returns the origin id encoded in a bundle entry name.
func DecodeName(name string) (string, error) {
	var err error
	for _, enc := range nameEncodings {
		var b []byte
		if b, err = enc.DecodeString(name); err == nil {
			return string(b), nil
		}
	}
	return "", fmt.Errorf("invalid entry name %q: %w", name, err)
}

// EncodeName is the inverse of DecodeName.
func EncodeName(oid string) string {
	return base64.StdEncoding.EncodeToString([]byte(oid))
}

// Import copies the keys of b into store and returns how many were written.
// Existing origin ids are skipped unless force is set, and a key equal to the
// stored one is never rewritten. Broken entries are logged and skipped. All
// writes are committed together and b is closed before returning.
func Import(ctx context.Context, b Bundle, store Store, force bool, log *zap.Logger) (count int, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	defer func() { err = multierr.Append(err, b.Close()) }()

	existing, err := store.AllKeys()
	if err != nil {
		return 0, fmt.Errorf("failed to load existing keys: %w", err)
	}

	tx, err := store.Begin()
	if err != nil {
		return 0, err
	}

	for _, name := range b.Names() {
		if ctx.Err() != nil {
			break
		}

		oid, err := DecodeName(name)
		if err != nil {
			log.Warn("Skipping key entry", zap.String("entry", name), zap.Error(err))
			continue
		}
		chapterID, userID, err := data.ParseOriginID(oid)
		if err != nil {
			log.Warn("Skipping key entry", zap.String("entry", name), zap.Error(err))
			continue
		}

		old, exists := existing[oid]
		if exists && !force {
			continue
		}

		content, err := b.ReadFile(name)
		if err != nil {
			log.Warn("Unable to read key entry", zap.String("entry", name), zap.Error(err))
			continue
		}
		key := string(content)
		if exists && old == key {
			continue
		}

		if err := tx.UpsertKey(chapterID, userID, key); err != nil {
			log.Warn("Unable to store key", zap.String("origin", oid), zap.Error(err))
			continue
		}
		existing[oid] = key
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit keys: %w", err)
	}

	metrics.KeysImported.Add(float64(count))
	log.Debug("Key import finished", zap.Int("written", count), zap.Bool("force", force))
	return count, ctx.Err()
}

// Importer imports from a bundle path on demand.
type Importer struct {
	path  string
	store Store
	log   *zap.Logger
}

func NewImporter(path string, store Store, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{path: path, store: store, log: log}
}

// Import opens the bundle and runs Import on it.
func (i *Importer) Import(ctx context.Context, force bool) (int, error) {
	b, err := OpenBundle(i.path)
	if err != nil {
		return 0, err
	}
	return Import(ctx, b, i.store, force, i.log)
}
