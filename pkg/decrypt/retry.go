package decrypt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lifegpc/cwm-export/pkg/metrics"
)

var (
	ErrKeyNotFound      = errors.New("no key available for chapter")
	ErrDecryptionFailed = errors.New("decryption failed")
	errInvalidText      = errors.New("plaintext is not valid UTF-8")
)

// Attempt is the outcome of trying one key.
type Attempt struct {
	Err error
}

// FailedError reports a chapter for which no stored key produced text.
type FailedError struct {
	ChapterID int64
	Attempts  []Attempt
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("chapter %d: %d keys tried: %v", e.ChapterID, len(e.Attempts), ErrDecryptionFailed)
}

func (e *FailedError) Is(target error) bool { return target == ErrDecryptionFailed }

// KeyLister provides the candidate keys of a chapter.
type KeyLister interface {
	KeysFor(chapterID int64) ([]string, error)
}

// ImportFunc refreshes the key store from the key bundle. force overwrites
// keys whose content changed.
type ImportFunc func(ctx context.Context, force bool) (int, error)

// RetryState records which key imports one export run already performed. A
// zero value is ready to use; share one value across the chapters of a run.
type RetryState struct {
	mu       sync.Mutex
	imported bool
	forced   bool
}

// Imported reports whether the normal import already ran.
func (s *RetryState) Imported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imported
}

// Forced reports whether the forced re-import already ran.
func (s *RetryState) Forced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced
}

type Decryptor struct {
	keys       KeyLister
	importKeys ImportFunc
	log        *zap.Logger
}

// NewDecryptor creates a Decryptor. importKeys may be nil when no key bundle
// is configured.
func NewDecryptor(keys KeyLister, importKeys ImportFunc, log *zap.Logger) *Decryptor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decryptor{keys: keys, importKeys: importKeys, log: log}
}

// TryDecrypt decrypts content with the stored keys of chapterID. A missing
// key triggers one import per run, and a chapter no key can decode triggers
// one forced re-import per run before giving up.
func (d *Decryptor) TryDecrypt(ctx context.Context, state *RetryState, content string, chapterID int64) (string, error) {
	state.mu.Lock()
	defer state.mu.Unlock()

	keys, err := d.keys.KeysFor(chapterID)
	if err != nil {
		return "", fmt.Errorf("failed to load keys: %w", err)
	}

	if len(keys) == 0 && !state.imported {
		state.imported = true
		d.runImport(ctx, false)
		if keys, err = d.keys.KeysFor(chapterID); err != nil {
			return "", fmt.Errorf("failed to load keys: %w", err)
		}
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("chapter %d: %w", chapterID, ErrKeyNotFound)
	}

	text, attempts, ok := tryKeys(content, keys)
	if ok {
		return text, nil
	}

	if !state.forced {
		state.forced = true
		d.log.Info("No key could decrypt chapter, re-importing keys", zap.Int64("chapter", chapterID))
		d.runImport(ctx, true)
		if keys, err = d.keys.KeysFor(chapterID); err != nil {
			return "", fmt.Errorf("failed to load keys: %w", err)
		}
		var retry []Attempt
		if text, retry, ok = tryKeys(content, keys); ok {
			return text, nil
		}
		attempts = append(attempts, retry...)
	}

	return "", &FailedError{ChapterID: chapterID, Attempts: attempts}
}

func (d *Decryptor) runImport(ctx context.Context, force bool) {
	if d.importKeys == nil {
		return
	}
	n, err := d.importKeys(ctx, force)
	if err != nil {
		d.log.Warn("Key import failed", zap.Bool("force", force), zap.Error(err))
		return
	}
	d.log.Debug("Keys imported", zap.Bool("force", force), zap.Int("count", n))
}

func tryKeys(content string, keys []string) (string, []Attempt, bool) {
	attempts := make([]Attempt, 0, len(keys))
	for _, key := range keys {
		text, err := decodeWith(content, key)
		if err == nil {
			metrics.DecryptAttempts.WithLabelValues("ok").Inc()
			return text, attempts, true
		}
		metrics.DecryptAttempts.WithLabelValues("failed").Inc()
		attempts = append(attempts, Attempt{Err: err})
	}
	return "", attempts, false
}

func decodeWith(content, key string) (string, error) {
	plain, err := DecryptOnce(content, key)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", errInvalidText
	}
	return string(plain), nil
}
