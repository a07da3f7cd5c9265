package repository

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"interviewoj/internal/common/storage"
	"interviewoj/internal/judge/model"
	appErr "interviewoj/pkg/errors"
)

const (
	defaultPackTTL        = 10 * time.Minute
	defaultPackMaxEntries = 256
	casePackContentType   = "application/zstd"
	maxCasePackBytes      = 64 << 20
)

// CasePackStore reads and writes hidden test-case packs: a zstd-compressed
// JSON array of test cases addressed by object key and checked by SHA-256.
type CasePackStore struct {
	storage    storage.ObjectStorage
	bucket     string
	ttl        time.Duration
	maxEntries int
	maxBytes   int64

	mu      sync.Mutex
	entries map[string]*packEntry
	lruKeys []string
}

type packEntry struct {
	sha256    string
	cases     []model.TestCase
	expiresAt time.Time
}

// NewCasePackStore creates a pack store with an in-process TTL cache.
func NewCasePackStore(storageClient storage.ObjectStorage, bucket string, ttl time.Duration, maxEntries int) *CasePackStore {
	if ttl <= 0 {
		ttl = defaultPackTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultPackMaxEntries
	}
	return &CasePackStore{
		storage:    storageClient,
		bucket:     bucket,
		ttl:        ttl,
		maxEntries: maxEntries,
		maxBytes:   maxCasePackBytes,
		entries:    make(map[string]*packEntry),
	}
}

// Load returns the cases stored under key, verifying them against sum when set.
func (s *CasePackStore) Load(ctx context.Context, key, sum string) ([]model.TestCase, error) {
	if key == "" {
		return nil, appErr.ValidationError("hidden_pack_key", "required")
	}
	if cases, ok := s.hit(key, sum); ok {
		return cases, nil
	}
	if s.storage == nil {
		return nil, appErr.New(appErr.CacheError).WithMessage("storage client is not initialized")
	}

	reader, err := s.storage.GetObject(ctx, s.bucket, key)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CasePackCorrupt, "download case pack failed")
	}
	defer reader.Close()

	hasher := sha256.New()
	// One byte past the limit tells an oversized pack from one that fits exactly.
	payload, err := io.ReadAll(io.LimitReader(io.TeeReader(reader, hasher), s.maxBytes+1))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CasePackCorrupt, "read case pack failed")
	}
	if int64(len(payload)) > s.maxBytes {
		return nil, appErr.Newf(appErr.CasePackCorrupt, "case pack too large: exceeds %d bytes", s.maxBytes).
			WithDetail("key", key)
	}
	if sum != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(actual, sum) {
			return nil, appErr.New(appErr.CasePackCorrupt).WithMessage("case pack hash mismatch").
				WithDetail("key", key)
		}
	}
	cases, err := DecodeCasePack(payload)
	if err != nil {
		return nil, err
	}
	s.add(key, sum, cases)
	return cases, nil
}

// Save encodes cases, uploads them under key and returns the pack's SHA-256.
func (s *CasePackStore) Save(ctx context.Context, key string, cases []model.TestCase) (string, error) {
	if s.storage == nil {
		return "", appErr.New(appErr.CacheError).WithMessage("storage client is not initialized")
	}
	payload, sum, err := EncodeCasePack(cases)
	if err != nil {
		return "", err
	}
	if err := s.storage.EnsureBucket(ctx, s.bucket); err != nil {
		return "", appErr.Wrapf(err, appErr.InternalServerError, "ensure bucket failed")
	}
	if err := s.storage.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), casePackContentType); err != nil {
		return "", appErr.Wrapf(err, appErr.InternalServerError, "upload case pack failed")
	}
	s.add(key, sum, cases)
	return sum, nil
}

// EncodeCasePack returns the compressed pack and its hex SHA-256.
func EncodeCasePack(cases []model.TestCase) ([]byte, string, error) {
	raw, err := json.Marshal(cases)
	if err != nil {
		return nil, "", appErr.Wrapf(err, appErr.TestCaseInvalid, "encode case pack failed")
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, "", appErr.Wrapf(err, appErr.InternalServerError, "create zstd writer failed")
	}
	defer enc.Close()
	payload := enc.EncodeAll(raw, nil)
	digest := sha256.Sum256(payload)
	return payload, hex.EncodeToString(digest[:]), nil
}

// DecodeCasePack reverses EncodeCasePack.
func DecodeCasePack(payload []byte) ([]model.TestCase, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create zstd reader failed")
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CasePackCorrupt, "decompress case pack failed")
	}
	var cases []model.TestCase
	if err := json.Unmarshal(raw, &cases); err != nil {
		return nil, appErr.Wrapf(err, appErr.CasePackCorrupt, "decode case pack failed")
	}
	return cases, nil
}

func (s *CasePackStore) hit(key, sum string) ([]model.TestCase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) || (sum != "" && !strings.EqualFold(entry.sha256, sum)) {
		s.removeLocked(key)
		return nil, false
	}
	entry.expiresAt = time.Now().Add(s.ttl)
	s.touchLocked(key)
	return entry.cases, true
}

func (s *CasePackStore) add(key, sum string, cases []model.TestCase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &packEntry{sha256: sum, cases: cases, expiresAt: time.Now().Add(s.ttl)}
	s.touchLocked(key)
	for len(s.entries) > s.maxEntries && len(s.lruKeys) > 0 {
		s.removeLocked(s.lruKeys[0])
	}
}

func (s *CasePackStore) touchLocked(key string) {
	for i, k := range s.lruKeys {
		if k == key {
			s.lruKeys = append(s.lruKeys[:i], s.lruKeys[i+1:]...)
			break
		}
	}
	s.lruKeys = append(s.lruKeys, key)
}

func (s *CasePackStore) removeLocked(key string) {
	delete(s.entries, key)
	for i, k := range s.lruKeys {
		if k == key {
			s.lruKeys = append(s.lruKeys[:i], s.lruKeys[i+1:]...)
			break
		}
	}
}
