// Package visioncache implements the two-tier AI vision response cache:
// an in-memory LRU fronting a persistent key-value tier, keyed by the
// composite (provider, model, baselineHash, currentHash) identity.
package visioncache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultTTL is the persistent-tier expiry window.
const DefaultTTL = 30 * 24 * time.Hour

// DefaultMemoryCapacity is the default LRU tier size.
const DefaultMemoryCapacity = 100

// Severity mirrors the canonical AI classification severities; declared
// locally so this package has no dependency on the vision client.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityBreaking Severity = "breaking"
)

// Response is the cached AI vision classification.
type Response struct {
	Severity    Severity
	Confidence  float64
	Reasoning   string
	Categories  []string
	Suggestions []string
}

// Entry is a persistent-tier row: {value, timestamp, provider, model, hits}.
type Entry struct {
	Key       string
	Value     Response
	Timestamp time.Time
	Provider  string
	Model     string
	Hits      int64
}

// Stats reports cache occupancy and hit ratio across both tiers.
type Stats struct {
	MemorySize     int
	PersistentSize int
	Hits           int64
	Misses         int64
	Evictions      int64
	HitRate        float64
}

var (
	ErrSerialization = errors.New("visioncache: serialization error")
	ErrStoreIO       = errors.New("visioncache: store io error")
)

// Key builds the composite cache key: sha256(provider:model:baselineHash:currentHash).
func Key(provider, model, baselineHash, currentHash string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte(":"))
	h.Write([]byte(model))
	h.Write([]byte(":"))
	h.Write([]byte(baselineHash))
	h.Write([]byte(":"))
	h.Write([]byte(currentHash))
	return hex.EncodeToString(h.Sum(nil))
}
