package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/coldb/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Key returns the deterministic key of document i, e.g. "doc-00000042".
func Key(i int) []byte {
	return fmt.Appendf(nil, "doc-%08d", i)
}

// Keys returns the keys of documents [0, n).
func Keys(n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = Key(i)
	}
	return keys
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// String returns a random alphanumeric string of length n.
func (r *RNG) String(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stringLocked(n)
}

func (r *RNG) stringLocked(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return string(b)
}

// ZipfKeys picks n keys out of [0, universe) with Zipfian skew, so a few
// documents receive most of the writes.
func (r *RNG) ZipfKeys(n, universe int, s float64) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = Key(r.zipfLocked(universe, s))
	}
	return keys
}

// SparseNulls returns n flags, each true with probability nullRate.
func (r *RNG) SparseNulls(n int, nullRate float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	nulls := make([]bool, n)
	for i := range nulls {
		nulls[i] = r.rand.Float64() < nullRate
	}
	return nulls
}

// FillRow stages random values for every field in row.Fields. Each field
// is null with probability nullRate.
func (r *RNG) FillRow(schema *model.Schema, row *model.RowBuffer, nullRate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range row.Fields {
		if r.rand.Float64() < nullRate {
			row.SetNull(f)
			continue
		}
		r.fillLocked(schema.Fields[f].Type, row, f)
	}
}

func (r *RNG) fillLocked(t model.ScalarType, row *model.RowBuffer, f int) {
	switch t {
	case model.TypeBool:
		row.SetBool(f, r.rand.Intn(2) == 1)
	case model.TypeInt32:
		row.SetInt64(f, int64(int32(r.rand.Uint32())))
	case model.TypeInt64:
		row.SetInt64(f, r.rand.Int63()-math.MaxInt64/2)
	case model.TypeUInt64:
		row.SetUint64(f, r.rand.Uint64())
	case model.TypeFloat32, model.TypeFloat64:
		row.SetFloat64(f, r.rand.NormFloat64())
	case model.TypeDateTime:
		row.SetTime(f, time.Unix(r.rand.Int63n(4_000_000_000), 0))
	case model.TypeDuration:
		row.SetDuration(f, time.Duration(r.rand.Int63n(int64(time.Hour))))
	case model.TypeDecimal:
		row.SetFixed16(f, model.DecimalValue(r.rand.Int63n(1_000_000)-500_000, -int32(r.rand.Intn(4))))
	case model.TypeGuid:
		var u uuid.UUID
		_, _ = r.rand.Read(u[:])
		row.SetFixed16(f, model.GuidValue(u))
	case model.TypeDateTimeOffset:
		loc := time.FixedZone("", (r.rand.Intn(25)-12)*3600)
		row.SetFixed16(f, model.DateTimeOffsetValue(time.Unix(r.rand.Int63n(4_000_000_000), 0).In(loc)))
	case model.TypeString:
		row.SetString(f, r.stringLocked(1+r.rand.Intn(16)))
	case model.TypeBinary:
		b := make([]byte, r.rand.Intn(32))
		_, _ = r.rand.Read(b)
		row.SetBytes(f, b)
	default:
		row.SetNull(f)
	}
}
