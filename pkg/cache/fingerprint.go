package cache

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

const (
	// sampleSize is how many leading and trailing components feed the
	// fingerprint.
	sampleSize = 8

	// quantizeScale rounds components to four decimals.
	quantizeScale = 1e4
)

// QueryFingerprint identifies a search by its collection, a quantized
// sample of the query vector, topK and filter. Queries that agree on the
// sampled components share a fingerprint even if they differ elsewhere.
func QueryFingerprint(collection string, query []float32, topK int, filter vector.Filter) string {
	d := xxhash.New()
	_, _ = d.WriteString(collection)
	_, _ = d.Write([]byte{0})

	var buf [8]byte
	writeComponent := func(f float32) {
		q := int64(math.Round(float64(f) * quantizeScale))
		binary.LittleEndian.PutUint64(buf[:], uint64(q))
		_, _ = d.Write(buf[:])
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(len(query)))
	_, _ = d.Write(buf[:])

	if len(query) <= 2*sampleSize {
		for _, f := range query {
			writeComponent(f)
		}
	} else {
		for _, f := range query[:sampleSize] {
			writeComponent(f)
		}
		for _, f := range query[len(query)-sampleSize:] {
			writeComponent(f)
		}
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(topK))
	_, _ = d.Write(buf[:])

	if len(filter) > 0 {
		// encoding/json sorts map keys, so equal filters hash equally.
		if raw, err := json.Marshal(filter); err == nil {
			_, _ = d.Write(raw)
		}
	}

	return strconv.FormatUint(d.Sum64(), 16)
}
