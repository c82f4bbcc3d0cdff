package perceptron

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/VictoriaMetrics/fastcache"
)

// Each weight is stored as three little-endian float64s: the current value,
// the running sum used for averaging, and the step of its last update.
const recordSize = 24

// minCacheBytes is the smallest capacity fastcache accepts without rounding.
const minCacheBytes = 32 << 20

// Snapshot layout: every weight under its feature key, the feature keys
// themselves in numbered index pages, and a header giving the page and
// weight counts. fastcache cannot enumerate its keys, so Load walks the index.
const (
	indexPageBytes = 16 << 10
	snapshotTries  = 4

	// fastcache stores a 4-byte length header with every entry.
	entryOverhead = 4
)

var (
	metaKey   = []byte("\x00meta")
	headerKey = []byte("\x00index")
)

func pageKey(i int) []byte {
	return binary.AppendUvarint([]byte("\x00index/"), uint64(i))
}

type record struct {
	value float64
	total float64
	last  float64
}

func decodeRecord(b []byte) record {
	if len(b) != recordSize {
		return record{}
	}
	return record{
		value: math.Float64frombits(binary.LittleEndian.Uint64(b[0:8])),
		total: math.Float64frombits(binary.LittleEndian.Uint64(b[8:16])),
		last:  math.Float64frombits(binary.LittleEndian.Uint64(b[16:24])),
	}
}

func (r record) encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(r.value))
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(r.total))
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(r.last))
	return dst
}

// weights is a sparse averaged-perceptron weight vector keyed by feature
// string. Reads are safe for concurrent use; updates are not.
type weights struct {
	m map[string]record
}

func newWeights() *weights {
	return &weights{m: make(map[string]record)}
}

func (w *weights) get(key []byte) record {
	return w.m[string(key)]
}

// at returns the weight of key. With averaged set it returns the mean value
// over step updates instead of the current one.
func (w *weights) at(key []byte, averaged bool, step int64) float64 {
	r := w.get(key)
	if !averaged || step == 0 {
		return r.value
	}
	c := float64(step)
	return (r.total + r.value*(c-r.last)) / c
}

// add moves the weight of key by delta at the given step.
func (w *weights) add(key []byte, delta float64, step int64) {
	r := w.get(key)
	c := float64(step)
	r.total += r.value * (c - r.last)
	r.value += delta
	r.last = c
	w.m[string(key)] = r
}

func (w *weights) score(keys [][]byte, averaged bool, step int64) float64 {
	var sum float64
	for _, k := range keys {
		sum += w.at(k, averaged, step)
	}
	return sum
}

func (w *weights) entries() int {
	return len(w.m)
}

func (w *weights) reset() {
	clear(w.m)
}

// indexPages packs the feature keys as uvarint-length-prefixed strings into
// pages small enough to be regular fastcache entries.
func (w *weights) indexPages() [][]byte {
	var pages [][]byte
	var page []byte
	for k := range w.m {
		if len(page) > 0 && len(page)+len(k)+binary.MaxVarintLen64 > indexPageBytes {
			pages = append(pages, page)
			page = nil
		}
		page = binary.AppendUvarint(page, uint64(len(k)))
		page = append(page, k...)
	}
	if len(page) > 0 {
		pages = append(pages, page)
	}
	return pages
}

// snapshot writes the weights and meta to a fastcache directory at path.
// The cache is sized from the records it must hold, never smaller than
// minBytes, and grown until nothing written to it has been evicted.
func (w *weights) snapshot(path string, minBytes, workers int, meta []byte) error {
	pages := w.indexPages()
	need := len(metaKey) + len(meta) + len(headerKey) + 2*binary.MaxVarintLen64 + 2*entryOverhead
	for i, p := range pages {
		need += len(pageKey(i)) + len(p) + entryOverhead
	}
	for k := range w.m {
		need += len(k) + recordSize + entryOverhead
	}

	size := max(minBytes, minCacheBytes, 4*need)
	for try := 0; try < snapshotTries; try++ {
		c := w.fill(size, pages, meta)
		if w.complete(c, len(pages)) {
			err := c.SaveToFileConcurrent(path, workers)
			c.Reset()
			if err != nil {
				return fmt.Errorf("perceptron: save %s: %w", path, err)
			}
			return nil
		}
		c.Reset()
		size *= 2
	}
	return fmt.Errorf("perceptron: %d weights do not fit a %d byte snapshot", len(w.m), size/2)
}

func (w *weights) fill(size int, pages [][]byte, meta []byte) *fastcache.Cache {
	c := fastcache.New(size)
	buf := make([]byte, 0, recordSize)
	for k, r := range w.m {
		c.Set([]byte(k), r.encode(buf[:0]))
	}
	for i, p := range pages {
		c.Set(pageKey(i), p)
	}
	header := binary.AppendUvarint(nil, uint64(len(pages)))
	header = binary.AppendUvarint(header, uint64(len(w.m)))
	c.Set(headerKey, header)
	c.Set(metaKey, meta)
	return c
}

// complete reports whether every entry written by fill is still in c.
func (w *weights) complete(c *fastcache.Cache, pages int) bool {
	if !c.Has(headerKey) || !c.Has(metaKey) {
		return false
	}
	for i := 0; i < pages; i++ {
		if !c.Has(pageKey(i)) {
			return false
		}
	}
	for k := range w.m {
		if !c.Has([]byte(k)) {
			return false
		}
	}
	return true
}

// loadWeights reads a snapshot written by snapshot and returns its weights
// and meta record.
func loadWeights(path string) (*weights, []byte, error) {
	c, err := fastcache.LoadFromFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("perceptron: load %s: %w", path, err)
	}
	defer c.Reset()

	meta, ok := c.HasGet(nil, metaKey)
	if !ok {
		return nil, nil, fmt.Errorf("perceptron: %s has no metadata record", path)
	}
	header, ok := c.HasGet(nil, headerKey)
	if !ok {
		return nil, nil, fmt.Errorf("perceptron: %s has no weight index", path)
	}
	pages, n := binary.Uvarint(header)
	if n <= 0 {
		return nil, nil, fmt.Errorf("perceptron: %s: corrupt weight index", path)
	}
	count, m := binary.Uvarint(header[n:])
	if m <= 0 {
		return nil, nil, fmt.Errorf("perceptron: %s: corrupt weight index", path)
	}

	w := &weights{m: make(map[string]record, count)}
	for i := 0; i < int(pages); i++ {
		page, ok := c.HasGet(nil, pageKey(i))
		if !ok {
			return nil, nil, fmt.Errorf("perceptron: %s: missing index page %d", path, i)
		}
		for len(page) > 0 {
			l, n := binary.Uvarint(page)
			if n <= 0 || uint64(len(page)-n) < l {
				return nil, nil, fmt.Errorf("perceptron: %s: corrupt index page %d", path, i)
			}
			key := page[n : n+int(l)]
			page = page[n+int(l):]
			raw, ok := c.HasGet(nil, key)
			if !ok || len(raw) != recordSize {
				return nil, nil, fmt.Errorf("perceptron: %s: missing weight %q", path, key)
			}
			w.m[string(key)] = decodeRecord(raw)
		}
	}
	if uint64(len(w.m)) != count {
		return nil, nil, fmt.Errorf("perceptron: %s: index lists %d weights, header %d", path, len(w.m), count)
	}
	return w, meta, nil
}
