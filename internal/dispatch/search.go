package dispatch

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/calvinalkan/dindex/internal/command"
	"github.com/calvinalkan/dindex/internal/docs"
	"github.com/calvinalkan/dindex/internal/wire"
)

// handleSearch implements spec §5's parallel keyword scan: a fan-out of
// workers claims document keys from a shared counter, scans each for
// the keyword, and records hits in a shared bitmap; the parent then
// formats the surviving keys as a comma-separated list.
//
// The teacher's model (and the original C server) forks worker
// processes sharing an anonymous mmap region for the counter and
// bitmap. Spec §9 ("Fork/process lifecycle") explicitly allows an
// equivalent worker-pool design using goroutines, a shared atomic
// counter, and a shared bitmap, as long as per-request scratch state
// stays isolated, at most one cache insert happens per keyword per
// request, and store/cache mutations stay totally ordered — all true
// here since the goroutines only read the store and the bitmap is
// local to this one call.
func handleSearch(deps *Deps, args []wire.Arg) ([]byte, wire.Status) {
	kw := args[0].Str

	requested := uint32(1)
	if len(args) > 1 {
		requested = args[1].U32
	}

	total, err := deps.Store.Total()
	if err != nil {
		return nil, wire.Error
	}

	if total == 0 {
		return wire.SimpleResponse(byte(command.Search), wire.Ok, ""), wire.Ok
	}

	workers := clampWorkers(requested, total, deps.MaxSearchWorkers)

	hits := scanAllDocuments(deps, kw, total, workers)

	msg := formatKeyList(hits)

	return wire.SimpleResponse(byte(command.Search), wire.Ok, msg), wire.Ok
}

// clampWorkers bounds the requested worker count to
// min(requested, 10*cpuCount, totalDocs), defaulting to 1 when
// requested is 0.
func clampWorkers(requested uint32, totalDocs int64, maxOverride int) int {
	if requested == 0 {
		requested = 1
	}

	cap10 := 10 * runtime.NumCPU()
	if maxOverride > 0 && maxOverride < cap10 {
		cap10 = maxOverride
	}

	n := int(requested)
	if n > cap10 {
		n = cap10
	}

	if int64(n) > totalDocs {
		n = int(totalDocs)
	}

	if n < 1 {
		n = 1
	}

	return n
}

// bitmap is a goroutine-safe set of document keys, standing in for the
// spec's shared anonymous-mmap bitmap.
type bitmap struct {
	mu   sync.Mutex
	bits []byte
}

func newBitmap(n int64) *bitmap {
	return &bitmap{bits: make([]byte, (n+7)/8)}
}

func (b *bitmap) set(k int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bits[k/8] |= 1 << uint(k%8)
}

func (b *bitmap) isSet(k int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.bits[k/8]&(1<<uint(k%8)) != 0
}

// scanAllDocuments claims keys [0,total) across workers goroutines via a
// shared atomic counter, scanning each live document's body for kw, and
// returns the ascending list of keys whose body matched at least once.
// The result set is independent of worker count by construction: each
// key is claimed by exactly one worker, and the bitmap records
// disjoint, order-independent bits.
//
// A record whose body is unreadable (missing file, permission error) is
// treated exactly like a tombstoned key: it contributes no match and the
// scan continues, per spec §8's result-set definition
// ({k : getLive(k) ∧ body(k) contains kw}) — one bad record must not
// abort the whole request.
func scanAllDocuments(deps *Deps, kw []byte, total int64, workers int) []int64 {
	var next atomic.Int64

	bm := newBitmap(total)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				k := next.Add(1) - 1
				if k >= total {
					return
				}

				doc, err := deps.Store.Get(int32(k)) //nolint:gosec // k is bounded by total above
				if err != nil {
					// Tombstoned or otherwise not live: no match, keep claiming.
					continue
				}

				path, err := docPath(deps.DocRoot, doc)
				if err != nil {
					continue
				}

				count, err := docs.ScanKeyword(path, kw, true)
				if err != nil {
					// Body unreadable: no match, keep claiming.
					continue
				}

				if count > 0 {
					bm.set(k)
				}
			}
		}()
	}

	wg.Wait()

	hits := make([]int64, 0, total)

	for k := int64(0); k < total; k++ {
		if bm.isSet(k) {
			hits = append(hits, k)
		}
	}

	return hits
}

func formatKeyList(keys []int64) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.FormatInt(k, 10)
	}

	return strings.Join(parts, ",")
}
