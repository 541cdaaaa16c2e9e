package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// Persistence format (spec §4.J): entryCount:u32 followed by
// entryCount records of {keyLen:u16, key[keyLen], rspLen:u16,
// rspBytes[rspLen]}, written MRU → LRU. Unlike the teacher's
// cache_binary.go (which persists the whole response_t buffer region),
// this writes exactly rspLen response bytes — spec §9(b) calls that out
// as the documented, intended behavior.
const countFieldSize = 4

// Cleanup persists all live entries (front-to-back) to path, then frees
// the in-memory cache. If capacity is 0, nothing is written (spec: "if
// N > 0, persist..."). The write is atomic: a crash mid-write never
// leaves a half-written cache file, following the teacher's use of
// natefinch/atomic for exactly this kind of replace-on-write.
func (c *Cache) Cleanup(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity > 0 {
		keys, resps := c.orderedKeysAndResponses()

		buf := encodeEntries(keys, resps)
		if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
			return fmt.Errorf("cache: persist %s: %w", path, err)
		}
	}

	c.nodes = nil
	c.free = nil
	c.index = make(map[string]int)
	c.head = sentinel
	c.tail = sentinel

	return nil
}

func encodeEntries(keys []string, resps [][]byte) []byte {
	var buf bytes.Buffer

	var countBuf [countFieldSize]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(keys))) //nolint:gosec // entry counts stay well below 2^32
	buf.Write(countBuf[:])

	for i, key := range keys {
		var lenBuf [2]byte

		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(key))) //nolint:gosec // keys are bounded to 255 bytes by spec
		buf.Write(lenBuf[:])
		buf.WriteString(key)

		resp := resps[i]
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(resp))) //nolint:gosec // response frames are bounded by MaxFrameSize
		buf.Write(lenBuf[:])
		buf.Write(resp)
	}

	return buf.Bytes()
}

// Load reads a persisted cache file into a fresh Cache with the given
// capacity. Load is tolerant: it stops at the first truncated or
// obviously invalid record without failing, and entries beyond capacity
// are discarded (spec §4.J). A missing file yields an empty cache.
func Load(path string, capacity int) (*Cache, error) {
	c := New(capacity)

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}

		return nil, fmt.Errorf("cache: read %s: %w", path, err)
	}

	if len(data) < countFieldSize {
		return c, nil
	}

	count := binary.LittleEndian.Uint32(data[:countFieldSize])
	pos := countFieldSize

	type entry struct {
		key  string
		resp []byte
	}

	entries := make([]entry, 0, count)

	for i := uint32(0); i < count; i++ {
		key, resp, next, ok := decodeEntry(data, pos)
		if !ok {
			break
		}

		pos = next
		entries = append(entries, entry{key: key, resp: resp})
	}

	// entries is in MRU → LRU (front-to-back) order. Re-insert oldest
	// first so the final recency order matches the persisted order;
	// natural eviction then discards whatever doesn't fit in capacity.
	for i := len(entries) - 1; i >= 0; i-- {
		c.Put(entries[i].key, entries[i].resp)
	}

	return c, nil
}

// decodeEntry decodes one {keyLen,key,rspLen,resp} record starting at
// pos. ok is false if data is too short to hold a complete record.
func decodeEntry(data []byte, pos int) (key string, resp []byte, next int, ok bool) {
	if pos+2 > len(data) {
		return "", nil, 0, false
	}

	keyLen := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2

	if pos+keyLen+2 > len(data) {
		return "", nil, 0, false
	}

	key = string(data[pos : pos+keyLen])
	pos += keyLen

	rspLen := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2

	if pos+rspLen > len(data) {
		return "", nil, 0, false
	}

	resp = make([]byte, rspLen)
	copy(resp, data[pos:pos+rspLen])
	pos += rspLen

	return key, resp, pos, true
}
