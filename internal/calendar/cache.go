package calendar

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"sync"

	"monthcal/internal/model"
)

const defaultCacheEntries = 32

// Fingerprint hashes the fields of records that influence layout. Order
// matters because ties in start time keep input order.
func Fingerprint(records []model.Record) string {
	h := sha256.New()
	var buf [8]byte
	writeStr := func(s string) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	writeNum := func(f float64) {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	for _, r := range records {
		writeStr(r.ID)
		writeNum(float64(r.StartedAt))
		writeNum(float64(r.EndedAt))
		writeNum(float64(r.Kind))
		writeStr(r.Title)
		writeStr(r.GroupID)
		writeStr(r.GroupColor)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type cacheKey struct {
	year, month int
	records     string
	groups      string
	options     string
}

func newCacheKey(in Input, opts Options) cacheKey {
	first := normalizeMonth(in.Year, in.MonthIndex)
	loc := ""
	if opts.Location != nil {
		loc = opts.Location.String()
	}
	return cacheKey{
		year:    first.year,
		month:   first.month,
		records: Fingerprint(in.Records),
		groups:  strings.Join(in.ActiveGroups.Sorted(), "\x00"),
		options: strings.Join([]string{
			loc,
			strconv.Itoa(int(opts.WeekStart)),
			opts.TimeLayout,
			opts.Policy.String(),
			strconv.Itoa(opts.MaxVisibleLines),
		}, "|"),
	}
}

type yearMonth struct{ year, month int }

func normalizeMonth(year, monthIndex int) yearMonth {
	// Euclidean split so negative indexes roll back into earlier years.
	y := year + monthIndex/12
	m := monthIndex % 12
	if m < 0 {
		m += 12
		y--
	}
	return yearMonth{year: y, month: m}
}

// Cache memoizes Build results. The caller owns it; nothing in this package
// keeps one globally. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[cacheKey]ViewModel
	order   []cacheKey

	hits, misses int
}

// NewCache returns a cache holding at most maxEntries view models, evicting
// the oldest first. maxEntries <= 0 uses a small default.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	return &Cache{
		max:     maxEntries,
		entries: make(map[cacheKey]ViewModel),
	}
}

// Build returns the cached view model for (month, records, groups, options)
// or computes and stores it.
func (c *Cache) Build(in Input, opts Options) ViewModel {
	key := newCacheKey(in, opts)

	c.mu.Lock()
	if vm, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return vm
	}
	c.misses++
	c.mu.Unlock()

	vm := Build(in, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = vm
		c.order = append(c.order, key)
		for len(c.order) > c.max {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
	}
	return vm
}

// Stats reports hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached view models.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
