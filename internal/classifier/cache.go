package classifier

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/harrison/remedy/internal/models"
)

// adviceCache is a TTL + LRU cache for advisor classification results,
// keyed by the shape of the error rather than its literal message so
// recurring errors reuse one advisory verdict. Each classifier instance
// owns its cache; nothing is shared across instances.
type adviceCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	ttl     time.Duration
	maxSize int
}

type cacheEntry struct {
	key       string
	advice    *models.ClassificationAdvice
	expiresAt time.Time
}

func newAdviceCache(ttl time.Duration, maxSize int) *adviceCache {
	return &adviceCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// cacheKey hashes the error's stable identity fields.
func cacheKey(e *models.DetectedError) string {
	h := sha256.New()
	h.Write([]byte(string(e.Type)))
	h.Write([]byte{0})
	h.Write([]byte(string(e.Category)))
	h.Write([]byte{0})
	h.Write([]byte(e.SourceType))
	h.Write([]byte{0})
	h.Write([]byte(e.ComponentID))
	h.Write([]byte{0})
	h.Write([]byte(models.MessageShape(e.Message)))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *adviceCache) get(key string) (*models.ClassificationAdvice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.advice, true
}

func (c *adviceCache) set(key string, advice *models.ClassificationAdvice) {
	if advice == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.advice = advice
		entry.expiresAt = time.Now().Add(c.ttl)
		c.lru.MoveToFront(elem)
		return
	}

	for c.lru.Len() >= c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	elem := c.lru.PushFront(&cacheEntry{
		key:       key,
		advice:    advice,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.entries[key] = elem
}

func (c *adviceCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
