package db

import (
	"container/list"
	"database/sql"
	"sync"
)

const groupCacheSize = 4096

type groupCacheEntry struct {
	key   string
	value int64
}

// groupCache maps digests to group ids, evicting the least recently used.
type groupCache struct {
	mu    sync.Mutex
	max   int
	ll    *list.List
	items map[string]*list.Element
}

func newGroupCache(max int) *groupCache {
	return &groupCache{
		max:   max,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

func (c *groupCache) Get(digest string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[digest]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(groupCacheEntry).value, true
	}
	return 0, false
}

func (c *groupCache) Set(digest string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[digest]; ok {
		el.Value = groupCacheEntry{key: digest, value: id}
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(groupCacheEntry{key: digest, value: id})
	c.items[digest] = el

	if c.ll.Len() > c.max {
		last := c.ll.Back()
		if last == nil {
			return
		}
		c.ll.Remove(last)
		delete(c.items, last.Value.(groupCacheEntry).key)
	}
}

// Reset empties the cache after groups were rewritten.
func (c *groupCache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.items)
}

var dbGroupCaches sync.Map // map[*sql.DB]*groupCache

func getGroupCache(db *sql.DB) *groupCache {
	if db == nil {
		return nil
	}
	if existing, ok := dbGroupCaches.Load(db); ok {
		return existing.(*groupCache)
	}
	cache := newGroupCache(groupCacheSize)
	actual, _ := dbGroupCaches.LoadOrStore(db, cache)
	return actual.(*groupCache)
}
