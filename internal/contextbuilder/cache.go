package contextbuilder

import (
	"sync"

	"github.com/ShayCichocki/krishi/pkg/models"
)

const defaultCacheSize = 1024

// cache keeps the last good profile and history per key so a failing store
// does not fail every query. Entries are evicted oldest-first.
type cache struct {
	mu       sync.Mutex
	size     int
	profiles map[string]models.FarmerProfile
	pOrder   []string
	history  map[string][]models.Turn
	hOrder   []string
}

func newCache(size int) *cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &cache{
		size:     size,
		profiles: make(map[string]models.FarmerProfile),
		history:  make(map[string][]models.Turn),
	}
}

func (c *cache) profile(id string) (*models.FarmerProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[id]
	if !ok {
		return nil, false
	}
	p.PrimaryCrops = append([]string(nil), p.PrimaryCrops...)
	return &p, true
}

func (c *cache) putProfile(p *models.FarmerProfile) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	cp.PrimaryCrops = append([]string(nil), p.PrimaryCrops...)
	if _, ok := c.profiles[p.FarmerID]; !ok {
		c.pOrder = append(c.pOrder, p.FarmerID)
		if len(c.pOrder) > c.size {
			delete(c.profiles, c.pOrder[0])
			c.pOrder = c.pOrder[1:]
		}
	}
	c.profiles[p.FarmerID] = cp
}

func (c *cache) turns(sessionID string) ([]models.Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.history[sessionID]
	return append([]models.Turn(nil), t...), ok
}

func (c *cache) putTurns(sessionID string, turns []models.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTurnsLocked(sessionID, append([]models.Turn(nil), turns...))
}

func (c *cache) appendTurn(sessionID string, turn models.Turn, limit int) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	turns := append(append([]models.Turn(nil), c.history[sessionID]...), turn)
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	c.setTurnsLocked(sessionID, turns)
}

func (c *cache) setTurnsLocked(sessionID string, turns []models.Turn) {
	if _, ok := c.history[sessionID]; !ok {
		c.hOrder = append(c.hOrder, sessionID)
		if len(c.hOrder) > c.size {
			delete(c.history, c.hOrder[0])
			c.hOrder = c.hOrder[1:]
		}
	}
	c.history[sessionID] = turns
}
