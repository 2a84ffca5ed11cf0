package cache

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/carnet-go/vehicle-command/pkg/token"
)

// Entry is the cached token set of one account.
type Entry struct {
	Token   *token.Set `json:"token"`
	SavedAt time.Time  `json:"saved_at"`
}

type TokenCache struct {
	MaxEntries int
	Accounts   map[string]Entry `json:"accounts"`
	lock       sync.Mutex
	now        func() time.Time
}

// New returns a TokenCache that holds token sets for up to maxEntries accounts. When the cache is
// full, the entry that was saved least recently is evicted.
//
// Set maxEntries to zero for an unbounded cache.
func New(maxEntries int) *TokenCache {
	return &TokenCache{
		MaxEntries: maxEntries,
		Accounts:   make(map[string]Entry),
		now:        time.Now,
	}
}

// Import a TokenCache using data in r.
// The data should previously have been generated using [TokenCache.Export].
func Import(r io.Reader) (*TokenCache, error) {
	cache := TokenCache{now: time.Now}
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cache); err != nil {
		return nil, err
	}
	if cache.Accounts == nil {
		cache.Accounts = make(map[string]Entry)
	}
	return &cache, nil
}

// ImportFromFile reads a TokenCache from disk.
func ImportFromFile(filename string) (*TokenCache, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Import(file)
}

// Export writes a serialized TokenCache to w.
func (c *TokenCache) Export(w io.Writer) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return json.NewEncoder(w).Encode(c)
}

// ExportToFile writes a TokenCache to disk. The file is only readable by the current user.
func (c *TokenCache) ExportToFile(filename string) error {
	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	return c.Export(file)
}

func (c *TokenCache) timestamp() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Update stores the token set of account. A nil set removes the account's entry, which is what
// [session.Manager.OnTokenChange] reports after logout.
func (c *TokenCache) Update(account string, set *token.Set) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if set == nil {
		delete(c.Accounts, account)
		return
	}
	c.Accounts[account] = Entry{Token: set, SavedAt: c.timestamp()}
	if c.MaxEntries > 0 && len(c.Accounts) > c.MaxEntries {
		oldest := account
		oldestSavedAt := c.Accounts[account].SavedAt
		for name, entry := range c.Accounts {
			if entry.SavedAt.Before(oldestSavedAt) {
				oldest = name
				oldestSavedAt = entry.SavedAt
			}
		}
		delete(c.Accounts, oldest)
	}
}

// Get returns the token set saved for account.
func (c *TokenCache) Get(account string) (*token.Set, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	entry, ok := c.Accounts[account]
	if !ok || entry.Token == nil {
		return nil, false
	}
	return entry.Token, true
}
