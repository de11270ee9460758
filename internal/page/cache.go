// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package page

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ActivePage is the shell's view of the page currently on screen.
type ActivePage struct {
	URL   string
	Title string
	Text  string
	At    time.Time
}

// Cache holds the most recent page the browser shell pushed over the bridge.
// It is the Extractor both page features read from: the shell owns text
// extraction, the backend only ever sees the result.
type Cache struct {
	mu   sync.RWMutex
	page ActivePage
}

// NewCache returns an empty page cache.
func NewCache() *Cache {
	return &Cache{}
}

// SetActivePage replaces the cached page.
func (c *Cache) SetActivePage(url, title, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = ActivePage{URL: url, Title: title, Text: text, At: time.Now()}
}

// ActivePage returns the cached page.
func (c *Cache) ActivePage() ActivePage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.page
}

// ActivePageText returns the cached page text, or ErrNoPageText when the
// shell has not pushed anything yet.
func (c *Cache) ActivePageText(ctx context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if strings.TrimSpace(c.page.Text) == "" {
		return "", ErrNoPageText
	}
	return c.page.Text, nil
}
