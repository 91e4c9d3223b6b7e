package chat

import (
	"context"
	"strings"

	"github.com/adamavenir/pairchat/internal/core"
)

// Search runs a query in the displayed channel. An empty query leaves search mode.
// A response that arrives after a newer query was issued is discarded and
// reported as core.ErrStale.
func (c *Coordinator) Search(ctx context.Context, query string) (SearchView, error) {
	query = strings.TrimSpace(query)

	c.mu.Lock()
	if query == "" {
		c.search.Clear()
		view := c.search.view()
		c.mu.Unlock()
		c.emit(ChangeSearch, "")
		return view, nil
	}
	channelID := c.active
	if channelID == "" {
		c.mu.Unlock()
		return SearchView{}, c.observe("search", &core.ValidationError{Field: "channel", Reason: "no channel is displayed"})
	}
	if !c.readyLocked() {
		c.mu.Unlock()
		return SearchView{}, c.observe("search", core.ErrNotConnected)
	}
	c.search.Begin(channelID, query)
	pageSize := c.cfg.SearchPageSize
	c.mu.Unlock()
	c.emit(ChangeSearch, channelID)

	results, err := c.client.SearchMessages(ctx, channelID, query, pageSize)

	c.mu.Lock()
	if err != nil {
		current := c.search.Fail(channelID, query)
		c.mu.Unlock()
		if !current {
			return SearchView{}, c.observe("search", core.ErrStale)
		}
		c.emit(ChangeSearch, channelID)
		return SearchView{}, c.observe("search", core.Remote("search", err))
	}
	if !c.search.Apply(channelID, query, normalizeAll(results, channelID)) {
		c.mu.Unlock()
		c.logger.Debug("stale search discarded", "query", query)
		return SearchView{}, c.observe("search", core.ErrStale)
	}
	view := c.search.view()
	c.mu.Unlock()
	c.emit(ChangeSearch, channelID)
	return view, c.observe("search", nil)
}
