package chat

import "github.com/adamavenir/pairchat/internal/types"

// SearchSession is a query-scoped result list. A response is applied only
// while the query that produced it is still current.
type SearchSession struct {
	channelID string
	query     string
	results   []types.Message
	searching bool
	loading   bool
}

// Begin makes query current. Results of any earlier query become stale.
func (s *SearchSession) Begin(channelID, query string) {
	s.channelID = channelID
	s.query = query
	s.searching = true
	s.loading = true
}

// Apply stores results for query and reports whether they were current.
func (s *SearchSession) Apply(channelID, query string, results []types.Message) bool {
	if !s.current(channelID, query) {
		return false
	}
	s.results = make([]types.Message, 0, len(results))
	for _, msg := range results {
		s.results = append(s.results, msg.Clone())
	}
	s.loading = false
	return true
}

// Fail ends loading for query if it is still current.
func (s *SearchSession) Fail(channelID, query string) bool {
	if !s.current(channelID, query) {
		return false
	}
	s.loading = false
	return true
}

// Clear leaves search mode.
func (s *SearchSession) Clear() {
	*s = SearchSession{}
}

// SearchView is a read-only snapshot of the search session.
type SearchView struct {
	ChannelID string
	Query     string
	Results   []types.Message
	Searching bool
	Loading   bool
}

func (s *SearchSession) view() SearchView {
	results := make([]types.Message, 0, len(s.results))
	for _, msg := range s.results {
		results = append(results, msg.Clone())
	}
	return SearchView{
		ChannelID: s.channelID,
		Query:     s.query,
		Results:   results,
		Searching: s.searching,
		Loading:   s.loading,
	}
}

func (s *SearchSession) current(channelID, query string) bool {
	return s.searching && s.channelID == channelID && s.query == query
}
