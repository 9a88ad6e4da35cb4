package viewcache

import (
	"errors"

	"mcpdesk/internal/ui"
)

// Capture persists the console's synchronized state for endpoint. Snapshots that were
// themselves restored from the cache, or never fetched, are skipped.
func (s *Store) Capture(endpoint string, console *ui.Console) error {
	page := console.Servers().Snapshot()
	tools := console.Tools().Snapshot()

	var errs []error
	if err := s.SaveQuery(endpoint, page.Pending); err != nil {
		errs = append(errs, err)
	}
	if page.Version > 0 && !page.Stale && !page.FetchedAt.IsZero() {
		errs = append(errs, s.SaveServers(endpoint, ServerPageRecord{
			Query:     page.Query,
			Servers:   page.Servers,
			Total:     page.Total,
			FetchedAt: page.FetchedAt,
		}))
	}
	if tools.Version > 0 && !tools.Stale && !tools.FetchedAt.IsZero() {
		errs = append(errs, s.SaveTools(endpoint, ToolsRecord{
			Filter:    tools.Filter,
			Tools:     tools.Tools,
			FetchedAt: tools.FetchedAt,
		}))
	}
	return errors.Join(errs...)
}

// Hydrate loads the cached view for endpoint into console as stale state. It reports
// whether anything was restored.
func (s *Store) Hydrate(endpoint string, console *ui.Console) (bool, error) {
	restored := false

	page, ok, err := s.LoadServers(endpoint)
	if err != nil {
		return false, err
	}
	if ok && console.Servers().Restore(page.Query, page.Servers, page.Total, page.FetchedAt) {
		restored = true
	}

	tools, ok, err := s.LoadTools(endpoint)
	if err != nil {
		return restored, err
	}
	if ok && console.Tools().Restore(tools.Filter, tools.Tools, tools.FetchedAt) {
		restored = true
	}
	return restored, nil
}
