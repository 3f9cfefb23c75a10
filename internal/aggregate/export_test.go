package aggregate

import "github.com/ironsheep/doc-intake-mcp/internal/correlate"

func (a *Aggregator) Cached(key correlate.PersonKey) bool { return a.cached(key) }
