package export

import (
	"context"
	"log/slog"

	"github.com/ironsheep/doc-intake-mcp/internal/aggregate"
)

// Nop is the exporter used when export is switched off. It sends nothing and
// reports aggregate.ErrExportDisabled, so complete records stay pending
// export and can be sent with RetryExport once a real target is configured.
type Nop struct {
	Logger *slog.Logger
}

// Export logs rec and returns aggregate.ErrExportDisabled.
func (n Nop) Export(_ context.Context, rec aggregate.Record) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("export disabled; record not forwarded", "person_key", rec.Key, "fields", len(rec.Fields))
	return aggregate.ErrExportDisabled
}
