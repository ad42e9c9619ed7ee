package sessionlog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ghostauth/internal/trust/models"
	"ghostauth/internal/trust/ports"
)

// Multi appends to every sink concurrently. The append fails if any sink
// fails; sinks that succeeded are not rolled back.
type Multi struct {
	sinks []ports.SessionLog
}

func NewMulti(sinks ...ports.SessionLog) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Append(ctx context.Context, record *models.SessionRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range m.sinks {
		g.Go(func() error {
			return sink.Append(gctx, record)
		})
	}
	return g.Wait()
}
