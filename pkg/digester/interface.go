package digester

import (
	"context"

	"github.com/itohio/godigester/pkg/pipeline"
)

// Device defines the interface for digester controllers (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Records() <-chan pipeline.Record
	Dump(ctx context.Context) ([]pipeline.Record, int, error)
	Status(ctx context.Context) (string, error)
	IsConnected() bool
}

var _ Device = (*Serial)(nil)

var _ Device = (*Mock)(nil)
