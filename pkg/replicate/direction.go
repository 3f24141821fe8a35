package replicate

import (
	"context"

	"github.com/gocouch/gocouch/pkg/adapter"
)

// Push replicates local → remote: every change on local not yet known
// to remote is written to remote.
func Push(ctx context.Context, local adapter.Adapter, localID string, remote adapter.Adapter, remoteID string, opts Options) Result {
	return Replicate(ctx, local, localID, remote, remoteID, opts)
}

// Pull replicates remote → local.
func Pull(ctx context.Context, local adapter.Adapter, localID string, remote adapter.Adapter, remoteID string, opts Options) Result {
	return Replicate(ctx, remote, remoteID, local, localID, opts)
}

// Sync pushes then pulls, returning both results.
func Sync(ctx context.Context, local adapter.Adapter, localID string, remote adapter.Adapter, remoteID string, opts Options) Report {
	push := Push(ctx, local, localID, remote, remoteID, opts)
	pull := Pull(ctx, local, localID, remote, remoteID, opts)
	return Report{Push: push, Pull: pull}
}
