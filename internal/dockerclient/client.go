package dockerclient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0xa1bed0/imgship/internal/logs"
	"github.com/docker/go-sdk/client"
)

// Daemon is a thin handle on the docker engine API, used only to verify the
// daemon buildx will talk to is reachable.
type Daemon struct {
	client client.SDKClient
}

func NewDaemon(ctx context.Context) (*Daemon, error) {
	c, err := client.New(
		ctx,
		client.WithLogger(slog.New(slog.NewTextHandler(logs.Writer(), &slog.HandlerOptions{Level: slog.LevelWarn}))),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	return &Daemon{client: c}, nil
}

// Ping returns the daemon's API version.
func (d *Daemon) Ping(ctx context.Context) (string, error) {
	ping, err := d.client.Ping(ctx)
	if err != nil {
		return "", fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return ping.APIVersion, nil
}

func (d *Daemon) Close() error {
	return d.client.Close()
}
