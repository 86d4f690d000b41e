//go:build integration

package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// RedisImage is the Docker image used for Redis store tests.
	RedisImage = "redis:7-alpine"

	// EtcdImage is the Docker image used for etcd store tests.
	EtcdImage = "quay.io/coreos/etcd:v3.5.17"

	redisPort = "6379/tcp"
	etcdPort  = "2379/tcp"
)

// Service is a running backing-service container.
type Service struct {
	Container testcontainers.Container
	Endpoint  string // host:port reachable from the test process
}

// Terminate stops and removes the container.
func (s *Service) Terminate(ctx context.Context) error {
	if s.Container != nil {
		return s.Container.Terminate(ctx)
	}
	return nil
}

// StartRedis starts a disposable Redis server.
func StartRedis(ctx context.Context) (*Service, error) {
	container, err := start(ctx, testcontainers.ContainerRequest{
		Image:        RedisImage,
		ExposedPorts: []string{redisPort},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	mapped, err := container.MappedPort(ctx, redisPort)
	return newService(ctx, container, mapped.Int(), err)
}

// StartEtcd starts a disposable single-member etcd cluster.
func StartEtcd(ctx context.Context) (*Service, error) {
	container, err := start(ctx, testcontainers.ContainerRequest{
		Image:        EtcdImage,
		ExposedPorts: []string{etcdPort},
		Cmd: []string{
			"etcd",
			"--name", "ownership-test",
			"--listen-client-urls", "http://0.0.0.0:2379",
			"--advertise-client-urls", "http://0.0.0.0:2379",
		},
		WaitingFor: wait.ForListeningPort(etcdPort).
			WithStartupTimeout(60 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	mapped, err := container.MappedPort(ctx, etcdPort)
	return newService(ctx, container, mapped.Int(), err)
}

func start(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}
	return container, nil
}

// newService resolves the host side of a mapped port, terminating the
// container when anything failed.
func newService(ctx context.Context, container testcontainers.Container, port int, portErr error) (*Service, error) {
	if portErr != nil {
		container.Terminate(ctx) //nolint:errcheck // cleanup on error path, best effort
		return nil, fmt.Errorf("get mapped port: %w", portErr)
	}
	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck // cleanup on error path, best effort
		return nil, fmt.Errorf("get host: %w", err)
	}

	return &Service{
		Container: container,
		Endpoint:  fmt.Sprintf("%s:%d", host, port),
	}, nil
}
