//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"climate-monitor/models"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	port := nat.Port("6379/tcp")

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{string(port)},
			WaitingFor:   wait.ForListeningPort(port).WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func TestRedisThresholdStore(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisOptions{Addr: startRedis(t)})
	require.NoError(t, err)
	defer client.Close()

	s := NewRedisThresholdStore(client)

	got, err := s.Get(ctx, models.MetricTemperature)
	require.NoError(t, err)
	assert.Nil(t, got.Min)
	assert.Nil(t, got.Max)

	require.NoError(t, s.Put(ctx, models.MetricTemperature, models.Threshold{
		Min: models.Float(18),
		Max: models.Float(27.5),
	}))
	got, err = s.Get(ctx, models.MetricTemperature)
	require.NoError(t, err)
	require.NotNil(t, got.Min)
	require.NotNil(t, got.Max)
	assert.Equal(t, 18.0, *got.Min)
	assert.Equal(t, 27.5, *got.Max)

	// A later update without min clears it.
	require.NoError(t, s.Put(ctx, models.MetricTemperature, models.Threshold{Max: models.Float(30)}))
	got, err = s.Get(ctx, models.MetricTemperature)
	require.NoError(t, err)
	assert.Nil(t, got.Min)
	assert.Equal(t, 30.0, *got.Max)

	updatedAt, err := client.HGet(ctx, thresholdKey(models.MetricTemperature), fieldUpdatedAt).Result()
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, updatedAt)
	require.NoError(t, err)

	// Humidity is untouched.
	got, err = s.Get(ctx, models.MetricHumidity)
	require.NoError(t, err)
	assert.Nil(t, got.Min)
}

func TestRedisThresholdStoreCorruptValue(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisOptions{Addr: startRedis(t)})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.HSet(ctx, thresholdKey(models.MetricHumidity), fieldMin, "low").Err())

	_, err = NewRedisThresholdStore(client).Get(ctx, models.MetricHumidity)
	require.Error(t, err)
}
