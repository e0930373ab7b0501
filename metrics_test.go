package cache

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	t.Run("lock traffic", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry(), "test")
		c := NewCache(
			WithLogger[string, int](quietLogger()),
			WithMetrics[string, int](metrics),
		)

		w1 := lockKey(t, c, "a", true)
		mgr, _ := c.manager("a")
		w2 := requestQueued(t, context.Background(), mgr, true)
		r1 := requestQueued(t, context.Background(), mgr, false)

		c.Unlock("a", w1.ID())
		c.Unlock("a", w2.wait(t).ID())
		r1.wait(t)

		assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LockRequests.WithLabelValues(modeWrite)))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LockRequests.WithLabelValues(modeRead)))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LockQueued.WithLabelValues(modeWrite)))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LockQueued.WithLabelValues(modeRead)))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LockPromotions.WithLabelValues(modeWrite)))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LockPromotions.WithLabelValues(modeRead)))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LockManagers))
	})
	t.Run("managers gauge follows delete and clear", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry(), "test")
		c := NewCache(
			WithLogger[string, int](quietLogger()),
			WithMetrics[string, int](metrics),
		)

		lockKey(t, c, "a", false)
		lockKey(t, c, "b", false)
		lockKey(t, c, "c", false)
		assert.Equal(t, 3.0, testutil.ToFloat64(metrics.LockManagers))

		c.Delete("a", false, NoLock)
		assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LockManagers))

		c.Clear()
		assert.Zero(t, testutil.ToFloat64(metrics.LockManagers))
	})
	t.Run("diagnostics", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry(), "test")
		c := NewCache(
			WithLogger[string, int](quietLogger()),
			WithMetrics[string, int](metrics),
		)

		c.Put("a", 1, true, NoLock)
		c.Unlock("a", 7)

		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Diagnostics.WithLabelValues("no_lock")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Diagnostics.WithLabelValues("invalid_unlock")))
	})
	t.Run("nil metrics", func(t *testing.T) {
		var metrics *Metrics
		assert.NotPanics(t, func() {
			metrics.requested(true)
			metrics.diagnosed("no_lock")
			metrics.managersRemoved(2)
		})
	})
}
