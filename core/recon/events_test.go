package recon

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDispatcher_DeliversToAllListeners(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var mu sync.Mutex
	counts := make(map[string]int)
	for _, name := range []string{"a", "b"} {
		name := name
		d.Subscribe(func(engineID, message string) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		})
	}

	d.Publish("engine-1", "matching started")
	d.Publish("engine-1", "run completed")
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 2, counts["b"])
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	// A listener stuck on the first event backs the queue up.
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Subscribe(func(engineID, message string) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
	})

	d.Publish("engine-1", "first")
	<-started

	dropped := 0
	for i := 0; i < defaultQueueSize+10; i++ {
		if !d.Publish("engine-1", "flood") {
			dropped++
		}
	}
	assert.Greater(t, dropped, 0)
	assert.Equal(t, int64(dropped), d.Dropped())

	close(block)
	d.Close()
}

func TestDispatcher_PublishNeverBlocks(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	block := make(chan struct{})
	defer close(block)
	d.Subscribe(func(engineID, message string) { <-block })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultQueueSize*3; i++ {
			d.Publish("engine-1", "burst")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow listener")
	}
}
