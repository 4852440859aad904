package intercom

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController() *Controller {
	changes := NewBroadcaster[State](DefaultChannelCapacity)
	return NewController(NewEngine(changes), changes)
}

func TestController_ApplyReturnsState(t *testing.T) {
	c := newTestController()

	assert.Equal(t, StateSetup, c.Apply(SetupTaskDone(TaskNetworkInterface)))
	assert.Equal(t, []SetupTask{TaskServo}, c.PendingSetupTasks())
	assert.Equal(t, StateWaiting, c.Apply(SetupTaskDone(TaskServo)))
	assert.Equal(t, StateMoving, c.Apply(RequestOpen()))
	assert.Equal(t, StateMoving, c.State())
	assert.Equal(t, Angle(0), c.InactiveAngle())
	assert.Equal(t, Angle(30), c.ActiveAngle())
}

func TestController_SubscribeSeesEveryChange(t *testing.T) {
	c := newTestController()
	sub := c.Subscribe()
	defer sub.Close()

	c.Apply(SetupTaskDone(TaskServo))
	c.Apply(SetupTaskDone(TaskNetworkInterface))
	c.Apply(RequestOpen())
	c.Apply(ButtonPressed()) // unhandled while moving
	c.Apply(OpenMotionComplete())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []State
	for range 3 {
		s, err := sub.Recv(ctx)
		require.NoError(t, err)
		got = append(got, s)
	}
	assert.Equal(t, []State{StateWaiting, StateMoving, StateWaiting}, got)
	assert.Equal(t, 0, sub.Len())
}

func TestController_ConcurrentProducers(t *testing.T) {
	c := newTestController()
	c.Apply(SetupTaskDone(TaskServo))
	c.Apply(SetupTaskDone(TaskNetworkInterface))

	sub := c.Subscribe()
	defer sub.Close()

	// Each producer sends three presses; the ring returns to Waiting after
	// every multiple of three, regardless of interleaving.
	const producers = 30
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 3 {
				c.Apply(ButtonPressed())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, StateWaiting, c.State())
	assert.Equal(t, producers*3, sub.Len())
}
