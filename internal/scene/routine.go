package scene

import (
	"time"

	"github.com/loov/hrtime"
)

// Routine is the scene driver the main loop runs.
type Routine interface {
	// Awake builds entities. No GPU exists yet.
	Awake(w *World) error
	// Start runs once the renderer is up, before the first frame.
	Start(w *World) error
	// Update runs once per frame before drawing.
	Update(w *World) error
	// End runs after the device is idle, before entities are destroyed.
	End(w *World)
}

// Clock tracks seconds since Start and since the previous Tick.
type Clock struct {
	Time  float32
	Delta float32

	now   func() time.Duration
	start time.Duration
	prev  time.Duration
}

func NewClock() *Clock {
	return &Clock{now: hrtime.Now}
}

func (c *Clock) Start() {
	c.start = c.now()
	c.prev = c.start
	c.Time, c.Delta = 0, 0
}

func (c *Clock) Tick() {
	cur := c.now()
	c.Time = float32((cur - c.start).Seconds())
	c.Delta = float32((cur - c.prev).Seconds())
	c.prev = cur
}
