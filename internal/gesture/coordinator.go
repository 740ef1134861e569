// Package gesture turns raw pointer/touch input into reorder intents.
//
// A press becomes a drag only once it has been held for the activation delay
// and then moved past the movement tolerance. A press released before that is
// a tap. A press that travels past the tolerance before the delay elapses is
// treated as a scroll and produces nothing.
package gesture

import (
	"math"
	"time"
)

const (
	// DefaultActivationDelay is how long a press must be held before it can
	// become a drag.
	DefaultActivationDelay = 200 * time.Millisecond
	// DefaultTolerance is the distance in pixels a pointer may travel before
	// the press counts as movement.
	DefaultTolerance = 5.0
)

// Config holds the activation thresholds.
type Config struct {
	ActivationDelay time.Duration `yaml:"activation_delay"`
	Tolerance       float64       `yaml:"movement_tolerance"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{ActivationDelay: DefaultActivationDelay, Tolerance: DefaultTolerance}
}

func (c Config) withDefaults() Config {
	if c.ActivationDelay <= 0 {
		c.ActivationDelay = DefaultActivationDelay
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	return c
}

// Point is a pointer position in pixels.
type Point struct {
	X, Y float64
}

func (p Point) dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Event is one pointer input. It is implemented by Press, Move, Release and Abort.
type Event interface {
	isEvent()
}

// Press starts a gesture on the item with the given id.
type Press struct {
	ID    string
	Point Point
	At    time.Time
}

// Move reports the pointer position.
type Move struct {
	Point Point
	At    time.Time
}

// Release ends the gesture. TargetID is the item under the pointer, or empty
// when the pointer is outside every drop target.
type Release struct {
	TargetID string
	At       time.Time
}

// Abort cancels the gesture (pointer cancel, escape key).
type Abort struct{}

func (Press) isEvent()   {}
func (Move) isEvent()    {}
func (Release) isEvent() {}
func (Abort) isEvent()   {}

// Handler receives the intents.
type Handler interface {
	DragStart(id string)
	DragEnd(sourceID, targetID string)
	DragCancel()
	Tap(id string)
}

type phase int

const (
	idle phase = iota
	pressed
	dragging
	abandoned
)

// Coordinator is a small state machine over one gesture at a time.
// It is not safe for concurrent use.
type Coordinator struct {
	cfg     Config
	handler Handler

	phase   phase
	id      string
	origin  Point
	pressAt time.Time
}

// NewCoordinator returns a Coordinator emitting to h. Zero config fields use
// the defaults.
func NewCoordinator(cfg Config, h Handler) *Coordinator {
	return &Coordinator{cfg: cfg.withDefaults(), handler: h}
}

// Config returns the effective thresholds.
func (c *Coordinator) Config() Config { return c.cfg }

// Dragging returns the id being dragged, if any.
func (c *Coordinator) Dragging() (string, bool) {
	return c.id, c.phase == dragging
}

// Handle advances the state machine with ev.
func (c *Coordinator) Handle(ev Event) {
	switch e := ev.(type) {
	case Press:
		if c.phase == dragging {
			// A second pointer while dragging; the first gesture wins.
			return
		}
		c.phase = pressed
		c.id = e.ID
		c.origin = e.Point
		c.pressAt = e.At
	case Move:
		c.move(e)
	case Release:
		c.release(e)
	case Abort:
		if c.phase == dragging {
			c.handler.DragCancel()
		}
		c.reset()
	}
}

func (c *Coordinator) move(e Move) {
	if c.phase != pressed {
		return
	}
	if e.Point.dist(c.origin) <= c.cfg.Tolerance {
		return
	}
	if e.At.Sub(c.pressAt) < c.cfg.ActivationDelay {
		c.phase = abandoned
		return
	}
	c.phase = dragging
	c.handler.DragStart(c.id)
}

func (c *Coordinator) release(e Release) {
	switch c.phase {
	case pressed:
		c.handler.Tap(c.id)
	case dragging:
		if e.TargetID == "" || e.TargetID == c.id {
			c.handler.DragCancel()
		} else {
			c.handler.DragEnd(c.id, e.TargetID)
		}
	}
	c.reset()
}

func (c *Coordinator) reset() {
	c.phase = idle
	c.id = ""
	c.origin = Point{}
	c.pressAt = time.Time{}
}
