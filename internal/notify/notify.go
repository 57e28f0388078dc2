// Package notify renders and presents the ongoing "steps today" status.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

const Title = "Step Counter Active"

// Notification is the persistent status shown while tracking.
type Notification struct {
	Title string
	Body  string
	Steps int64
	Goal  int64
}

func Render(steps, goal int64) Notification {
	return Notification{
		Title: Title,
		Body:  fmt.Sprintf("Steps today: %d / %d", steps, goal),
		Steps: steps,
		Goal:  goal,
	}
}

// Presenter shows a notification. A failure is reported to the caller,
// which retries on the next lifecycle event.
type Presenter interface {
	Present(n Notification) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Present(Notification) error { return nil }

// TermPresenter writes a colored one-line status.
type TermPresenter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTermPresenter(out io.Writer) *TermPresenter {
	return &TermPresenter{out: out}
}

func (p *TermPresenter) Present(n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	title := color.New(color.FgCyan, color.Bold).Sprint(n.Title)
	body := n.Body
	if n.Goal > 0 && n.Steps >= n.Goal {
		body = color.GreenString(body)
	}
	_, err := fmt.Fprintf(p.out, "%s  %s\n", title, body)
	return err
}

// Throttle decides whether an update is worth presenting: the first one,
// then after EverySteps more steps or Interval elapsed.
type Throttle struct {
	EverySteps int64
	Interval   time.Duration

	shown     bool
	lastSteps int64
	lastAt    time.Time
}

func (t *Throttle) Allow(steps int64, now time.Time) bool {
	if !t.shown ||
		steps-t.lastSteps >= t.EverySteps ||
		steps < t.lastSteps ||
		now.Sub(t.lastAt) >= t.Interval {
		t.shown = true
		t.lastSteps = steps
		t.lastAt = now
		return true
	}
	return false
}

// Reset makes the next Allow return true.
func (t *Throttle) Reset() {
	t.shown = false
}
