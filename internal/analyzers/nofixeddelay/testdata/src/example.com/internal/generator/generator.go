package generator

import (
	"context"
	"time"
)

func fixedDelay(rate float64) {
	for i := 0; i < 3; i++ {
		time.Sleep(time.Duration(float64(time.Second) / rate)) // want "do not use time.Sleep in scheduling code"
	}
}

func deadline(ctx context.Context, start time.Time, counter int, rate float64) {
	next := start.Add(time.Duration(float64(counter) / rate * float64(time.Second)))
	t := time.NewTimer(time.Until(next))
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type clock struct{}

func (clock) Sleep(time.Duration) {}

func methodNamedSleep(c clock) {
	c.Sleep(time.Second)
}
