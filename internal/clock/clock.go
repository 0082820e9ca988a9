package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущее время
type Clock interface {
	Now() time.Time
}

// Real использует системное время
type Real struct{}

// Now возвращает текущее время в UTC
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake управляемые часы для тестов
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake создает часы, остановленные на t
func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC()}
}

// Now возвращает текущее значение часов
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance сдвигает часы вперед на d
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set устанавливает часы на t
func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
