package world

import "time"

// Expirable objects disappear on their own after a deadline.
type Expirable interface {
	Locateable
	// ExpiresAt returns the deadline; the zero time means never.
	ExpiresAt() time.Time
}

// DroppedItem is an item lying on the ground. Not persisted; it exists only
// in memory.
type DroppedItem struct {
	Placement
	ItemID  int32
	Count   int32
	Owner   int64 // CharID of the dropper, 0 = anyone can pick up
	expires time.Time
}

// NewDroppedItem creates an item drop at p. ttl <= 0 makes it permanent.
func NewDroppedItem(itemID, count int32, p Point, ttl time.Duration, now time.Time) *DroppedItem {
	d := &DroppedItem{ItemID: itemID, Count: count, expires: deadline(now, ttl)}
	d.SetPosition(p)
	return d
}

func (d *DroppedItem) Kind() Kind           { return KindDroppedItem }
func (d *DroppedItem) ExpiresAt() time.Time { return d.expires }

// DroppedMoney is a pile of money lying on the ground.
type DroppedMoney struct {
	Placement
	Amount  uint32
	expires time.Time
}

func NewDroppedMoney(amount uint32, p Point, ttl time.Duration, now time.Time) *DroppedMoney {
	d := &DroppedMoney{Amount: amount, expires: deadline(now, ttl)}
	d.SetPosition(p)
	return d
}

func (d *DroppedMoney) Kind() Kind           { return KindDroppedMoney }
func (d *DroppedMoney) ExpiresAt() time.Time { return d.expires }

// Expired reports whether e is past its deadline at now.
func Expired(e Expirable, now time.Time) bool {
	t := e.ExpiresAt()
	return !t.IsZero() && !now.Before(t)
}

func deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
