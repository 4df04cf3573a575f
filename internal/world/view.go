package world

// Sighting is an object as it stood when its scope change was decided. The
// object may have moved, left its map or had its id recycled by the time the
// view handles the notification; the captured fields do not change.
type Sighting struct {
	Object    Locateable
	ID        ObjectID
	Kind      Kind
	Position  Point
	Direction Direction
	Name      string
}

// Sight captures obj's current identity and location.
func Sight(obj Locateable) Sighting {
	p := obj.placement()
	p.mu.RLock()
	s := Sighting{Object: obj, ID: p.id, Position: p.pos, Direction: p.dir}
	p.mu.RUnlock()
	s.Kind = obj.Kind()
	if n, ok := obj.(interface{ Name() string }); ok {
		s.Name = n.Name()
	}
	return s
}

func sightAll(objs []Locateable) []Sighting {
	out := make([]Sighting, len(objs))
	for i, o := range objs {
		out[i] = Sight(o)
	}
	return out
}

// View is the client-facing side of a watcher: the session that turns scope
// changes into protocol messages. Calls for one watcher are delivered in
// order and never concurrently, but may come from any goroutine.
type View interface {
	PlayersInScope(players []Sighting)
	NPCsInScope(npcs []Sighting)
	// ItemsDropped and MoneyDropped report drops entering scope. fresh is set
	// when the drop was just created in sight, as opposed to walked into.
	ItemsDropped(items []Sighting, fresh bool)
	MoneyDropped(money []Sighting, fresh bool)
	ObjectsOutOfScope(objs []Sighting)
	DropsDisappeared(drops []Sighting)
	ObjectMoved(obj Sighting, kind MoveKind)
}

// NopView discards everything. Embed it to implement only part of View.
type NopView struct{}

func (NopView) PlayersInScope([]Sighting)      {}
func (NopView) NPCsInScope([]Sighting)         {}
func (NopView) ItemsDropped([]Sighting, bool)  {}
func (NopView) MoneyDropped([]Sighting, bool)  {}
func (NopView) ObjectsOutOfScope([]Sighting)   {}
func (NopView) DropsDisappeared([]Sighting)    {}
func (NopView) ObjectMoved(Sighting, MoveKind) {}

// splitByKind groups sightings by Kind, preserving order within each group.
func splitByKind(objs []Sighting) map[Kind][]Sighting {
	out := make(map[Kind][]Sighting, 4)
	for _, o := range objs {
		out[o.Kind] = append(out[o.Kind], o)
	}
	return out
}
