package event

// World events. Object carries the placed object itself; subscribers type
// switch on it when they need more than the id.

type ObjectPlaced struct {
	MapID    uint16
	ObjectID uint16
	Kind     string
	X, Y     uint8
	Object   any
}

type ObjectRemoved struct {
	MapID    uint16
	ObjectID uint16
	Kind     string
	X, Y     uint8
	Object   any
}

type DropExpired struct {
	MapID    uint16
	ObjectID uint16
	Object   any
}

type PlayerEntered struct {
	CharID int64
	Name   string
	MapID  uint16
}

type PlayerLeft struct {
	CharID int64
	Name   string
	MapID  uint16
}
