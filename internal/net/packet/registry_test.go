package packet

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestDispatchChecksState(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	var got []Command
	reg.Register(OpWalk, []SessionState{StateInWorld}, func(_ any, cmd Command) {
		got = append(got, cmd)
	})

	if err := reg.Dispatch(nil, StateHandshake, Command{Op: OpWalk}); err == nil {
		t.Fatal("walk accepted during handshake")
	}
	if err := reg.Dispatch(nil, StateInWorld, Command{Op: OpWalk, X: 3, Y: 4}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].X != 3 || got[0].Y != 4 {
		t.Fatalf("handler calls = %+v", got)
	}
}

func TestDispatchUnknownAndEmpty(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	if err := reg.Dispatch(nil, StateInWorld, Command{Op: "dance"}); err != nil {
		t.Fatalf("unknown op: %v", err)
	}
	if err := reg.Dispatch(nil, StateInWorld, Command{}); !errors.Is(err, ErrEmptyOp) {
		t.Fatalf("empty op: %v", err)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	reg.Register(OpStop, []SessionState{StateInWorld}, func(any, Command) { panic("boom") })
	if err := reg.Dispatch(nil, StateInWorld, Command{Op: OpStop}); err == nil {
		t.Fatal("panic not reported as error")
	}
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"op":"warp","dest":"town"}`))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Op != OpWarp || cmd.Dest != "town" {
		t.Fatalf("got %+v", cmd)
	}
	if _, err := DecodeCommand([]byte(`[`)); err == nil {
		t.Fatal("garbage decoded")
	}
}
