package unread

import (
	"context"
	"errors"
	"testing"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/conv"
	"github.com/quailchat/quail/internal/readstate"
)

var viewer = api.User{ID: 1, Username: "alice"}

func msgFrom(id int64, sender string) api.Message {
	return api.Message{ID: id, Sender: api.UserRef{Username: sender}, Content: "hi"}
}

func TestCount(t *testing.T) {
	msgs := []api.Message{
		msgFrom(101, "bob"),
		msgFrom(102, "alice"),
		msgFrom(103, "bob"),
		msgFrom(104, "bob"),
	}

	tests := []struct {
		name        string
		msgs        []api.Message
		lastRead    int64
		hasLastRead bool
		want        int
	}{
		{"no read state counts all foreign", msgs, 0, false, 3},
		{"own messages never count", []api.Message{msgFrom(1, "alice"), msgFrom(2, "alice")}, 0, false, 0},
		{"read up to 103", msgs, 103, true, 1},
		{"read past the end", msgs, 104, true, 0},
		{"read mid-list", msgs, 101, true, 2},
		{"empty list", nil, 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.msgs, viewer, tt.lastRead, tt.hasLastRead); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestCountNeverBelowLastRead pins the invariant that a message at or below
// the read position is never unread, regardless of sender.
func TestCountNeverBelowLastRead(t *testing.T) {
	msgs := []api.Message{msgFrom(50, "bob"), msgFrom(60, "carol")}
	if got := Count(msgs, viewer, 60, true); got != 0 {
		t.Errorf("Count() = %d with everything read, want 0", got)
	}
}

type fakeStates struct {
	lastRead map[string]int64
	err      error
}

func (f *fakeStates) LastRead(key readstate.Key) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	v, ok := f.lastRead[key.String()]
	return v, ok, nil
}

type fakeConv struct {
	key  readstate.Key
	msgs []api.Message
	err  error
}

func (f *fakeConv) Key() readstate.Key { return f.key }
func (f *fakeConv) Title() string      { return f.key.String() }
func (f *fakeConv) FetchMessages(ctx context.Context, viewer string) ([]api.Message, error) {
	return f.msgs, f.err
}
func (f *fakeConv) Send(ctx context.Context, viewer string, out conv.Outgoing) (*api.Message, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeConv) Includes(u api.User) bool { return false }

func TestScan(t *testing.T) {
	states := &fakeStates{lastRead: map[string]int64{"direct:2": 101}}
	e := NewEngine(states, viewer, nil)

	bob := &fakeConv{key: readstate.DirectKey(2), msgs: []api.Message{
		msgFrom(101, "bob"), msgFrom(102, "bob"), msgFrom(103, "alice"),
	}}
	team := &fakeConv{key: readstate.GroupKey(1), msgs: []api.Message{
		msgFrom(201, "carol"),
	}}

	e.Scan(context.Background(), []conv.Conversation{bob, team}, nil)

	if got := e.CountFor(readstate.DirectKey(2)); got != 1 {
		t.Errorf("direct count = %d, want 1", got)
	}
	if got := e.CountFor(readstate.GroupKey(1)); got != 1 {
		t.Errorf("group count = %d, want 1", got)
	}
}

func TestScanIdempotent(t *testing.T) {
	states := &fakeStates{lastRead: map[string]int64{}}
	e := NewEngine(states, viewer, nil)
	c := &fakeConv{key: readstate.DirectKey(2), msgs: []api.Message{msgFrom(101, "bob")}}

	ctx := context.Background()
	e.Scan(ctx, []conv.Conversation{c}, nil)
	first := e.CountFor(c.key)
	e.Scan(ctx, []conv.Conversation{c}, nil)
	second := e.CountFor(c.key)

	if first != second {
		t.Errorf("repeated scan changed count: %d then %d", first, second)
	}
}

func TestScanDropsDepartedConversations(t *testing.T) {
	states := &fakeStates{lastRead: map[string]int64{}}
	e := NewEngine(states, viewer, nil)

	bob := &fakeConv{key: readstate.DirectKey(2), msgs: []api.Message{msgFrom(101, "bob")}}
	team := &fakeConv{key: readstate.GroupKey(1), msgs: []api.Message{msgFrom(201, "carol")}}

	ctx := context.Background()
	e.Scan(ctx, []conv.Conversation{bob, team}, nil)
	if got := e.CountFor(team.key); got != 1 {
		t.Fatalf("group count = %d, want 1", got)
	}

	// The group left the roster; its stale count must not linger.
	e.Scan(ctx, []conv.Conversation{bob}, nil)
	if got := e.CountFor(team.key); got != 0 {
		t.Errorf("departed group count = %d, want 0", got)
	}
	if _, ok := e.Counts()[team.key.String()]; ok {
		t.Error("departed conversation still present in Counts()")
	}
	if got := e.CountFor(bob.key); got != 1 {
		t.Errorf("remaining conversation count = %d, want 1", got)
	}
}

func TestScanSkipsActive(t *testing.T) {
	states := &fakeStates{lastRead: map[string]int64{}}
	e := NewEngine(states, viewer, nil)

	active := &fakeConv{key: readstate.DirectKey(2), msgs: []api.Message{msgFrom(101, "bob")}}
	activeKey := active.Key()
	e.Zero(activeKey)

	e.Scan(context.Background(), []conv.Conversation{active}, &activeKey)

	if got := e.CountFor(activeKey); got != 0 {
		t.Errorf("active conversation count = %d, want 0", got)
	}
}

func TestScanFetchFailureKeepsPreviousCount(t *testing.T) {
	states := &fakeStates{lastRead: map[string]int64{}}
	e := NewEngine(states, viewer, nil)

	bob := &fakeConv{key: readstate.DirectKey(2), msgs: []api.Message{msgFrom(101, "bob"), msgFrom(102, "bob")}}
	carol := &fakeConv{key: readstate.DirectKey(3), msgs: []api.Message{msgFrom(201, "carol")}}

	ctx := context.Background()
	e.Scan(ctx, []conv.Conversation{bob, carol}, nil)

	// Bob's fetch starts failing; Carol gains a message. The failing
	// conversation keeps its count and must not block the healthy one.
	bob.err = errors.New("backend down")
	carol.msgs = append(carol.msgs, msgFrom(202, "carol"))
	e.Scan(ctx, []conv.Conversation{bob, carol}, nil)

	if got := e.CountFor(bob.key); got != 2 {
		t.Errorf("failing conversation count = %d, want previous 2", got)
	}
	if got := e.CountFor(carol.key); got != 2 {
		t.Errorf("healthy conversation count = %d, want 2", got)
	}
}

func TestScanReadStateErrorSkips(t *testing.T) {
	states := &fakeStates{lastRead: map[string]int64{}}
	e := NewEngine(states, viewer, nil)
	c := &fakeConv{key: readstate.DirectKey(2), msgs: []api.Message{msgFrom(101, "bob")}}

	ctx := context.Background()
	e.Scan(ctx, []conv.Conversation{c}, nil)
	if got := e.CountFor(c.key); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}

	states.err = errors.New("database locked")
	c.msgs = append(c.msgs, msgFrom(102, "bob"))
	e.Scan(ctx, []conv.Conversation{c}, nil)

	if got := e.CountFor(c.key); got != 1 {
		t.Errorf("count = %d after read-state error, want previous 1", got)
	}
}

func TestZeroAndReset(t *testing.T) {
	states := &fakeStates{lastRead: map[string]int64{}}
	e := NewEngine(states, viewer, nil)
	c := &fakeConv{key: readstate.DirectKey(2), msgs: []api.Message{msgFrom(101, "bob")}}

	e.Scan(context.Background(), []conv.Conversation{c}, nil)
	e.Zero(c.key)
	if got := e.CountFor(c.key); got != 0 {
		t.Errorf("count after Zero = %d, want 0", got)
	}

	e.Reset()
	if got := len(e.Counts()); got != 0 {
		t.Errorf("len(Counts()) after Reset = %d, want 0", got)
	}
}
