package events

import (
	"fmt"
	"testing"
)

func TestRingEvictsOldest(t *testing.T) {
	ring := NewRing(3)
	for i := 0; i < 5; i++ {
		ring.Emit(Event{Type: fmt.Sprintf("evt.%d", i)})
	}
	got := ring.Events()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, evt := range got {
		want := fmt.Sprintf("evt.%d", i+2)
		if evt.Type != want {
			t.Fatalf("event %d = %s, want %s", i, evt.Type, want)
		}
	}
}

func TestRingClonesAttributes(t *testing.T) {
	ring := NewRing(4)
	ring.Emit(Event{Type: "evt", Attributes: map[string]string{"k": "v"}})

	first := ring.Events()
	first[0].Attributes["k"] = "mutated"

	second := ring.Events()
	if second[0].Attributes["k"] != "v" {
		t.Fatalf("stored event mutated: %q", second[0].Attributes["k"])
	}
}

type countingEmitter struct {
	count int
}

func (c *countingEmitter) Emit(Event) { c.count++ }

func TestFanoutReachesAllSinks(t *testing.T) {
	a := &countingEmitter{}
	b := &countingEmitter{}
	fan := Fanout{a, b, NoopEmitter{}}
	fan.Emit(Event{Type: "evt"})
	fan.Emit(Event{Type: "evt"})
	if a.count != 2 || b.count != 2 {
		t.Fatalf("counts = %d/%d, want 2/2", a.count, b.count)
	}
}
