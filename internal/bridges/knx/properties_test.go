package knx

import (
	"testing"

	"pgregory.net/rapid"
)

// TestProperty_GroupAddressRoundTrip checks that any address representable
// in the 5/3/8-bit layout survives a ToUint16/GroupAddressFromUint16 round
// trip, and that both three-level and two-level string forms parse back to
// the same 16-bit key they were formatted from.
func TestProperty_GroupAddressRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ga := GroupAddress{
			Main:   uint8(rapid.IntRange(0, maxMain3).Draw(rt, "main")),
			Middle: uint8(rapid.IntRange(0, maxMiddle3).Draw(rt, "middle")),
			Sub:    uint8(rapid.IntRange(0, maxSub3).Draw(rt, "sub")),
		}

		key := ga.ToUint16()
		if got := GroupAddressFromUint16(key); got != ga {
			t.Fatalf("GroupAddressFromUint16(ToUint16(%+v)) = %+v", ga, got)
		}

		SetAddressLevel(ThreeLevel)
		parsed, err := ParseGroupAddress(ga.String())
		if err != nil {
			t.Fatalf("ParseGroupAddress(%q) error = %v", ga.String(), err)
		}
		if parsed.ToUint16() != key {
			t.Fatalf("three-level round trip: %q -> key %d, want %d", ga.String(), parsed.ToUint16(), key)
		}

		SetAddressLevel(TwoLevel)
		parsed2, err := ParseGroupAddress(ga.String())
		if err != nil {
			t.Fatalf("ParseGroupAddress(%q) error = %v", ga.String(), err)
		}
		if parsed2.ToUint16() != key {
			t.Fatalf("two-level round trip: %q -> key %d, want %d", ga.String(), parsed2.ToUint16(), key)
		}
		SetAddressLevel(ThreeLevel)
	})
}

// TestProperty_DPT1RoundTrip checks that every bool survives EncodeDPT1/DecodeDPT1.
func TestProperty_DPT1RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Bool().Draw(rt, "value")
		got, err := DecodeDPT1(EncodeDPT1(v))
		if err != nil {
			t.Fatalf("DecodeDPT1() error = %v", err)
		}
		if got != v {
			t.Fatalf("DecodeDPT1(EncodeDPT1(%v)) = %v", v, got)
		}
	})
}

// TestProperty_DPT5RoundTrip checks EncodeDPT5/DecodeDPT5 round trips within
// tolerance: DPT 5.001 quantises percent to one of 256 steps, so the decoded
// value is only guaranteed to be close to the input, not bit-identical.
func TestProperty_DPT5RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Float64Range(0, 100).Draw(rt, "percent")
		got, err := DecodeDPT5(EncodeDPT5(v))
		if err != nil {
			t.Fatalf("DecodeDPT5() error = %v", err)
		}
		if diff := got - v; diff > 100.0/255.0+1e-9 || diff < -(100.0/255.0+1e-9) {
			t.Fatalf("DecodeDPT5(EncodeDPT5(%v)) = %v, outside quantisation tolerance", v, got)
		}
	})
}

// TestProperty_DPT9RoundTrip checks EncodeDPT9/DecodeDPT9 round trips within
// the format's documented precision (2 decimal digits across most of its range).
func TestProperty_DPT9RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Float64Range(-200, 200).Draw(rt, "value")
		data, err := EncodeDPT9(v)
		if err != nil {
			t.Fatalf("EncodeDPT9(%v) error = %v", v, err)
		}
		got, err := DecodeDPT9(data)
		if err != nil {
			t.Fatalf("DecodeDPT9() error = %v", err)
		}
		if diff := got - v; diff > 0.5 || diff < -0.5 {
			t.Fatalf("DecodeDPT9(EncodeDPT9(%v)) = %v, outside tolerance", v, got)
		}
	})
}

// TestProperty_DPT17RoundTrip checks every valid scene number survives
// EncodeDPT17/DecodeDPT17 exactly.
func TestProperty_DPT17RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		scene := uint8(rapid.IntRange(0, dpt17MaxScene).Draw(rt, "scene"))
		data, err := EncodeDPT17(scene)
		if err != nil {
			t.Fatalf("EncodeDPT17(%d) error = %v", scene, err)
		}
		got, err := DecodeDPT17(data)
		if err != nil {
			t.Fatalf("DecodeDPT17() error = %v", err)
		}
		if got != scene {
			t.Fatalf("DecodeDPT17(EncodeDPT17(%d)) = %d", scene, got)
		}
	})
}

// TestProperty_PriorityQueueDistribution checks that, with every class kept
// backlogged, one full round of Pop calls yields exactly distribution[i]
// items from class i — the weighted round-robin contract
// spec.md §3 and SPEC_FULL.md §9 describe.
func TestProperty_PriorityQueueDistribution(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var distribution [priorityCount]int
		total := 0
		for i := range distribution {
			distribution[i] = rapid.IntRange(0, 5).Draw(rt, "credit")
			total += distribution[i]
		}
		if total == 0 {
			distribution[0] = 1
			total = 1
		}

		q := NewPriorityQueue(distribution, 10_000)
		for class := Priority(0); int(class) < priorityCount; class++ {
			for i := 0; i < 20; i++ {
				q.Push(mkTransmission(class, byte(i)))
			}
		}

		var gotPerClass [priorityCount]int
		for i := 0; i < total; i++ {
			item, ok := q.Pop()
			if !ok {
				t.Fatal("Pop() ok = false mid-round")
			}
			gotPerClass[item.Frame.Priority]++
		}

		if gotPerClass != distribution {
			t.Fatalf("one round popped %v per class, want %v", gotPerClass, distribution)
		}
	})
}
