package midi

import (
	"testing"

	"pgregory.net/rapid"
)

func TestPackedRoundTrip(t *testing.T) {
	packed := Packed(0x90, 60, 100)
	b0, b1, b2 := Unpack(packed)
	if b0 != 0x90 || b1 != 60 || b2 != 100 {
		t.Errorf("Unpack(Packed(0x90,60,100)) = %d,%d,%d", b0, b1, b2)
	}
}

func TestMessageLengthTable(t *testing.T) {
	cases := []struct {
		status uint8
		want   int
	}{
		{0x80, 3}, // Note Off
		{0x90, 3}, // Note On
		{0xB0, 3}, // Control Change
		{0xC0, 2}, // Program Change
		{0xD0, 2}, // Channel Pressure
		{0xE0, 3}, // Pitch Bend
		{0xF0, -1}, // SysEx
		{0xF8, 1}, // Clock
		{0xFA, 1}, // Start
		{0xFC, 1}, // Stop
	}
	for _, c := range cases {
		if got := MessageLength(c.status); got != c.want {
			t.Errorf("MessageLength(0x%02X) = %d, want %d", c.status, got, c.want)
		}
	}
}

func TestEventFromShortMessageNoteOn(t *testing.T) {
	ev, ok := EventFromShortMessage(Packed(0x91, 64, 100), 10)
	if !ok {
		t.Fatal("expected decode ok")
	}
	note, ok := ev.(NoteOnEvent)
	if !ok {
		t.Fatalf("expected NoteOnEvent, got %T", ev)
	}
	if note.Channel() != 1 || note.NoteNumber != 64 || note.Velocity != 100 || note.SampleOffset() != 10 {
		t.Errorf("unexpected decode: %+v", note)
	}
}

func TestNoteOnVelocityZeroIsNoteOff(t *testing.T) {
	ev, ok := EventFromShortMessage(Packed(0x90, 64, 0), 0)
	if !ok {
		t.Fatal("expected decode ok")
	}
	if _, isNoteOff := ev.(NoteOffEvent); !isNoteOff {
		t.Errorf("expected NoteOffEvent for velocity-0 note-on, got %T", ev)
	}
}

func TestShortMessageFromEventInverse(t *testing.T) {
	original := ControlChangeEvent{BaseEvent: BaseEvent{EventChannel: 3, Offset: 5}, Controller: CCVolume, Value: 90}
	packed, ok := ShortMessageFromEvent(original)
	if !ok {
		t.Fatal("expected encode ok")
	}
	decoded, ok := EventFromShortMessage(packed, 5)
	if !ok {
		t.Fatal("expected decode ok")
	}
	cc, ok := decoded.(ControlChangeEvent)
	if !ok {
		t.Fatalf("expected ControlChangeEvent, got %T", decoded)
	}
	if cc != original {
		t.Errorf("round trip mismatch: got %+v, want %+v", cc, original)
	}
}

// TestProperty_PitchBendRoundTrip checks that every representable pitch
// bend value survives an encode/decode round trip exactly.
func TestProperty_PitchBendRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		channel := uint8(rapid.IntRange(0, 15).Draw(t, "channel"))
		value := int16(rapid.IntRange(-8192, 8191).Draw(t, "value"))
		original := PitchBendEvent{BaseEvent: BaseEvent{EventChannel: channel, Offset: 0}, Value: value}

		packed, ok := ShortMessageFromEvent(original)
		if !ok {
			t.Fatal("expected encode ok")
		}
		decoded, ok := EventFromShortMessage(packed, 0)
		if !ok {
			t.Fatal("expected decode ok")
		}
		pb, ok := decoded.(PitchBendEvent)
		if !ok {
			t.Fatalf("expected PitchBendEvent, got %T", decoded)
		}
		if pb != original {
			t.Fatalf("round trip mismatch: got %+v, want %+v", pb, original)
		}
	})
}
