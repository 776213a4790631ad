package drm

import (
	"encoding/binary"
	"testing"
)

func vblankRecord(typ uint32, userData uint64, seq uint32) []byte {
	rec := make([]byte, vblankEventSize)
	binary.NativeEndian.PutUint32(rec[0:], typ)
	binary.NativeEndian.PutUint32(rec[4:], vblankEventSize)
	binary.NativeEndian.PutUint64(rec[8:], userData)
	binary.NativeEndian.PutUint32(rec[16:], 12)
	binary.NativeEndian.PutUint32(rec[20:], 500)
	binary.NativeEndian.PutUint32(rec[24:], seq)
	binary.NativeEndian.PutUint32(rec[28:], 41)
	return rec
}

func TestParseEvents(t *testing.T) {
	buf := append(vblankRecord(EventVblank, 3, 100), vblankRecord(EventFlipComplete, 7, 101)...)

	events, err := ParseEvents(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventVblank || events[0].UserData != 3 || events[0].Sequence != 100 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	flip := events[1]
	if flip.Type != EventFlipComplete || flip.UserData != 7 || flip.CrtcID != 41 || flip.Usec != 500 {
		t.Fatalf("unexpected flip event: %+v", flip)
	}
}

func TestParseEvents_UnknownTypeKeepsHeader(t *testing.T) {
	rec := make([]byte, 16)
	binary.NativeEndian.PutUint32(rec[0:], 0x80000000)
	binary.NativeEndian.PutUint32(rec[4:], 16)

	events, err := ParseEvents(rec)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 || events[0].Type != 0x80000000 || events[0].UserData != 0 {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestParseEvents_Malformed(t *testing.T) {
	good := vblankRecord(EventFlipComplete, 1, 1)

	bad := make([]byte, 8)
	binary.NativeEndian.PutUint32(bad[0:], EventVblank)
	binary.NativeEndian.PutUint32(bad[4:], 4)

	tests := []struct {
		name string
		buf  []byte
		want int
	}{
		{name: "short header", buf: append(append([]byte{}, good...), 1, 2, 3), want: 1},
		{name: "length below header", buf: bad, want: 0},
		{name: "length past buffer", buf: good[:20], want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := ParseEvents(tt.buf)
			if err == nil {
				t.Fatalf("expected error")
			}
			if len(events) != tt.want {
				t.Fatalf("expected %d decoded events before the error, got %d", tt.want, len(events))
			}
		})
	}
}
