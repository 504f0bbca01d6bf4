package broadcast

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/smazurov/camwatch/internal/detection"
)

func TestSubject(t *testing.T) {
	tests := map[string]string{
		"cam1":       "camwatch.events.cam1",
		"":           "camwatch.events._",
		"front.door": "camwatch.events.front_door",
		"a b*c>":     "camwatch.events.a_b_c_",
	}
	for id, want := range tests {
		if got := Subject(id); got != want {
			t.Errorf("Subject(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	in := detection.Event{
		Timestamp: 1700000000.25,
		CameraID:  "cam1",
		Boxes:     [][4]float64{{1, 2, 3, 4}},
		Labels:    []string{"person"},
	}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestEncodeWireFields(t *testing.T) {
	data, err := Encode(detection.Event{Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"timestamp":1`, `"boxes":[]`, `"labels":[]`} {
		if !strings.Contains(s, want) {
			t.Errorf("wire %s missing %s", s, want)
		}
	}
	for _, absent := range []string{"camera_id", "snapshot"} {
		if strings.Contains(s, absent) {
			t.Errorf("wire %s should omit %s", s, absent)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	mismatch := detection.Event{Boxes: [][4]float64{{1, 2, 3, 4}}}
	if _, err := Encode(mismatch); !errors.Is(err, ErrEncoding) {
		t.Errorf("mismatch err = %v, want ErrEncoding", err)
	}

	nan := detection.Event{Boxes: [][4]float64{{math.NaN(), 0, 1, 1}}, Labels: []string{"x"}}
	if _, err := Encode(nan); !errors.Is(err, ErrEncoding) {
		t.Errorf("NaN err = %v, want ErrEncoding", err)
	}
}

func TestDecodeTolerant(t *testing.T) {
	e, err := Decode([]byte(`{"timestamp": 12.5}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if e.Boxes == nil || e.Labels == nil || e.CameraID != "" {
		t.Errorf("decoded = %+v", e)
	}

	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for garbage")
	}
	if _, err := Decode([]byte(`{"boxes":[[1,2,3,4]],"labels":[]}`)); err == nil {
		t.Error("expected error for mismatched boxes and labels")
	}
}
