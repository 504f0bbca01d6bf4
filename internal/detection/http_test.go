package detection

import (
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/camwatch/internal/capture"
)

func TestHTTPDetector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "image/jpeg" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "camwatch/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		img, err := jpeg.Decode(r.Body)
		if err != nil || img.Bounds().Dx() != 64 {
			http.Error(w, "bad image", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detections":[{"label":"person","confidence":0.91,"box":[1,2,30,40]}]}`))
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, time.Second)
	frame := capture.NewFrame(image.NewRGBA(image.Rect(0, 0, 64, 48)), time.Now())

	dets, err := d.Infer(context.Background(), frame)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if len(dets) != 1 || dets[0].Label != "person" || dets[0].Box != (Box{1, 2, 30, 40}) {
		t.Fatalf("detections = %+v", dets)
	}
	if dets[0].Confidence == nil || *dets[0].Confidence != 0.91 {
		t.Errorf("confidence = %v", dets[0].Confidence)
	}
}

func TestHTTPDetectorErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	frame := capture.NewFrame(image.NewRGBA(image.Rect(0, 0, 8, 8)), time.Now())
	_, err := NewHTTPDetector(srv.URL, time.Second).Infer(context.Background(), frame)
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("err = %v", err)
	}
}

func TestHTTPDetectorBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"detections":`))
	}))
	defer srv.Close()

	frame := capture.NewFrame(image.NewRGBA(image.Rect(0, 0, 8, 8)), time.Now())
	if _, err := NewHTTPDetector(srv.URL, time.Second).Infer(context.Background(), frame); err == nil {
		t.Error("expected decode error")
	}
}
