package opencv

import (
	"image"
	"math"

	"github.com/smazurov/camwatch/internal/detection"
)

// Model output layouts understood by the detector.
const (
	FormatSSD    = "ssd"
	FormatYOLOv8 = "yolov8"
)

// candidate is a decoded box before non-maximum suppression.
type candidate struct {
	classID int
	score   float32
	rect    image.Rectangle
}

// decodeSSD reads the [1, 1, N, 7] output of an SSD network. Each row is
// (image id, class id, score, x1, y1, x2, y2) with coordinates relative to
// the frame.
func decodeSSD(data []float32, frameW, frameH int, minScore float32) []candidate {
	var out []candidate
	w, h := float32(frameW), float32(frameH)
	for row := 0; row+7 <= len(data); row += 7 {
		score := data[row+2]
		if score < minScore {
			continue
		}
		out = append(out, candidate{
			classID: int(data[row+1]),
			score:   score,
			rect: image.Rect(
				int(data[row+3]*w), int(data[row+4]*h),
				int(data[row+5]*w), int(data[row+6]*h),
			),
		})
	}
	return out
}

// decodeYOLOv8 reads the [1, 4+classes, anchors] output of a YOLOv8 network.
// Boxes are center/size in input pixels and are scaled to the frame.
func decodeYOLOv8(data []float32, attrs, anchors int, scaleX, scaleY float64, minScore float32) []candidate {
	if attrs < 5 || len(data) < attrs*anchors {
		return nil
	}
	at := func(attr, anchor int) float32 { return data[attr*anchors+anchor] }

	var out []candidate
	for a := range anchors {
		best, bestScore := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := at(c, a); s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 || bestScore < minScore {
			continue
		}
		cx, cy := float64(at(0, a)), float64(at(1, a))
		bw, bh := float64(at(2, a)), float64(at(3, a))
		out = append(out, candidate{
			classID: best,
			score:   bestScore,
			rect: image.Rect(
				int(math.Round((cx-bw/2)*scaleX)), int(math.Round((cy-bh/2)*scaleY)),
				int(math.Round((cx+bw/2)*scaleX)), int(math.Round((cy+bh/2)*scaleY)),
			),
		})
	}
	return out
}

// toDetections converts the kept candidates.
func toDetections(cands []candidate, keep []int, labels []string) []detection.Detection {
	out := make([]detection.Detection, 0, len(keep))
	for _, i := range keep {
		c := cands[i]
		conf := float64(c.score)
		out = append(out, detection.Detection{
			Label:      labelFor(labels, c.classID),
			Confidence: &conf,
			Box: detection.Box{
				float64(c.rect.Min.X), float64(c.rect.Min.Y),
				float64(c.rect.Max.X), float64(c.rect.Max.Y),
			},
		})
	}
	return out
}
