// Package vision implements the camera-driven sensor loop: object
// classification, threat categorization, evidence annotation, and the
// writes that feed the shared state store and the threat ledger.
package vision

import (
	"image"

	"borderd/internal/camera"
	"borderd/internal/ledger"
)

// COCO class ids the detector is restricted to. Class 15 ("cat") stands
// in for the general animal category, as in the detection model this
// system ships with.
const (
	ClassPerson = 0
	ClassAnimal = 15
)

// Detection is one qualifying bounding box from a processed frame. It is
// never persisted; it is consumed immediately to update the ledger and
// annotate the frame.
type Detection struct {
	// Category is the mapped threat category.
	Category ledger.Category
	// Confidence in (0,1].
	Confidence float32
	// Box is the bounding box in frame pixel coordinates.
	Box image.Rectangle
}

// Detector classifies objects in a frame, restricted to the categories
// of interest. Implementations return every candidate box with its raw
// confidence; the loop applies the confidence gate.
type Detector interface {
	Detect(frame camera.Frame) ([]Detection, error)
}

// categoryForClass maps a classifier class id to a threat category.
// Unmapped classes are discarded by the caller.
func categoryForClass(classID int) (ledger.Category, bool) {
	switch classID {
	case ClassPerson:
		return ledger.CategoryHuman, true
	case ClassAnimal:
		return ledger.CategoryAnimal, true
	}
	return "", false
}
