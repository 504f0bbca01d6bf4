// Package opencv provides OpenCV-backed collaborators: a capture Opener, a
// DNN object detector and a desktop window sink. The implementations need
// the gocv build tag and a system OpenCV installation.
package opencv
