package nn

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelTable(t *testing.T) {
	require.NoError(t, os.WriteFile("test-labels.txt", []byte("BACKGROUND\nRedCargo\n  BlueCargo \n\n\n"), 0644))
	defer os.Remove("test-labels.txt")

	labels, err := LoadLabelTable("test-labels.txt")
	require.NoError(t, err)
	require.Equal(t, LabelTable{"BACKGROUND", "RedCargo", "BlueCargo"}, labels)

	l, err := labels.Label(2)
	require.NoError(t, err)
	require.Equal(t, "BlueCargo", l)

	_, err = labels.Label(3)
	require.ErrorIs(t, err, ErrUnknownClass)
	_, err = labels.Label(-1)
	require.ErrorIs(t, err, ErrUnknownClass)

	require.Equal(t, 1, labels.IndexOf("RedCargo"))
	require.Equal(t, -1, labels.IndexOf("redcargo"))
}

func TestLabelTableKeepsClassIDs(t *testing.T) {
	require.NoError(t, os.WriteFile("test-labels-gap.txt", []byte("BACKGROUND\n\nRedCargo\nBlueCargo\n"), 0644))
	defer os.Remove("test-labels-gap.txt")

	labels, err := LoadLabelTable("test-labels-gap.txt")
	require.NoError(t, err)
	require.Len(t, labels, 4)
	l, err := labels.Label(1)
	require.NoError(t, err)
	require.Equal(t, "", l)
	l, err = labels.Label(2)
	require.NoError(t, err)
	require.Equal(t, "RedCargo", l)
	l, err = labels.Label(3)
	require.NoError(t, err)
	require.Equal(t, "BlueCargo", l)
}

func TestRectGeometry(t *testing.T) {
	a := Rect{Left: 0, Top: 0, Right: 10, Bottom: 10}
	b := Rect{Left: 5, Top: 0, Right: 15, Bottom: 10}
	require.Equal(t, float32(100), a.Area())
	require.Equal(t, Point{X: 5, Y: 5}, a.Center())
	require.InDelta(t, 50.0/150.0, a.IOU(b), 1e-6)
	require.Equal(t, float32(0), a.IOU(Rect{Left: 20, Top: 20, Right: 30, Bottom: 30}))
	require.Equal(t, Rect{Left: 0, Top: 0, Right: 8, Bottom: 10}, Rect{Left: -5, Top: 0, Right: 12, Bottom: 10}.Clip(8, 10))
	require.InDelta(t, 5.0, Point{X: 0, Y: 0}.Distance(Point{X: 3, Y: 4}), 1e-6)
}

func TestSuppressOverlaps(t *testing.T) {
	dets := []RawDetection{
		{ClassID: 1, Confidence: 0.6, Box: Rect{Left: 0, Top: 0, Right: 10, Bottom: 10}},
		{ClassID: 1, Confidence: 0.9, Box: Rect{Left: 1, Top: 1, Right: 11, Bottom: 11}},
		{ClassID: 2, Confidence: 0.5, Box: Rect{Left: 0, Top: 0, Right: 10, Bottom: 10}},
		{ClassID: 1, Confidence: 0.7, Box: Rect{Left: 50, Top: 50, Right: 60, Bottom: 60}},
	}
	kept := SuppressOverlaps(dets, DefaultNmsIouThreshold)
	require.Len(t, kept, 3)
	require.Equal(t, float32(0.9), kept[0].Confidence)
	require.Equal(t, 2, kept[1].ClassID)
	require.Equal(t, float32(0.7), kept[2].Confidence)
}
