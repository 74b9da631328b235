package nn

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrUnknownClass = errors.New("unknown class")

// LabelTable maps a class id to its label.
// It is loaded once at startup and never modified.
type LabelTable []string

// Load a text file with one class name per line. Trailing empty lines are ignored.
func LoadLabelTable(filename string) (LabelTable, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	// The line number is the class id, so blank lines inside the file are kept as empty labels
	labels := LabelTable{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	for len(labels) != 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("Error reading labels from %v: %w", filename, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("No labels found in %v", filename)
	}
	return labels, nil
}

// Label returns the label of classID, or ErrUnknownClass
func (t LabelTable) Label(classID int) (string, error) {
	if classID < 0 || classID >= len(t) {
		return "", fmt.Errorf("%w: class id %v is outside of label table (%v labels)", ErrUnknownClass, classID, len(t))
	}
	return t[classID], nil
}

// IndexOf returns the class id of label, or -1
func (t LabelTable) IndexOf(label string) int {
	for i, l := range t {
		if l == label {
			return i
		}
	}
	return -1
}
