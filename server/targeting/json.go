package targeting

import "encoding/json"

// DetectionsJSON encodes the qualifying detections as a JSON array ("[]" when there are none)
func DetectionsJSON(qualifying []ScoredDetection) string {
	if qualifying == nil {
		qualifying = []ScoredDetection{}
	}
	b, err := json.Marshal(qualifying)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ClosestJSON encodes the selected target as a JSON object, or "" when nothing was selected
func ClosestJSON(sel Selection) string {
	if sel.None() {
		return ""
	}
	b, err := json.Marshal(sel.Target)
	if err != nil {
		return ""
	}
	return string(b)
}
