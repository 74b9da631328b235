package record

// Schedule decides which frames of a recording session get written.
// Every Nth frame is written, starting with the first frame of the session.
type Schedule struct {
	counter int // Frames seen in the current session, or notRecording
}

const notRecording = -1

func NewSchedule() Schedule {
	return Schedule{counter: notRecording}
}

// Next advances the schedule by one frame, and returns true if that frame must be written.
// interval values below 1 are treated as 1.
func (s *Schedule) Next(recording bool, interval int) bool {
	if !recording {
		s.counter = notRecording
		return false
	}
	interval = max(interval, 1)
	if s.counter == notRecording {
		s.counter = 0
	} else {
		s.counter++
	}
	return s.counter%interval == 0
}

// InSession is true if the previous call to Next was made while recording
func (s *Schedule) InSession() bool {
	return s.counter != notRecording
}

// Frame is the index of the current frame within the session, or -1
func (s *Schedule) Frame() int {
	return s.counter
}
