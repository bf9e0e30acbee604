package chatlist

// Recorder observes engine activity. metrics.Engine implements it.
type Recorder interface {
	MeasurementReport(result string)
	Jump(result string)
	Invalidation(reason string, index int)
	Loaded(phase string, count int)
	PauseChanged(paused bool)
}

type nopRecorder struct{}

func (nopRecorder) MeasurementReport(string) {}
func (nopRecorder) Jump(string)              {}
func (nopRecorder) Invalidation(string, int) {}
func (nopRecorder) Loaded(string, int)       {}
func (nopRecorder) PauseChanged(bool)        {}
