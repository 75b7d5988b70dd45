package rwprobe

// nullReporter is a Null Object implementation of the Reporter interface.
// It is used when no reporter is configured, avoiding nil checks.
type nullReporter struct{}

func newNullReporter() Reporter {
	return nullReporter{}
}

// Report discards the sample.
func (nullReporter) Report(Sample) {}
