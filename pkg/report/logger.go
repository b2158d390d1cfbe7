package report

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Observer receives outcomes for metrics. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveMerge(date string, bunches int, err error)
	ObserveSubmit(date string, outcome string)
}

// Submit outcomes passed to Observer.ObserveSubmit.
const (
	OutcomeSent        = "sent"
	OutcomeAlreadySent = "already_sent"
	OutcomeRejected    = "rejected"
	OutcomeFailed      = "failed"
)

type nopObserver struct{}

func (nopObserver) ObserveMerge(string, int, error) {}
func (nopObserver) ObserveSubmit(string, string)    {}
