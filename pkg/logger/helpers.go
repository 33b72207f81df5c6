package logger

// Activity events recorded in the download log
const (
	EventDiscovered   = "discovered"
	EventPageScanned  = "page_scanned"
	EventAttempt      = "attempt"
	EventComplete     = "complete"
	EventFailed       = "failed"
	EventExhausted    = "retry_exhausted"
	EventDemoted      = "demoted"
	EventAdopted      = "adopted"
	EventReauthorize  = "reauthorize"
	EventVerification = "verification"
)

// LogActivity records one state machine event. Failures and exhaustion are
// written at warn level so they stand out on the console.
func LogActivity(l Logger, event, msg string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["event"] = event

	switch event {
	case EventFailed, EventExhausted, EventDemoted:
		l.WarnWithFields(msg, merged)
	case EventPageScanned, EventAttempt:
		l.DebugWithFields(msg, merged)
	default:
		l.InfoWithFields(msg, merged)
	}
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
