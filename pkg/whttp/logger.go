package whttp

import "github.com/sirupsen/logrus"

// LeveledLogger is the retryablehttp.LeveledLogger contract.
type LeveledLogger interface {
	Error(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// LogrusAdapter sends retryablehttp's chatter to logrus at debug level,
// keeping warnings and errors at their own level.
type LogrusAdapter struct {
	Log *logrus.Logger
}

func (l LogrusAdapter) entry(kv []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return l.Log.WithFields(fields)
}

func (l LogrusAdapter) Error(msg string, kv ...interface{}) { l.entry(kv).Error(msg) }
func (l LogrusAdapter) Info(msg string, kv ...interface{})  { l.entry(kv).Debug(msg) }
func (l LogrusAdapter) Debug(msg string, kv ...interface{}) { l.entry(kv).Debug(msg) }
func (l LogrusAdapter) Warn(msg string, kv ...interface{})  { l.entry(kv).Warn(msg) }
