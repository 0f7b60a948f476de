package dynamo

// Status is the outcome of a model call. Values are ordered by severity.
type Status int

const (
	StatusOK Status = iota
	StatusDiscard
	StatusWarning
	StatusError
	StatusFatal
)

var statusNames = [...]string{"OK", "Discard", "Warning", "Error", "Fatal"}

func (s Status) String() string {
	if s < StatusOK || s > StatusFatal {
		return "Unknown"
	}
	return statusNames[s]
}

// Valid reports whether s is one of the five defined outcomes.
func (s Status) Valid() bool {
	return s >= StatusOK && s <= StatusFatal
}

// Proceed reports whether the caller may continue normally (OK or Warning).
func (s Status) Proceed() bool {
	return s == StatusOK || s == StatusWarning
}

// Severe reports whether the outcome halts the run (Error or Fatal).
func (s Status) Severe() bool {
	return s >= StatusError
}

// Worse returns the more severe of two outcomes.
func Worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// LogLevel is the verbosity requested from the model at initialization.
type LogLevel int

const (
	LogError LogLevel = iota
	LogWarn
	LogInfo
	LogDebug
)

var logLevelNames = map[string]LogLevel{
	"error": LogError,
	"warn":  LogWarn,
	"info":  LogInfo,
	"debug": LogDebug,
}

func (l LogLevel) String() string {
	for name, v := range logLevelNames {
		if v == l {
			return name
		}
	}
	return "unknown"
}

// ParseLogLevel maps a level name to a LogLevel.
func ParseLogLevel(name string) (LogLevel, bool) {
	l, ok := logLevelNames[name]
	return l, ok
}
