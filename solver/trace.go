package solver

import (
	"os"
	"sort"

	"github.com/sirupsen/logrus"
)

// The trace-tag registry. Components register a tag once at startup and emit
// debug traces under it; tags are off unless enabled explicitly. This is the
// only mutable process-wide state in the package, and registration is
// idempotent.

// Verbosity controls how chatty the solver is on its log output.
type Verbosity int

const (
	// VerbositySilent emits nothing.
	VerbositySilent = Verbosity(iota)
	// VerbosityBasic prints per-restart statistics.
	VerbosityBasic
	// VerbosityDetailed also prints learned cuts.
	VerbosityDetailed
	// VerbosityExtreme also prints the trail on every conflict.
	VerbosityExtreme
)

var (
	traceLog  = logrus.New()
	traceTags = map[string]bool{}
	traceOn   = false
)

func init() {
	traceLog.SetOutput(os.Stderr)
	traceLog.SetLevel(logrus.DebugLevel)
	traceLog.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
}

// registerTraceTag adds the tag to the registry. Registering an existing tag
// is a no-op.
func registerTraceTag(tag string) {
	if _, ok := traceTags[tag]; !ok {
		traceTags[tag] = false
	}
}

// EnableTrace turns on debug tracing for the given tag.
func EnableTrace(tag string) {
	traceTags[tag] = true
	traceOn = true
}

// EnableAllTraces turns on debug tracing for every registered tag.
func EnableAllTraces() {
	for tag := range traceTags {
		traceTags[tag] = true
	}
	traceOn = true
}

// TraceTags lists the registered tags, sorted.
func TraceTags() []string {
	tags := make([]string, 0, len(traceTags))
	for tag := range traceTags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// tracef logs a debug message under the tag if the tag is enabled.
func tracef(tag, format string, args ...interface{}) {
	if !traceOn || !traceTags[tag] {
		return
	}
	traceLog.WithField("tag", tag).Debugf(format, args...)
}

// Logger exposes the solver's logger so the driver can redirect or silence
// it.
func Logger() *logrus.Logger {
	return traceLog
}
