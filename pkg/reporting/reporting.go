package reporting

import "github.com/KimApps/ether/pkg/logger"

// Reporter is the error-reporting sink the orchestrators log failures to.
// Implementations must never block and must never affect control flow.
type Reporter interface {
	ReportError(feature, title string, err error)
}

type logReporter struct{}

// NewLogReporter returns a Reporter backed by the process logger. A hosted
// crash-reporting backend can be swapped in without touching callers.
func NewLogReporter() Reporter {
	return logReporter{}
}

func (logReporter) ReportError(feature, title string, err error) {
	logger.Error(title, err, "feature", feature)
}
