package metrics

import "time"

// Recorder receives operational events. Labels not known to a backend are
// ignored.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event names.
const (
	EventRefresh      = "metadata_refresh"
	EventFetchFailure = "metadata_fetch_failure"
	EventConsent      = "metadata_consent"
	EventConfirmation = "tx_confirmation"
	OpConfirm         = "tx_confirm"
	OpRefresh         = "metadata_refresh"
)

type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
