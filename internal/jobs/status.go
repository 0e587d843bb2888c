package jobs

// Status is a job lifecycle state.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusFormatting   Status = "formatting"
	StatusCancelling   Status = "cancelling"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether a cancellation request is accepted in this
// state. Cancelling and cancelled are not re-cancellable but requesting
// cancellation on them is a no-op success, handled by the store.
func (s Status) Cancellable() bool {
	switch s {
	case StatusPending, StatusDownloading, StatusTranscribing, StatusFormatting:
		return true
	}
	return false
}

// phaseStatus maps a pipeline progress phase to the job status it implies.
// Unknown phases map to the empty status and are ignored.
func phaseStatus(phase string) Status {
	switch phase {
	case "downloading":
		return StatusDownloading
	case "transcribing":
		return StatusTranscribing
	case "formatting":
		return StatusFormatting
	}
	return ""
}
