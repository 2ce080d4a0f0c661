package domain

// EventType identifies a progress event on a session's stream.
type EventType string

const (
	EventTypeStageChanged EventType = "stage_changed"
	EventTypeCompleted    EventType = "completed"
	EventTypeFailed       EventType = "failed"
)

// ProgressEvent is a stage-transition or completion notification delivered to
// live subscribers. The stream is a convenience layer: a subscriber that
// missed events resynchronizes by fetching the session snapshot.
type ProgressEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Ts        int64     `json:"ts"` // Unix milliseconds

	Stage          Stage `json:"stage,omitempty"`
	OpinionsCount  int   `json:"opinions_count"`
	ReviewsCount   int   `json:"reviews_count"`
	HasFinalAnswer bool  `json:"has_final_answer"`

	// Completed events carry the full terminal snapshot.
	Session *Session `json:"session,omitempty"`

	// Failed events carry the reason.
	Reason string `json:"reason,omitempty"`
}

// SnapshotEvent builds the synthetic event a freshly attached subscriber
// receives before any live events, describing the session as it stands.
func SnapshotEvent(session *Session, ts int64) ProgressEvent {
	return ProgressEvent{
		Type:           EventTypeStageChanged,
		SessionID:      session.SessionID,
		Ts:             ts,
		Stage:          session.Stage,
		OpinionsCount:  len(session.Opinions),
		ReviewsCount:   len(session.Reviews),
		HasFinalAnswer: session.FinalAnswer != nil,
		Session:        session,
	}
}
