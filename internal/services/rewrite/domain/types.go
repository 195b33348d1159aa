// Package domain defines the shared rewrite pipeline types
// Requests, jobs, provider batches, and the embedded classifier/routing records
package domain

import "time"

// RequestStatus is the lifecycle state of a RewriteRequest
type RequestStatus string

// RewriteRequest statuses
const (
	RequestQueued     RequestStatus = "queued"
	RequestProcessing RequestStatus = "processing"
	RequestCompleted  RequestStatus = "completed"
	RequestCanceled   RequestStatus = "canceled"
)

// JobStatus is the lifecycle state of a RewriteJob
type JobStatus string

// RewriteJob statuses
const (
	JobQueued         JobStatus = "queued"
	JobProcessing     JobStatus = "processing"
	JobBatchSubmitted JobStatus = "batch_submitted"
	JobCompleted      JobStatus = "completed"
	JobFailed         JobStatus = "failed"
	JobCanceled       JobStatus = "canceled"
)

// Terminal reports whether the status is write-once final
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCanceled:
		return true
	}
	return false
}

// Terminal reports whether the request status is final
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestCanceled
}

// BatchStatus is our vocabulary for provider batch states
type BatchStatus string

// ProviderBatch statuses
const (
	BatchSubmitted BatchStatus = "submitted"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
	BatchCanceled  BatchStatus = "canceled"
)

// Lane selects the same-language or cross-language rewrite path
type Lane string

// Lanes
const (
	LaneSameLanguage  Lane = "same_language"
	LaneCrossLanguage Lane = "cross_language"
)

// ExecutionMode routes a job to the low-latency or windowed path
type ExecutionMode string

// Execution modes
const (
	ModeRealtime ExecutionMode = "realtime"
	ModeBatch    ExecutionMode = "batch"
)

// RewriteStrength steers how aggressively text is reframed
type RewriteStrength string

// Rewrite strengths
const (
	StrengthLightTouch  RewriteStrength = "light_touch"
	StrengthFullReframe RewriteStrength = "full_reframe"
)

// Intent is the classifier's single intent label
type Intent string

// Closed intent vocabulary
const (
	IntentVent      Intent = "vent"
	IntentConcern   Intent = "concern"
	IntentBoundary  Intent = "boundary"
	IntentRequest   Intent = "request"
	IntentLogistics Intent = "logistics"
)

// Topic is one classifier topic label
type Topic string

// Closed topic vocabulary
const (
	TopicChores        Topic = "chores"
	TopicMoney         Topic = "money"
	TopicParenting     Topic = "parenting"
	TopicCommunication Topic = "communication"
	TopicTime          Topic = "time"
	TopicHabits        Topic = "habits"
	TopicRespect       Topic = "respect"
	TopicOther         Topic = "other"
)

// SafetyFlag marks content requiring special handling downstream
type SafetyFlag string

// Safety flags
const (
	SafetyNone      SafetyFlag = "none"
	SafetySelfHarm  SafetyFlag = "self_harm"
	SafetyViolence  SafetyFlag = "violence"
	SafetyAbuse     SafetyFlag = "abuse"
	SafetySubstance SafetyFlag = "substance"
)

// Surface tags where the entry was written
type Surface string

// Allow-listed surfaces
const (
	SurfaceJournal Surface = "journal"
	SurfaceNote    Surface = "note"
	SurfaceCheckin Surface = "checkin"
)

// PowerMode is the coarse relational descriptor steering tone
type PowerMode string

// Power modes
const (
	PowerPeer            PowerMode = "peer"
	PowerHigherSender    PowerMode = "higher_sender"
	PowerHigherRecipient PowerMode = "higher_recipient"
)

// ClassifierResult is the normalized output of one classification call
type ClassifierResult struct {
	Version          string       `json:"version"`
	DetectedLanguage string       `json:"detected_language"`
	Topics           []Topic      `json:"topics"`
	Intent           Intent       `json:"intent"`
	Strength         RewriteStrength `json:"rewrite_strength"`
	SafetyFlags      []SafetyFlag `json:"safety_flags"`
}

// RoutingDecision is computed once per request and frozen into its jobs
type RoutingDecision struct {
	Provider      string        `json:"provider"`
	Model         string        `json:"model"`
	PromptVersion string        `json:"prompt_version"`
	PolicyVersion string        `json:"policy_version"`
	Mode          ExecutionMode `json:"mode"`
	CacheEligible bool          `json:"cache_eligible"`
	MaxAttempts   int           `json:"max_attempts"`
}

// ContextPack bundles the recipient-facing signals steering the rewrite prompt
type ContextPack struct {
	Topics         []Topic   `json:"topics"`
	TargetLanguage string    `json:"target_language"`
	PowerMode      PowerMode `json:"power_mode"`
}

// PolicySnapshot is derived deterministically from rewrite strength
type PolicySnapshot struct {
	Tone                 string `json:"tone"`
	Directness           string `json:"directness"`
	EmotionalTemperature string `json:"emotional_temperature"`
}

// RewriteRequest is one rewrite request per triggering entry.
// ID equals the triggering entry id, which makes enqueue naturally idempotent
type RewriteRequest struct {
	ID           string
	HomeID       string
	SenderID     string
	RecipientID  string
	OriginalText string
	SourceLocale string
	TargetLocale string
	Lane         Lane
	Classifier   ClassifierResult
	Context      ContextPack
	Routing      RoutingDecision
	Policy       PolicySnapshot
	Status       RequestStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RewriteJob is one unit of rewrite work for a (request, recipient) pair
type RewriteJob struct {
	ID                   string
	RequestID            string
	RecipientID          string
	RecipientSnapshotID  string
	PreferenceSnapshotID string
	TaskKind             string
	Surface              Surface
	Strength             RewriteStrength
	Lane                 Lane
	Routing              RoutingDecision
	AttemptCount         int
	MaxAttempts          int
	ProviderBatchID      *string
	NotBefore            time.Time
	Status               JobStatus
	Output               string
	LastError            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ProviderBatch is one windowed submission to the provider's batch endpoint
type ProviderBatch struct {
	ID           string
	Endpoint     string
	Status       BatchStatus
	InputFileID  string
	OutputFileID string
	ErrorFileID  string
	JobCount     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Evaluation is the safety-lexicon verdict persisted with a completed job
type Evaluation struct {
	LexiconPass  bool     `json:"lexicon_pass"`
	ToneSafe     bool     `json:"tone_safe"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
	MaxSeverity  int      `json:"max_severity,omitempty"`
}
