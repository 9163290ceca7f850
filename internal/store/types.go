package store

import "time"

// Message is an append-only chat history row (spec.md §3).
type Message struct {
	ID              int64
	Timestamp       time.Time
	Role            string // "user" | "assistant" | "system"
	Content         string
	Importance      float64
	EmotionalWeight float64
	ContextTags     []string
	Platform        string
	Version         string
}

// PersonalityTrait is one of the fixed ten-element vocabulary.
type PersonalityTrait struct {
	Name        string
	Value       float64
	Type        string
	OriginStory string
	LastUpdated time.Time
	Active      bool
}

// PersonalityChange is an append-only history row.
type PersonalityChange struct {
	ID        int64
	Timestamp time.Time
	Trait     string
	Old       float64
	New       float64
	Reason    string // "explicit" | "trigger" | "decay"
}

// PersonalitySnapshot is written nightly.
type PersonalitySnapshot struct {
	ID          int64
	Name        string
	Timestamp   time.Time
	Data        map[string]float64
	Type        string
	Description string
}

// KnowledgeFact is deduped by Topic.
type KnowledgeFact struct {
	ID                int64
	Topic             string
	Content           string
	Source            string
	Confidence        float64
	LearnedAt         time.Time
	LastAccessed      time.Time
	ConfirmationCount int
	SourceWeeks       []int
	Embedding         []float32
}

// EpisodeSummary covers a contiguous Message id range.
type EpisodeSummary struct {
	ID                int64
	CreatedAt         time.Time
	WeekNumber        int
	MessageRangeStart int64
	MessageRangeEnd   int64
	Summary           string
	Topics            []string
	Importance        float64
	Committed         bool
	Archived          bool
}

// WeeklySynthesis is at most one row per ISO week.
type WeeklySynthesis struct {
	ID                   int64
	WeekStart            time.Time
	WeekEnd              time.Time
	Synthesis            string
	ConfirmedTopics      []string
	TentativeTopics      []string
	Corrections          string
	KnowledgeItemsAdded  int
}

// CuriosityItem is the pending research backlog.
type CuriosityItem struct {
	ID            int64
	Topic         string
	Priority      float64
	AddedAt       time.Time
	Reason        string
	Status        string // "pending" | "completed"
	ResearchNotes string
	CompletedAt   *time.Time
}

// Interest tracks running mention counts per topic.
type Interest struct {
	Topic         string
	Level         string // "casual" | "interested" | "deep" | "passion"
	MentionCount  int
	FirstMention  time.Time
	LastActivity  time.Time
}

// SkillObservation is a single classified observation for a domain.
type SkillObservation struct {
	ID         int64
	Domain     string
	Confidence float64
	Timestamp  time.Time
}

// SkillLevel is the rolling classification for a domain.
type SkillLevel struct {
	Domain        string
	RollingMean   float64
	ObservationCt int
	Classification string // "strong" | "competent" | "developing"
}

// Goal tracks progress against a typed objective.
type Goal struct {
	ID          int64
	Name        string
	Type        string
	Current     float64
	Target      float64
	Progress    float64
	Status      string // "active" | "completed"
	CreatedAt   time.Time
	AuthoredBy  string // "system" | "self"
	Description string
}

// JournalEntry's Content is encrypted at rest via the Secret Box.
type JournalEntry struct {
	ID        int64
	Timestamp time.Time
	Type      string // "daily_reflection" | "philosophical"
	Title     string
	Content   string
	Mood      string
	Topics    []string
	WordCount int
}

// SelfAwarenessSample is recorded per assistant response.
type SelfAwarenessSample struct {
	ID                int64
	Timestamp         time.Time
	SelfRefScore      float64
	UncertaintyScore  float64
	MetaCognitionScore float64
	CompositeScore    float64
	WordCount         int
	Sample            string
}

// ConsolidationRun records one nightly pipeline execution.
type ConsolidationRun struct {
	ID             int64
	RunDate        time.Time
	Counters       map[string]int
	DurationSeconds float64
	Summary        string
}

// ActivityEvent is a user-visible audit log row.
type ActivityEvent struct {
	ID        int64
	Timestamp time.Time
	Type      string
	Label     string
	Detail    string
	Extra     map[string]any
}

// CreativeOutput is one fenced code block or long-form creative passage the
// Action Pipeline saved from an assistant response (spec.md §4.13).
type CreativeOutput struct {
	ID        int64
	Timestamp time.Time
	Kind      string // "code" | "story" | "poem" | "essay" | "letter"
	Language  string
	Content   string
	Stdout    string
	Stderr    string
	ExitCode  int
	Executed  bool
}

// EmailLog records one attempted outbound email, mirroring email_service.py's
// email_log table so should-send-today checks survive restarts.
type EmailLog struct {
	ID        int64
	SentAt    time.Time
	Recipient string
	Subject   string
	Type      string // "daily_summary" | "test" | "general"
	Success   bool
	Error     string
}

// OperatingNote is a self-authored style rule.
type OperatingNote struct {
	Key         string
	Value       string
	Created     time.Time
	LastUpdated time.Time
	UpdateCount int
}

// Mistake is a rule extracted from user pushback.
type Mistake struct {
	ID              int64
	Timestamp       time.Time
	Topic           string
	Correction      string
	BehavioralRule  string
	AppliedCount    int
}

// UserModelAttr is one inferred attribute of the user.
type UserModelAttr struct {
	Attribute     string
	Value         string
	Confidence    float64
	LastUpdated   time.Time
	EvidenceCount int
}

// Thread groups related messages by topic.
type Thread struct {
	ID           string
	Name         string
	Keywords     []string
	MessageCount int
	StartedAt    time.Time
	LastActivity time.Time
}

// ThreadMessage links a Message into a Thread.
type ThreadMessage struct {
	ThreadID  string
	MessageID int64
}

// Capabilities is the live-status snapshot the Conversation Core embeds in
// the system prompt (spec.md §4.10 step 2), mirroring
// ai_engine.py's get_live_capabilities.
type Capabilities struct {
	Conversations      int
	KnowledgeEntries   int
	JournalEntries     int
	LastJournal        time.Time
	ActiveGoals        int
	CuriosityPending   int
	LastConsolidation  time.Time
}
