// Package types defines the shared data structures for the FableCore engine.
// This package contains only type definitions and trivial constructors.
package types

// RefKind tags the variant held by an ObjectRef.
type RefKind string

const (
	RefNone      RefKind = ""
	RefBound     RefKind = "bound"
	RefAmbiguous RefKind = "ambiguous"
	RefUnknown   RefKind = "unknown"
	RefSpecial   RefKind = "special"
	RefLiteral   RefKind = "literal"
)

// SpecialAll is the only special reference ("all", "everything").
const SpecialAll = "all"

// Candidate is a resolvable thing the player can refer to.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Pool string `json:"pool"` // "object", "item", "inventory", "npc"
}

// ObjectRef is a tagged reference produced by the object resolver.
//
//	bound(id)              Kind=RefBound, ID
//	ambiguous(candidates)  Kind=RefAmbiguous, Candidates
//	unknown(text)          Kind=RefUnknown, Text
//	special(all)           Kind=RefSpecial, Text="all"
//	literal(text)          Kind=RefLiteral, Text
type ObjectRef struct {
	Kind       RefKind     `json:"kind,omitempty"`
	ID         string      `json:"id,omitempty"`
	Text       string      `json:"text,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Bound returns a reference bound to an id.
func Bound(id, text string) ObjectRef { return ObjectRef{Kind: RefBound, ID: id, Text: text} }

// Unknown returns a reference to something that matched nothing.
func Unknown(text string) ObjectRef { return ObjectRef{Kind: RefUnknown, Text: text} }

// Literal returns a reference that is plain text (directions, topics, codes).
func Literal(text string) ObjectRef { return ObjectRef{Kind: RefLiteral, Text: text} }

// Command is the structured representation of one player turn.
type Command struct {
	Verb        string    `json:"verb"`
	Direct      ObjectRef `json:"direct,omitempty"`
	Preposition string    `json:"preposition,omitempty"`
	Indirect    ObjectRef `json:"indirect,omitempty"`
	Modifiers   []string  `json:"modifiers,omitempty"`
	Raw         string    `json:"raw,omitempty"`
}

// Pattern is an event trigger template. Empty fields match anything.
type Pattern struct {
	Verb        string `json:"verb,omitempty"`
	Object      string `json:"object,omitempty"`
	Preposition string `json:"preposition,omitempty"`
	Indirect    string `json:"indirect,omitempty"`
}

// ActionKind is the closed set of world-mutating actions.
type ActionKind string

const (
	ActSay         ActionKind = "say"
	ActSetFlag     ActionKind = "set_flag"
	ActClearFlag   ActionKind = "clear_flag"
	ActGiveItem    ActionKind = "give_item"
	ActRemoveItem  ActionKind = "remove_item"
	ActAddScore    ActionKind = "add_score"
	ActMovePlayer  ActionKind = "move_player"
	ActMoveEntity  ActionKind = "move_entity"
	ActSetProp     ActionKind = "set_prop"
	ActOpenExit    ActionKind = "open_exit"
	ActCloseExit   ActionKind = "close_exit"
	ActSchedule    ActionKind = "schedule"
	ActEndGame     ActionKind = "end_game"
	ActUnlock      ActionKind = "unlock_achievement"
	ActProgress    ActionKind = "achievement_progress"
	ActSetPath     ActionKind = "set_path"
	ActAddFactor   ActionKind = "add_factor"
	ActEmitEvent   ActionKind = "emit_event"
	ActStartPuzzle ActionKind = "start_puzzle"
	ActResetPuzzle ActionKind = "reset_puzzle"
	ActStop        ActionKind = "stop"
)

// Action is a single atomic state mutation instruction.
type Action struct {
	Type    ActionKind     `json:"type"`
	Params  map[string]any `json:"params,omitempty"`
	Actions []Action       `json:"actions,omitempty"` // deferred body of a schedule action
}

// Event is emitted after actions are applied.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Condition is a predicate. An empty Type means Expr is a flag expression.
type Condition struct {
	Type   string         `json:"type,omitempty"` // "", "flag", "score", "achievement", "path", "factor", "time", "has_item", "in_room", "prop_is", "not"
	Expr   string         `json:"expr,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	Inner  *Condition     `json:"inner,omitempty"` // for "not"
}

// EventDef is a scripted reaction to a command.
type EventDef struct {
	ID          string
	Scope       string // "room:<id>", "entity:<id>", "global"
	Pattern     Pattern
	Conditions  []Condition
	Actions     []Action
	Response    string
	Once        bool
	Priority    int
	SourceOrder int
}

// TopicDef defines a single dialogue topic for an NPC.
type TopicDef struct {
	Text     string
	Requires []Condition
	Actions  []Action
}

// EntityDef is the base definition of a world entity (item, NPC, object).
type EntityDef struct {
	ID     string
	Kind   string              // "item", "npc", "object"
	Props  map[string]any      // base properties from Lua
	Events []EventDef          // events scoped to this entity
	Topics map[string]TopicDef // NPC topics (nil for non-NPCs)
}

// RoomDef is the base definition of a room.
type RoomDef struct {
	ID             string
	Name           string
	Description    string
	Exits          map[string]string    // direction -> room_id
	ExitConditions map[string]Condition // direction -> gate
	ExitBlocked    map[string]string    // direction -> message when gated
	Events         []EventDef
	Fallbacks      map[string]string // verb -> custom failure text
}

// Solution is the expected (or attempted) answer to a puzzle or step.
// Empty fields are not compared.
type Solution struct {
	Verb     string   `json:"verb,omitempty"`
	Item     string   `json:"item,omitempty"`
	Target   string   `json:"target,omitempty"`
	Value    string   `json:"value,omitempty"`
	Sequence []string `json:"sequence,omitempty"`
}

// StepDef is one stage of a multi-step puzzle.
type StepDef struct {
	Solution Solution
	Hints    []string
	Success  string
	Failure  string
	Reward   []Action
	Points   int
}

// PuzzleDef is a static puzzle definition.
type PuzzleDef struct {
	ID                 string
	Name               string
	Room               string  // optional: where the trigger applies
	Trigger            Pattern // command pattern that counts as an attempt
	Conditions         []Condition
	Solution           *Solution // single-step
	Steps              []StepDef // multi-step
	Hints              []string
	HintCooldown       int64 // milliseconds
	MaxAttempts        int
	Reward             []Action
	Points             int
	FailureConsequence []Action
	NoReset            bool
	ResetActions       []Action
	Success            string
	Failure            string
}

// HintState tracks hint delivery for a puzzle or one of its steps.
type HintState struct {
	Given  int   `json:"given"`
	LastAt int64 `json:"last_at"` // game clock ms; -1 when never hinted
}

// PuzzleState is the mutable state of one puzzle.
type PuzzleState struct {
	Started        bool              `json:"started"`
	Completed      bool              `json:"completed"`
	Failed         bool              `json:"failed"`
	Permanent      bool              `json:"permanent"`
	Attempts       int               `json:"attempts"`
	CurrentStep    int               `json:"current_step"`
	CompletedSteps []int             `json:"completed_steps,omitempty"`
	Hints          HintState         `json:"hints"`
	StepHints      map[int]HintState `json:"step_hints,omitempty"`
	Resets         int               `json:"resets"`
}

// PuzzleResult is the structured outcome of a puzzle operation.
type PuzzleResult struct {
	PuzzleID  string `json:"puzzle_id"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Points    int    `json:"points,omitempty"`
	Step      int    `json:"step,omitempty"`  // steps completed so far
	Steps     int    `json:"steps,omitempty"` // total steps (multi-step only)
	Completed bool   `json:"completed,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
	NoOp      bool   `json:"no_op,omitempty"`
}

// HintResult is returned by hint requests.
type HintResult struct {
	Hint       string `json:"hint,omitempty"`
	Index      int    `json:"index"`
	OnCooldown bool   `json:"on_cooldown,omitempty"`
	NoHints    bool   `json:"no_hints,omitempty"`
}

// AchievementDef is a static achievement definition.
type AchievementDef struct {
	ID          string
	Title       string
	Description string
	Points      int
	Hidden      bool
	Meta        int // unlock after this many other achievements
	Target      int // progressive: unlock when progress reaches target
}

// UnlockedAchievement records when an achievement was earned.
type UnlockedAchievement struct {
	ID   string `json:"id"`
	At   int64  `json:"at"`   // game clock ms
	Turn int    `json:"turn"` // turn count
}

// EndingDef is a static ending definition.
type EndingDef struct {
	ID          string
	Title       string
	Text        string
	Priority    int
	Conditions  []Condition
	Achievement string
	Outcome     string // "win", "lose", "neutral"
}

// FailureDef is one ordered failure condition of the game.
type FailureDef struct {
	Condition Condition
	Message   string
}

// ScheduledAction is an action deferred to a game-clock timestamp.
type ScheduledAction struct {
	At      int64    `json:"at"`  // game clock ms
	Seq     int64    `json:"seq"` // insertion order; ties at the same At run FIFO
	Actions []Action `json:"actions"`
	Source  string   `json:"source,omitempty"`
}

// Milestone binds a score threshold to an achievement.
type Milestone struct {
	Threshold   int
	Achievement string
}

// GameDef holds game metadata from Lua.
type GameDef struct {
	Title         string
	Author        string
	Version       string
	Start         string // starting room ID
	Intro         string
	MaxScore      int
	Win           *Condition
	Failures      []FailureDef
	DefaultEnding string
	FailureEnding string
	Milestones    []Milestone
	PerfectScore  string // achievement id unlocked at MaxScore
}

// Player holds the player's runtime state.
type Player struct {
	Location  string   `json:"location"`
	Inventory []string `json:"inventory"`
}

// EntityState holds runtime overrides for an entity.
type EntityState struct {
	Location string         `json:"location,omitempty"` // overrides base location if non-empty
	Props    map[string]any `json:"props,omitempty"`    // overrides base props
}

// PendingAmbiguity is a half-parsed command awaiting clarification.
type PendingAmbiguity struct {
	Command    Command     `json:"command"`
	Slot       string      `json:"slot"` // "direct" or "indirect"
	Phrase     string      `json:"phrase"`
	Candidates []Candidate `json:"candidates"`
}

// Conversation is the parser's cross-turn context: pronoun binding,
// pending ambiguity and the last successfully parsed command.
type Conversation struct {
	LastObject  string            `json:"last_object,omitempty"`
	LastCommand *Command          `json:"last_command,omitempty"`
	Pending     *PendingAmbiguity `json:"pending,omitempty"`
}

// Touched records what the player has interacted with, for final statistics.
type Touched struct {
	Rooms   []string `json:"rooms"`
	Items   []string `json:"items"`
	NPCs    []string `json:"npcs"`
	Puzzles []string `json:"puzzles"`
}

// State is the complete mutable game state.
type State struct {
	SessionID           string                 `json:"session_id"`
	Player              Player                 `json:"player"`
	Entities            map[string]EntityState `json:"entities"`
	Flags               map[string]any         `json:"flags"`
	Score               int                    `json:"score"`
	Moves               int                    `json:"moves"`
	Clock               int64                  `json:"clock"` // game clock ms
	Path                string                 `json:"path,omitempty"`
	Factors             map[string]float64     `json:"factors"`
	Puzzles             map[string]PuzzleState `json:"puzzles"`
	Achievements        []UnlockedAchievement  `json:"achievements"`
	AchievementProgress map[string]int         `json:"achievement_progress"`
	Scheduled           []ScheduledAction      `json:"scheduled"`
	ScheduleSeq         int64                  `json:"schedule_seq"`
	FiredEvents         map[string]bool        `json:"fired_events"`
	Conversation        Conversation           `json:"conversation"`
	Touched             Touched                `json:"touched"`
	Ended               bool                   `json:"ended"`
	Ending              string                 `json:"ending,omitempty"`
	TurnCount           int                    `json:"turn"`
	RNGSeed             int64                  `json:"rng_seed"`
	RNGPosition         int64                  `json:"rng_position"`
	CommandLog          []string               `json:"command_log"`
}

// MessageKind tags output so hosts can tell errors from narrative.
type MessageKind string

const (
	MsgNarrative    MessageKind = "narrative"
	MsgError        MessageKind = "error"
	MsgSystem       MessageKind = "system"
	MsgNotification MessageKind = "notification"
)

// Message is one line of player-facing output.
type Message struct {
	Kind MessageKind `json:"kind"`
	Text string      `json:"text"`
}

// Notification is a structured progression record for popups.
type Notification struct {
	Kind    string `json:"kind"` // "achievement", "score", "puzzle", "ending"
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
	Points  int    `json:"points,omitempty"`
}

// FinalStats is the read-only summary emitted when an ending triggers.
type FinalStats struct {
	Ending        string   `json:"ending"`
	Title         string   `json:"title"`
	Outcome       string   `json:"outcome"`
	Score         int      `json:"score"`
	MaxScore      int      `json:"max_score"`
	Moves         int      `json:"moves"`
	ElapsedMS     int64    `json:"elapsed_ms"`
	RoomsVisited  int      `json:"rooms_visited"`
	ItemsFound    int      `json:"items_found"`
	PuzzlesSolved int      `json:"puzzles_solved"`
	NPCsMet       int      `json:"npcs_met"`
	Achievements  []string `json:"achievements"`
}

// Result is the output of a single game step or tick.
type Result struct {
	Command       *Command
	Actions       []Action
	Events        []Event
	Output        []Message
	Notifications []Notification
	Puzzle        *PuzzleResult
	Ending        *FinalStats
	Unscripted    bool
}

// EventHandler is a reaction to an engine event rather than a player command.
type EventHandler struct {
	EventType  string
	Conditions []Condition
	Actions    []Action
}

// ParseErrorKind categorizes player-facing parse failures.
type ParseErrorKind string

const (
	ErrEmptyInput      ParseErrorKind = "empty_input"
	ErrUnknownVerb     ParseErrorKind = "unknown_verb"
	ErrMissingDirect   ParseErrorKind = "missing_direct_object"
	ErrMissingIndirect ParseErrorKind = "missing_indirect_object"
	ErrMissingDir      ParseErrorKind = "missing_direction"
	ErrAmbiguous       ParseErrorKind = "ambiguous_object"
	ErrNoPrevious      ParseErrorKind = "no_previous_command"
)

// ParseError is a categorized parse failure carrying a player-facing message.
type ParseError struct {
	Kind       ParseErrorKind `json:"kind"`
	Message    string         `json:"message"`
	Candidates []Candidate    `json:"candidates,omitempty"`
}

func (e *ParseError) Error() string { return e.Message }
