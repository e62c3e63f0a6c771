package export

// State is the lifecycle position of one book's export.
type State int

const (
	StatePending State = iota
	StateCopying
	StateArchiving
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCopying:
		return "copying"
	case StateArchiving:
		return "archiving"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Kind is the form an exported artifact takes.
type Kind string

const (
	KindArchive Kind = "archive"
	KindCopy    Kind = "copy"
)

// Result records the outcome of exporting one book.
type Result struct {
	Book     string
	Target   string
	Kind     Kind
	State    State
	Entries  []string // archive entry names in write order
	Warnings []string
	Err      error
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Report summarizes a full export run.
type Report struct {
	Total    int
	Exported int
	Failed   int
	Results  []*Result
}
