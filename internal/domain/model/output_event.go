package model

type OutputEventKind string

const (
	OutputChunk OutputEventKind = "chunk"
	OutputDone  OutputEventKind = "done"
	OutputError OutputEventKind = "error"
)

// OutputEvent is one item on a job's output channel. For a given job the
// sequence is zero-or-more chunks followed by exactly one terminal event.
type OutputEvent struct {
	Kind OutputEventKind
	Text string // chunk payload
	Err  string // error message, terminal error only
}

func ChunkEvent(text string) OutputEvent { return OutputEvent{Kind: OutputChunk, Text: text} }
func DoneEvent() OutputEvent             { return OutputEvent{Kind: OutputDone} }
func ErrorEvent(msg string) OutputEvent  { return OutputEvent{Kind: OutputError, Err: msg} }

func (e OutputEvent) Terminal() bool {
	return e.Kind == OutputDone || e.Kind == OutputError
}
