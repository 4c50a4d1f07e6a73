package transfer

// State is a step of the transfer state machine.
type State int

// Shared states.
const (
	StateInit State = iota
	StateCopyPayload
	StateReport
	StateDone
	StateFailed
)

// Sender states.
const (
	StateOpenFile State = iota + 100
	StateBindListen
	StatePrintEndpoint
	StateAccept
	StateTLSAccept
	StateWriteSize
)

// Receiver states.
const (
	StateReadPeer State = iota + 200
	StateConnect
	StateTLSConnect
	StateReadSize
	StateOpenSink
)

var stateNames = map[State]string{
	StateInit:          "INIT",
	StateCopyPayload:   "COPY_PAYLOAD",
	StateReport:        "REPORT",
	StateDone:          "DONE",
	StateFailed:        "FAILED",
	StateOpenFile:      "OPEN_FILE",
	StateBindListen:    "BIND_LISTEN",
	StatePrintEndpoint: "PRINT_ENDPOINT",
	StateAccept:        "ACCEPT",
	StateTLSAccept:     "TLS_ACCEPT",
	StateWriteSize:     "WRITE_SIZE",
	StateReadPeer:      "READ_PEER",
	StateConnect:       "CONNECT",
	StateTLSConnect:    "TLS_CONNECT",
	StateReadSize:      "READ_SIZE",
	StateOpenSink:      "OPEN_SINK",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// SenderStates is the sender's success path in order.
var SenderStates = []State{
	StateInit, StateOpenFile, StateBindListen, StatePrintEndpoint, StateAccept,
	StateTLSAccept, StateWriteSize, StateCopyPayload, StateReport, StateDone,
}

// ReceiverStates is the receiver's success path in order.
var ReceiverStates = []State{
	StateInit, StateReadPeer, StateConnect, StateTLSConnect, StateReadSize,
	StateOpenSink, StateCopyPayload, StateReport, StateDone,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
