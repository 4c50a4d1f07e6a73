// Package prompt asks the operator which role to play and where the peer is.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	"github.com/tcptransfer/tcptransfer-go/pkg/transfer"
)

// Prompt texts.
const (
	RolePrompt = "Enter file path or press enter to receive: "
	PeerPrompt = "Enter peer IP address and port: "
)

// ErrInterrupted is returned when the operator presses Ctrl-C at a prompt.
var ErrInterrupted = errors.New("prompt interrupted")

// LineReader reads one line of operator input after showing a prompt.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// Readline is a LineReader on the terminal.
type Readline struct {
	rl *readline.Instance
}

// NewReadline creates a terminal LineReader on stdin and stdout.
func NewReadline() (*Readline, error) {
	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt:        "^C",
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Readline{rl: rl}, nil
}

// ReadLine shows prompt and returns the entered line without its newline.
func (r *Readline) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupted
	}
	return line, err
}

// Close restores the terminal.
func (r *Readline) Close() error {
	return r.rl.Close()
}

// SelectRole asks for a file path. A non-empty answer selects the sender; an
// empty line selects the receiver writing to dest. The receiver's peer is left
// unset so it is asked for during READ_PEER.
func SelectRole(lr LineReader, dest string) (transfer.Role, error) {
	line, err := lr.ReadLine(RolePrompt)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read role: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("read role: %w", err)
	}

	path := strings.TrimSpace(line)
	if path == "" {
		return transfer.Receive{Dest: dest}, nil
	}
	return transfer.Send{Path: path}, nil
}

// ReadPeer asks for the sender's ADDRESS:PORT and parses it.
func ReadPeer(lr LineReader) (endpoint.Endpoint, error) {
	line, err := lr.ReadLine(PeerPrompt)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return endpoint.Endpoint{}, fmt.Errorf("read peer: %w", io.ErrUnexpectedEOF)
		}
		return endpoint.Endpoint{}, fmt.Errorf("read peer: %w", err)
	}
	return endpoint.Parse(line)
}

// PeerSource adapts ReadPeer for the coordinator.
func PeerSource(lr LineReader) transfer.PeerSource {
	return func(ctx context.Context) (endpoint.Endpoint, error) {
		if err := ctx.Err(); err != nil {
			return endpoint.Endpoint{}, err
		}
		return ReadPeer(lr)
	}
}

var _ LineReader = (*Readline)(nil)
