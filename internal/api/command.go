package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fakeyudi/tomato/internal/timer"
)

type CommandType string

const (
	CmdStartTimer                  CommandType = "START_TIMER"
	CmdStopTimer                   CommandType = "STOP_TIMER"
	CmdGetTimerState               CommandType = "GET_TIMER_STATE"
	CmdSetTimer                    CommandType = "SET_TIMER"
	CmdSetBreak                    CommandType = "SET_BREAK"
	CmdCheckNotificationPermission CommandType = "CHECK_NOTIFICATION_PERMISSION"
	CmdTimerComplete               CommandType = "TIMER_COMPLETE"
)

var (
	ErrUnknownCommand = errors.New("unknown command type")
	ErrInvalidCommand = errors.New("invalid command")
)

// Command is one request to the daemon. The concrete type decides which
// payload fields travel next to the "type" tag.
type Command interface {
	CommandType() CommandType
}

type StartTimer struct{}

type StopTimer struct {
	Reset bool `json:"reset"`
}

type GetTimerState struct{}

// SetTimer replaces the remaining time. Non-positive values decode fine and
// are rejected by the scheduler.
type SetTimer struct {
	Time               int  `json:"time"`
	UpdateWorkDuration bool `json:"updateWorkDuration"`
}

type SetBreak struct {
	Time int `json:"time"`
}

type CheckNotificationPermission struct{}

// TimerComplete fires a test notification. An empty TimerType lets the daemon
// pick a phase at random.
type TimerComplete struct {
	TimerType timer.Mode `json:"timerType,omitempty"`
}

func (StartTimer) CommandType() CommandType                  { return CmdStartTimer }
func (StopTimer) CommandType() CommandType                   { return CmdStopTimer }
func (GetTimerState) CommandType() CommandType               { return CmdGetTimerState }
func (SetTimer) CommandType() CommandType                    { return CmdSetTimer }
func (SetBreak) CommandType() CommandType                    { return CmdSetBreak }
func (CheckNotificationPermission) CommandType() CommandType { return CmdCheckNotificationPermission }
func (TimerComplete) CommandType() CommandType               { return CmdTimerComplete }

type envelope struct {
	Type CommandType `json:"type"`
}

// DecodeCommand parses a tagged command envelope.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	var (
		cmd Command
		err error
	)
	switch env.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidCommand)
	case CmdStartTimer:
		return StartTimer{}, nil
	case CmdGetTimerState:
		return GetTimerState{}, nil
	case CmdCheckNotificationPermission:
		return CheckNotificationPermission{}, nil
	case CmdStopTimer:
		cmd, err = decodeAs[StopTimer](data)
	case CmdSetTimer:
		cmd, err = decodeAs[SetTimer](data)
	case CmdSetBreak:
		cmd, err = decodeAs[SetBreak](data)
	case CmdTimerComplete:
		cmd, err = decodeAs[TimerComplete](data)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCommand, env.Type, err)
	}
	if tc, ok := cmd.(TimerComplete); ok && tc.TimerType != "" && !tc.TimerType.Valid() {
		return nil, fmt.Errorf("%w: unknown timerType %q", ErrInvalidCommand, tc.TimerType)
	}
	return cmd, nil
}

// EncodeCommand produces the tagged wire form of cmd.
func EncodeCommand(cmd Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.CommandType(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.CommandType(), err)
	}
	tag, _ := json.Marshal(cmd.CommandType())
	fields["type"] = tag
	return json.Marshal(fields)
}

func decodeAs[T Command](data []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}
