// Package outcome defines the closed set of control actions a handler can
// return. The dispatcher's resolver switches over these types exhaustively;
// the unexported marker method keeps other packages from adding variants.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/chatgraph/internal/message"
)

// Kind tags an Outcome.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindMessage
	KindMove
	KindRedirect
	KindEndChat
	KindTransferToHuman
	KindTransferToMenu
	KindBackground
	KindBatch
	KindInvalid
)

var kindNames = [...]string{
	KindEmpty:           "empty",
	KindText:            "text",
	KindMessage:         "message",
	KindMove:            "move",
	KindRedirect:        "redirect",
	KindEndChat:         "end_chat",
	KindTransferToHuman: "transfer_to_human",
	KindTransferToMenu:  "transfer_to_menu",
	KindBackground:      "background",
	KindBatch:           "batch",
	KindInvalid:         "invalid",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Outcome is one control action.
type Outcome interface {
	Kind() Kind
	outcome()
}

// Empty is the falsy return: the session loops in place on its current leaf.
type Empty struct{}

// Text is plain content, wrapped into a minimal message before sending.
type Text struct {
	Body string
}

// Message is a structured message sent as-is.
type Message struct {
	Message *message.Message
}

// Move sets the session route without re-dispatching.
type Move struct {
	Path string
}

// Redirect sets the session route and dispatches again within the same turn.
type Redirect struct {
	Path string
}

// EndChat closes the conversation with an end action, by id or by name.
type EndChat struct {
	ID          string
	Name        string
	Observation string
}

// TransferToHuman hands the session to a human agent campaign.
type TransferToHuman struct {
	CampaignID   string
	CampaignName string
	Observation  string
}

// TransferToMenu moves the session to another bot menu.
type TransferToMenu struct {
	Menu    string
	Message string
}

// Task is a unit of background work. Its result re-enters the resolver.
type Task func(ctx context.Context) (Outcome, error)

// Background detaches Task from the turn.
type Background struct {
	Name string
	Task Task
}

// Batch is an ordered sequence resolved element by element.
type Batch []Outcome

// Invalid wraps a return value that maps to no action.
type Invalid struct {
	Value any
}

func (Empty) Kind() Kind           { return KindEmpty }
func (Text) Kind() Kind            { return KindText }
func (Message) Kind() Kind         { return KindMessage }
func (Move) Kind() Kind            { return KindMove }
func (Redirect) Kind() Kind        { return KindRedirect }
func (EndChat) Kind() Kind         { return KindEndChat }
func (TransferToHuman) Kind() Kind { return KindTransferToHuman }
func (TransferToMenu) Kind() Kind  { return KindTransferToMenu }
func (Background) Kind() Kind      { return KindBackground }
func (Batch) Kind() Kind           { return KindBatch }
func (Invalid) Kind() Kind         { return KindInvalid }

func (Empty) outcome()           {}
func (Text) outcome()            {}
func (Message) outcome()         {}
func (Move) outcome()            {}
func (Redirect) outcome()        {}
func (EndChat) outcome()         {}
func (TransferToHuman) outcome() {}
func (TransferToMenu) outcome()  {}
func (Background) outcome()      {}
func (Batch) outcome()           {}
func (Invalid) outcome()         {}

// ErrEndChatTarget is returned by NewEndChat when neither id nor name is set.
var ErrEndChatTarget = errors.New("end chat requires an end action id or name")

// NewEndChat validates that the end action can be identified.
func NewEndChat(id, name, observation string) (EndChat, error) {
	if id == "" && name == "" {
		return EndChat{}, ErrEndChatTarget
	}
	return EndChat{ID: id, Name: name, Observation: observation}, nil
}

// NewTransferToMenu lower-cases the menu name.
func NewTransferToMenu(menu, msg string) TransferToMenu {
	return TransferToMenu{Menu: strings.ToLower(strings.TrimSpace(menu)), Message: msg}
}

// Number formats a numeric plain return as text.
func Number(f float64) Text {
	return Text{Body: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Of maps a plain Go return value onto an Outcome. Strings and numbers become
// Text, nil, "" and false become Empty, slices become Batch, messages become
// Message. Anything else is Invalid.
func Of(v any) Outcome {
	switch x := v.(type) {
	case nil:
		return Empty{}
	case Outcome:
		return x
	case string:
		if x == "" {
			return Empty{}
		}
		return Text{Body: x}
	case bool:
		if !x {
			return Empty{}
		}
		return Invalid{Value: x}
	case int:
		return Text{Body: strconv.Itoa(x)}
	case int32:
		return Text{Body: strconv.FormatInt(int64(x), 10)}
	case int64:
		return Text{Body: strconv.FormatInt(x, 10)}
	case uint:
		return Text{Body: strconv.FormatUint(uint64(x), 10)}
	case uint64:
		return Text{Body: strconv.FormatUint(x, 10)}
	case float32:
		return Number(float64(x))
	case float64:
		return Number(x)
	case *message.Message:
		if x == nil {
			return Empty{}
		}
		return Message{Message: x}
	case message.Message:
		return Message{Message: &x}
	case []Outcome:
		return Batch(x)
	case []any:
		b := make(Batch, 0, len(x))
		for _, e := range x {
			b = append(b, Of(e))
		}
		return b
	case []string:
		b := make(Batch, 0, len(x))
		for _, e := range x {
			b = append(b, Of(e))
		}
		return b
	}
	return Invalid{Value: v}
}

// Seq is shorthand for building a Batch from mixed plain values.
func Seq(vs ...any) Batch {
	b := make(Batch, 0, len(vs))
	for _, v := range vs {
		b = append(b, Of(v))
	}
	return b
}

// Describe renders an outcome for logs.
func Describe(o Outcome) string {
	switch x := o.(type) {
	case Text:
		return fmt.Sprintf("text(%q)", x.Body)
	case Move:
		return "move(" + x.Path + ")"
	case Redirect:
		return "redirect(" + x.Path + ")"
	case Batch:
		return fmt.Sprintf("batch(%d)", len(x))
	case Invalid:
		return fmt.Sprintf("invalid(%T)", x.Value)
	case nil:
		return "nil"
	}
	return o.Kind().String()
}
