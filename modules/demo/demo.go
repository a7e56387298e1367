// Package demo is a small order-status bot used by the console transport and
// by tests. It shows the main moves a flow can make: greeting with buttons,
// menu branching by redirect, a sub-flow included under a prefix, input
// validation that loops in place, background work and the closing actions.
package demo

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/specialistvlad/chatgraph/internal/handlers"
	"github.com/specialistvlad/chatgraph/internal/message"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/registry"
)

// Order statuses returned by the lookup.
var statuses = []string{"received", "packed", "shipped", "delivered"}

// Module registers the demo flow.
type Module struct {
	// LookupDelay simulates a slow backend in the order lookup.
	LookupDelay time.Duration
}

// Register adds the root, the menu and the orders sub-flow.
func (m *Module) Register(t *registry.Table) error {
	t.Register("start", handlers.Plain(greet), handlers.Returns(outcome.KindBatch))
	t.Register("start.menu", handlers.Plain(menu), handlers.WithEvent())

	orders := registry.New()
	orders.Register("start", handlers.Plain(askOrder), handlers.WithRoute())
	orders.Register("start.lookup", handlers.Plain(m.lookup), handlers.WithEvent())
	return t.Include(orders, "start.orders")
}

func greet(context.Context, *handlers.Request) (any, error) {
	msg := message.NewText("Hi! What can I do for you?").WithButtons("Order status", "Talk to a person", "Quit")
	msg.Text.Title = "Welcome"
	return outcome.Seq(msg, outcome.Move{Path: "start.menu"}), nil
}

func menu(_ context.Context, req *handlers.Request) (any, error) {
	switch strings.ToLower(strings.TrimSpace(req.Content())) {
	case "1", "order status":
		return outcome.Redirect{Path: "start.orders"}, nil
	case "2", "talk to a person":
		return outcome.Seq(
			"Transferring you to a person.",
			outcome.TransferToHuman{CampaignName: "support"},
		), nil
	case "3", "quit":
		end, err := outcome.NewEndChat("", "solved", "closed from menu")
		if err != nil {
			return nil, err
		}
		return outcome.Seq("Bye!", end, outcome.Move{Path: "start"}), nil
	}
	return "Please pick 1, 2 or 3.", nil
}

func askOrder(_ context.Context, req *handlers.Request) (any, error) {
	next, err := req.Route.Next("lookup")
	if err != nil {
		return nil, err
	}
	return outcome.Seq("Type your order number.", outcome.Move{Path: next.String()}), nil
}

// lookup answers at once and finishes in the background, returning the
// session to the menu afterwards.
func (m *Module) lookup(_ context.Context, req *handlers.Request) (any, error) {
	number := strings.TrimSpace(req.Content())
	if number == "" || strings.IndexFunc(number, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return outcome.Seq("Order numbers only have digits. Try again.", nil), nil
	}
	delay := m.LookupDelay
	task := func(ctx context.Context) (outcome.Outcome, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		status := statuses[orderIndex(number)]
		return outcome.Seq(
			fmt.Sprintf("Order %s is %s.", number, status),
			outcome.Move{Path: "start.menu"},
		), nil
	}
	return outcome.Seq(
		"Looking it up...",
		outcome.Background{Name: "order-lookup", Task: task},
	), nil
}

func orderIndex(number string) int {
	sum := 0
	for _, r := range number {
		sum += int(r - '0')
	}
	return sum % len(statuses)
}
