package dispatch

import (
	"context"
	"fmt"

	"github.com/specialistvlad/chatgraph/internal/background"
	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/message"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/route"
)

// resolve performs the action for one outcome. Each call, including any
// outbound request and nested redirect cycle, completes before it returns,
// so batch elements are applied strictly in order.
func (t *turn) resolve(ctx context.Context, current route.Path, o outcome.Outcome) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Resolving outcome.", "outcome", outcome.Describe(o), "route", current.String())

	switch x := o.(type) {
	case outcome.Batch:
		for i, el := range x {
			if el == nil {
				el = outcome.Empty{}
			}
			if err := t.resolve(ctx, current, el); err != nil {
				return fmt.Errorf("batch element %d: %w", i, err)
			}
		}
		return nil

	case outcome.Text:
		return t.send(ctx, message.NewText(x.Body))

	case outcome.Message:
		if x.Message == nil {
			logger.Error("Invalid handler outcome dropped.", "reason", "nil message")
			return nil
		}
		return t.send(ctx, x.Message)

	case outcome.Move:
		next, err := current.Splice(x.Path)
		if err != nil {
			return &TargetError{Kind: "move", SessionID: t.sessionID, Path: current.String()}
		}
		if err := t.sess.SetRoute(ctx, next.String()); err != nil {
			return fmt.Errorf("setting route %s: %w", next, err)
		}
		logger.Debug("Route moved.", "from", current.String(), "to", next.String())
		return nil

	case outcome.Redirect:
		return t.redirect(ctx, current, x.Path)

	case outcome.EndChat:
		if x.ID == "" && x.Name == "" {
			return outcome.ErrEndChatTarget
		}
		if err := t.sess.EndChat(ctx, x); err != nil {
			return fmt.Errorf("ending chat: %w", err)
		}
		logger.Info("Chat ended.", "end_action_id", x.ID, "end_action_name", x.Name)
		return nil

	case outcome.TransferToHuman:
		if err := t.sess.TransferToHuman(ctx, x); err != nil {
			return fmt.Errorf("transferring to human: %w", err)
		}
		logger.Info("Chat transferred to human.", "campaign_id", x.CampaignID, "campaign_name", x.CampaignName)
		return nil

	case outcome.TransferToMenu:
		if err := t.sess.TransferToMenu(ctx, x); err != nil {
			return fmt.Errorf("transferring to menu %s: %w", x.Menu, err)
		}
		logger.Info("Chat transferred to menu.", "menu", x.Menu)
		return nil

	case outcome.Background:
		t.spawn(current, x)
		return nil

	case outcome.Empty:
		next := current.Repeat()
		if err := t.sess.SetRoute(ctx, next.String()); err != nil {
			return fmt.Errorf("setting route %s: %w", next, err)
		}
		return nil

	case outcome.Invalid:
		logger.Error("Invalid handler outcome dropped.", "type", fmt.Sprintf("%T", x.Value))
		return nil
	}

	logger.Error("Invalid handler outcome dropped.", "type", fmt.Sprintf("%T", o))
	return nil
}

func (t *turn) send(ctx context.Context, msg *message.Message) error {
	if err := t.sess.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Message sent.", "preview", msg.Preview())
	return nil
}

// spawn hands a background outcome to the runner. The task's result is
// resolved by a fresh turn bound to the same event and session, positioned
// where the spawning cycle was.
func (t *turn) spawn(current route.Path, b outcome.Background) {
	bt := &turn{
		d:         t.d,
		ev:        t.ev,
		sess:      t.sess,
		sessionID: t.sessionID,
		content:   t.content,
		spawnCtx:  t.spawnCtx,
	}
	origin := background.Origin{SessionID: t.sessionID, TurnID: t.ev.TurnID}
	t.d.runner.Go(t.spawnCtx, origin, b.Name, b.Task, func(ctx context.Context, o outcome.Outcome) error {
		if o == nil {
			o = outcome.Empty{}
		}
		return bt.resolve(ctx, current, o)
	})
}
