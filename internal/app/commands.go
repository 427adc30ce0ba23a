package app

import (
	"context"
	"strings"

	"jokebot/internal/transport"
	"jokebot/pkg/logx"
)

const (
	welcomeText = "Hi! I deliver a fresh item from my feeds to this chat every hour.\n" +
		"Commands: /joke — a joke right now, /news — latest news, /stop — unsubscribe."
	unsubscribedText  = "Done! No more hourly messages. Come back with /start."
	notSubscribedText = "This chat is not subscribed. Send /start to subscribe."
)

func (a *App) menuCommands() []transport.BotCommand {
	cmds := []transport.BotCommand{
		{Command: "start", Description: "subscribe to the hourly broadcast"},
		{Command: "stop", Description: "unsubscribe"},
	}
	if _, ok := a.disp.Category("joke"); ok {
		cmds = append(cmds, transport.BotCommand{Command: "joke", Description: "a joke right now"})
	}
	if _, ok := a.disp.Category("news"); ok {
		cmds = append(cmds, transport.BotCommand{Command: "news", Description: "a news item right now"})
	}
	return cmds
}

func (a *App) updateLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			if up.Message == nil {
				continue
			}
			m := *up.Message
			// Commands can block on feed fetches; never stall the loop.
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.handleMessage(ctx, m)
			}()
		}
	}
}

func (a *App) handleMessage(ctx context.Context, m transport.Message) {
	cmd, ok := parseCommand(m.Text)
	if !ok {
		return
	}
	to := transport.ChatTarget{ChatID: m.ChatID}
	log := a.log.With(logx.String("cmd", cmd), logx.Int64("chat_id", m.ChatID))

	var err error
	switch cmd {
	case "start":
		err = a.cmdStart(ctx, to)
	case "stop":
		err = a.cmdStop(ctx, to)
	default:
		// Every remaining command is an on-demand category pull (/joke, /news).
		cat, found := a.disp.Category(cmd)
		if !found {
			log.Debug("unknown command ignored")
			return
		}
		err = a.disp.Deliver(ctx, cat, to)
	}
	if err != nil {
		log.Warn("command failed", logx.Err(err))
	}
}

// parseCommand extracts the bare command name from a message: "/joke" and
// "/joke@SomeBot arg" both yield "joke".
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	tok := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(tok, '@'); i >= 0 {
		tok = tok[:i]
	}
	tok = strings.ToLower(tok)
	if tok == "" {
		return "", false
	}
	return tok, true
}

func (a *App) cmdStart(ctx context.Context, to transport.ChatTarget) error {
	subs := a.stores.Subscribers()
	set := subs.Load(ctx)
	if _, ok := set[to.ChatID]; !ok {
		set[to.ChatID] = struct{}{}
		if err := subs.Save(ctx, set); err != nil {
			return err
		}
	}
	return a.disp.Send(ctx, to, welcomeText)
}

func (a *App) cmdStop(ctx context.Context, to transport.ChatTarget) error {
	subs := a.stores.Subscribers()
	set := subs.Load(ctx)
	if _, ok := set[to.ChatID]; !ok {
		return a.disp.Send(ctx, to, notSubscribedText)
	}
	delete(set, to.ChatID)
	if err := subs.Save(ctx, set); err != nil {
		return err
	}
	return a.disp.Send(ctx, to, unsubscribedText)
}
