package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"

	"github.com/EgorLis/slackrtm/pkg/rtm"
)

// quoted arguments stay whole: !say "hello there"
var reArg = regexp.MustCompile(`"([^"]*)"|(\S+)`)

var errUnknownCommand = errors.New("unknown command. try !help")

func (w *workspace) onMessage(ctx context.Context, ev *rtm.Event) error {
	w.events.Add(1)

	// edits, joins, bot posts and our own echoes are not commands
	if ev.Data.String("subtype") != "" || ev.Data.String("bot_id") != "" {
		return nil
	}
	selfID, _, _ := w.identity()
	if user := ev.Data.String("user"); user != "" && user == selfID {
		return nil
	}

	text := strings.TrimSpace(ev.Data.String("text"))
	channel := ev.Data.String("channel")
	if channel == "" || !strings.HasPrefix(text, w.prefix) {
		return nil
	}

	w.commands.Add(1)
	w.log.WithField("channel", channel).WithField("user", ev.Data.String("user")).Debug(text)

	reply, err := w.handleCommand(ev, channel, strings.TrimPrefix(text, w.prefix))
	if err != nil {
		reply = fmt.Sprintf("err: %v", err)
	}
	if reply == "" {
		return nil
	}
	w.say(ctx, ev, channel, reply)
	return nil
}

// handleCommand runs one command (prefix already stripped) and returns the
// text to post back, if any.
func (w *workspace) handleCommand(ev *rtm.Event, channel, text string) (string, error) {
	fields := splitArgs(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToLower(fields[0])
	p := w.prefix

	switch cmd {
	case "help":
		return strings.Join([]string{
			p + "help",
			p + "ping",
			p + "typing",
			p + "stats",
			p + "say <text>",
		}, "\n"), nil

	case "ping":
		// the pong echoes these keys back, see onPong
		err := ev.RTM.Ping(rtm.Payload{
			"reply_channel": channel,
			"sent_at":       time.Now().UnixMilli(),
		})
		return "", err

	case "typing":
		return "", ev.RTM.Typing(channel)

	case "stats":
		_, team, since := w.identity()
		uptime := time.Duration(0)
		if !since.IsZero() {
			uptime = time.Since(since).Truncate(time.Second)
		}
		return fmt.Sprintf("team: %s | events: %d | commands: %d | reconnects: %d | uptime: %s",
			team, w.events.Load(), w.commands.Load(), reconnects(ev.RTM), uptime), nil

	case "say":
		if len(fields) < 2 {
			return "", errors.Errorf("usage: %ssay <text>", p)
		}
		return "", ev.RTM.SendMessage(channel, strings.Join(fields[1:], " "))

	default:
		return "", errUnknownCommand
	}
}

func (w *workspace) onPong(ctx context.Context, ev *rtm.Event) error {
	w.events.Add(1)
	channel := ev.Data.String("reply_channel")
	if channel == "" {
		return nil
	}
	reply := "pong"
	if sent, ok := ev.Data["sent_at"].(float64); ok {
		rtt := time.Since(time.UnixMilli(int64(sent))).Truncate(time.Millisecond)
		reply = fmt.Sprintf("pong (%s)", rtt)
	}
	w.say(ctx, ev, channel, reply)
	return nil
}

// say posts through the Web API so replies survive a websocket reconnect.
func (w *workspace) say(ctx context.Context, ev *rtm.Event, channel, text string) {
	_, _, err := ev.Web.Slack().PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		w.log.WithError(err).WithField("channel", channel).Warn("reply failed")
	}
}

func reconnects(s *rtm.Session) int64 {
	if n := s.Attempts() - 1; n > 0 {
		return n
	}
	return 0
}

func splitArgs(s string) []string {
	var out []string
	for _, m := range reArg.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else {
			out = append(out, m[2])
		}
	}
	return out
}
