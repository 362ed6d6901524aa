// Package terminal is a line-oriented chat front end: it reads commands and
// messages from an input stream and renders the conversation to an output.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/samber/lo"

	"github.com/aelexs/realtime-chat-client/internal/conn"
	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/aelexs/realtime-chat-client/pkg/protocol"
)

// Commands understood by Run.
const (
	CmdReconnect = "/reconnect"
	CmdWho       = "/who"
	CmdHistory   = "/history"
	CmdQuit      = "/quit"
)

// ErrInputClosed is returned when the input stream ends.
var ErrInputClosed = errors.New("input closed")

// Chat is the joined session the terminal drives. *client.Session satisfies it.
type Chat interface {
	Submit(content string) error
	Online() []domain.Username
	History(ctx context.Context, limit int) ([]domain.Message, error)
	Reconnect(ctx context.Context) error
	Close() error
}

// Options configures a Terminal.
type Options struct {
	// Colours enables ANSI styling.
	Colours bool
	// Self is highlighted differently from other participants.
	Self string
}

// Terminal renders events and reads user input. Render methods may be
// called from any goroutine.
type Terminal struct {
	out   io.Writer
	lines <-chan string
	opts  Options

	stop     chan struct{} // closed by Close; releases the reader
	stopOnce sync.Once

	mu      sync.Mutex // serializes writes to out
	pending string

	nameStyle  color.Style
	selfStyle  color.Style
	infoStyle  color.Style
	warnStyle  color.Style
	errorStyle color.Style
}

// New creates a Terminal reading lines from in. Reading starts immediately
// and stops at the end of in or after Close.
func New(in io.Reader, out io.Writer, opts Options) *Terminal {
	lines := make(chan string)
	stop := make(chan struct{})
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 4096), domain.MaxFrameSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
	}()

	return &Terminal{
		out:        out,
		lines:      lines,
		opts:       opts,
		stop:       stop,
		nameStyle:  color.New(color.FgCyan, color.OpBold),
		selfStyle:  color.New(color.FgGreen, color.OpBold),
		infoStyle:  color.New(color.FgGray),
		warnStyle:  color.New(color.FgYellow),
		errorStyle: color.New(color.FgRed),
	}
}

// Close stops reading input. A read already blocked on in returns at the
// next line or the end of in. Safe to call more than once.
func (t *Terminal) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// SetSelf sets the name rendered as the local user.
func (t *Terminal) SetSelf(username string) {
	t.mu.Lock()
	t.opts.Self = username
	t.mu.Unlock()
}

// AskUsername prompts for a name until a non-blank line is entered.
func (t *Terminal) AskUsername(ctx context.Context) (string, error) {
	for {
		t.printf("%s", "username: ")
		line, err := t.next(ctx)
		if err != nil {
			return "", err
		}
		if name := strings.TrimSpace(line); name != "" {
			return name, nil
		}
	}
}

// Run reads lines until /quit, the end of input, or ctx is done, and then
// closes the terminal. Lines that cannot be sent because the connection is
// down are kept as pending and resent by an empty line.
func (t *Terminal) Run(ctx context.Context, chat Chat) error {
	defer t.Close()
	for {
		line, err := t.next(ctx)
		if err != nil {
			if errors.Is(err, ErrInputClosed) {
				return nil
			}
			return err
		}

		cmd := strings.TrimSpace(line)
		if fields := strings.Fields(cmd); len(fields) > 0 && fields[0] == CmdHistory {
			t.showHistory(ctx, chat, strings.Join(fields[1:], " "))
			continue
		}

		switch cmd {
		case CmdQuit:
			return chat.Close()
		case CmdWho:
			t.renderRoster(chat.Online())
		case CmdReconnect:
			if err := chat.Reconnect(ctx); err != nil {
				t.renderError("reconnect failed", err)
			}
		case "":
			if t.pending != "" {
				t.submit(chat, t.pending)
			}
		default:
			t.submit(chat, line)
		}
	}
}

// Pending returns the input kept after a failed submit.
func (t *Terminal) Pending() string {
	return t.pending
}

func (t *Terminal) submit(chat Chat, content string) {
	err := chat.Submit(content)
	switch {
	case err == nil:
		t.pending = ""
	case domain.IsInputRejected(err):
		t.renderError("not sent", err)
	case domain.IsRecoverable(err):
		t.pending = content
		t.warnf("not connected; %s then press enter to resend", CmdReconnect)
	default:
		t.pending = content
		t.renderError("not sent", err)
	}
}

// showHistory prints the server's recent messages. The session log is
// left alone.
func (t *Terminal) showHistory(ctx context.Context, chat Chat, arg string) {
	limit := domain.HistoryFetchLimit
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			t.renderError("history", fmt.Errorf("%w: limit must be a positive number, got %q", domain.ErrInvalidInput, arg))
			return
		}
		limit = n
	}

	messages, err := chat.History(ctx, limit)
	if err != nil {
		t.renderError("history", err)
		return
	}
	t.infof("last %d messages", len(messages))
	for _, m := range messages {
		t.renderMessage(m)
	}
}

func (t *Terminal) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-t.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return line, nil
	}
}

// OnEvent renders a session event. It has the signature of stream.Observer.
func (t *Terminal) OnEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.History:
		for _, m := range e.Messages {
			t.renderMessage(m)
		}
	case protocol.NewMessage:
		t.renderMessage(e.Message)
	case protocol.UserJoined:
		t.infof("%s joined", e.Username)
	case protocol.UserLeft:
		t.infof("%s left", e.Username)
	}
}

// OnStateChange renders connection transitions.
func (t *Terminal) OnStateChange(c conn.StateChange) {
	switch c.To {
	case conn.Connected:
		t.infof("connected")
	case conn.Errored:
		t.warnf("connection lost, reconnecting… (%s)", CmdReconnect)
	case conn.Disconnected:
		// A fault was already announced by the Errored transition.
		if !conn.IsFault(c) {
			t.infof("disconnected")
		}
	}
}

func (t *Terminal) renderMessage(m domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	style := t.nameStyle
	if m.Username == t.opts.Self {
		style = t.selfStyle
	}
	stamp := ""
	if !m.Timestamp.IsZero() {
		stamp = t.style(t.infoStyle, m.Timestamp.Local().Format(time.TimeOnly)) + " "
	}
	fmt.Fprintf(t.out, "%s%s: %s\n", stamp, t.style(style, m.Username), m.Content)
}

func (t *Terminal) renderRoster(online []domain.Username) {
	if len(online) == 0 {
		t.infof("nobody online")
		return
	}
	names := lo.Map(online, func(u domain.Username, _ int) string { return u.String() })
	t.infof("online: %s", strings.Join(names, ", "))
}

func (t *Terminal) renderError(what string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.style(t.errorStyle, what+": "+err.Error()))
}

func (t *Terminal) infof(format string, args ...any) {
	t.line(t.infoStyle, fmt.Sprintf(format, args...))
}

func (t *Terminal) warnf(format string, args ...any) {
	t.line(t.warnStyle, fmt.Sprintf(format, args...))
}

func (t *Terminal) line(style color.Style, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.style(style, "* "+text))
}

func (t *Terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *Terminal) style(s color.Style, text string) string {
	if !t.opts.Colours {
		return text
	}
	return s.Render(text)
}
