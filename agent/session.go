package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/folio"
)

// Session is an interactive chat with the Agent, reading commands from r and writing answers to
// w. Confirmations are asked on the same streams.
type Session struct {
	Agent *Agent
	// Snapshot loads the portfolio before each command.
	Snapshot func(ctx context.Context) (*folio.Snapshot, error)
	// Render formats markdown for the terminal. Nil prints it as is.
	Render func(markdown string) string

	w       io.Writer
	r       *bufio.Reader
	history []Turn
}

// NewSession returns a session on w and r.
func NewSession(a *Agent, snapshot func(ctx context.Context) (*folio.Snapshot, error), w io.Writer, r io.Reader) *Session {
	return &Session{Agent: a, Snapshot: snapshot, w: w, r: bufio.NewReader(r)}
}

const prompt = "assist> "

func (s *Session) print(markdown string) {
	if s.Render != nil {
		markdown = s.Render(markdown)
	}
	fmt.Fprintln(s.w, strings.TrimRight(markdown, "\n"))
}

// readLine returns the next trimmed line; io.EOF ends the session.
func (s *Session) readLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Run starts the REPL. prompts are handled first, as if typed by the user.
func (s *Session) Run(ctx context.Context, prompts ...string) error {
	fmt.Fprintln(s.w, "Welcome to folio assist. Type 'bye' to exit.")
	for {
		fmt.Fprint(s.w, prompt)
		var input string
		if len(prompts) > 0 {
			input, prompts = strings.TrimSpace(prompts[0]), prompts[1:]
			if input == "" {
				continue
			}
			fmt.Fprintln(s.w, input)
		} else {
			var err error
			input, err = s.readLine()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
		}
		if input == "" {
			continue
		}
		if input == "bye" {
			return nil
		}
		if err := s.Ask(ctx, input); err != nil {
			return err
		}
	}
}

// Ask handles one user message. Only failures to load the portfolio or to reach the
// reasoning service are returned; rejected writes are printed.
func (s *Session) Ask(ctx context.Context, input string) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("could not load the portfolio: %w", err)
	}
	s.history = append(s.history, Turn{Role: User, Content: input})
	res, _, err := s.Agent.Handle(ctx, s.history, snap)
	if err != nil {
		// forget the unanswered turn so that the user can try again.
		s.history = s.history[:len(s.history)-1]
		return err
	}

	var reply string
	switch res.Type {
	case Navigate:
		reply = "Opening " + res.Route
		s.print(reply)
	case Text:
		reply = res.Message
		s.print(reply)
	case WriteConfirm:
		reply, err = s.confirm(ctx, *res.Confirmation)
	case WriteConfirmQueue:
		var lines []string
		for i, c := range res.Confirmations {
			line, cerr := s.confirm(ctx, c)
			if cerr != nil {
				err = cerr
				for _, rest := range res.Confirmations[i+1:] {
					s.Agent.Discard(rest.ID)
				}
				break
			}
			lines = append(lines, line)
		}
		reply = strings.Join(lines, "\n")
	}
	s.history = append(s.history, Turn{Role: Assistant, Content: reply})
	return err
}

// confirm asks the user to accept c and executes it if they do. It returns what was done.
func (s *Session) confirm(ctx context.Context, c Confirmation) (string, error) {
	s.print(c.Message)
	fmt.Fprint(s.w, "Confirm? [y/N] ")
	answer, err := s.readLine()
	if err != nil && !errors.Is(err, io.EOF) {
		s.Agent.Discard(c.ID)
		return "", err
	}
	if a := strings.ToLower(answer); a != "y" && a != "yes" {
		s.Agent.Discard(c.ID)
		fmt.Fprintln(s.w, "Cancelled.")
		return "Cancelled: " + c.Message, nil
	}
	out, err := s.Agent.Execute(ctx, c.ID)
	if err != nil {
		fmt.Fprintln(s.w, "Failed:", err)
		return fmt.Sprintf("Failed: %s (%v)", c.Message, err), nil
	}
	s.print(out.Message)
	return "Done: " + out.Message, nil
}
