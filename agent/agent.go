// Package agent turns a conversation into an action on the portfolio.
//
// The Agent drives a Reasoner through a bounded loop: read tools are executed right away
// against an immutable snapshot, write tools become confirmations that are applied only once
// the user accepts them.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/etnz/folio"
	"github.com/etnz/folio/analytics"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/mutation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Loop bounds.
const (
	DefaultMaxReadRounds          = 3
	DefaultMaxClarificationRounds = 2
)

// Pending confirmation bounds.
const (
	DefaultPendingTTL = 30 * time.Minute
	DefaultMaxPending = 100
)

// ResultType tags a Result.
type ResultType string

const (
	Navigate          ResultType = "navigate"
	Text              ResultType = "text"
	WriteConfirm      ResultType = "write_confirm"
	WriteConfirmQueue ResultType = "write_confirm_queue"
)

// Confirmation is a write waiting for the user's approval. Execute it with Agent.Execute.
type Confirmation struct {
	ID      string                `json:"id"`
	Message string                `json:"confirmationMessage"`
	Write   mutation.PendingWrite `json:"write"`
}

// Result is the outcome of one command.
type Result struct {
	Type          ResultType     `json:"type"`
	Route         string         `json:"route,omitempty"`
	Message       string         `json:"message,omitempty"`
	Confirmation  *Confirmation  `json:"confirmation,omitempty"`
	Confirmations []Confirmation `json:"confirmations,omitempty"`
}

// Applier applies a confirmed write.
type Applier interface {
	Apply(ctx context.Context, w mutation.PendingWrite) (mutation.Outcome, error)
}

// Publisher is told about every successful write.
type Publisher interface {
	Publish(ctx context.Context, o mutation.Outcome) error
}

// Agent handles commands. Reasoner and Applier are required, everything else is optional.
//
// A command makes at most MaxReadRounds reasoning calls that only read. If the last of them
// still asks for reads, their results are sent back in one more call without the read tools,
// then up to MaxClarificationRounds calls follow.
type Agent struct {
	Reasoner  Reasoner
	Applier   Applier
	Publisher Publisher
	Metrics   *Metrics
	Log       *zap.Logger
	// Today defaults to date.Today.
	Today func() date.Date

	// Zero means the default bound. A negative MaxClarificationRounds disables clarification.
	MaxReadRounds          int
	MaxClarificationRounds int

	// Confirmations neither executed nor discarded are dropped after PendingTTL, and the
	// oldest ones go first when more than MaxPending are waiting. Zero means the default.
	PendingTTL time.Duration
	MaxPending int

	mu      sync.Mutex
	pending map[string]pendingWrite
	now     func() time.Time
}

type pendingWrite struct {
	mutation.PendingWrite
	at time.Time
}

// New returns an Agent with the default loop bounds.
func New(r Reasoner, ap Applier) *Agent {
	return &Agent{
		Reasoner:               r,
		Applier:                ap,
		MaxReadRounds:          DefaultMaxReadRounds,
		MaxClarificationRounds: DefaultMaxClarificationRounds,
	}
}

func (a *Agent) log() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

func (a *Agent) today() date.Date {
	if a.Today == nil {
		return date.Today()
	}
	return a.Today()
}

// TransferQuestion is asked when a sale does not say what to do with its proceeds.
const TransferQuestion = "Where should the proceeds of this sale go? Name the cash account to move them to, or tell me to leave them where they are."

var (
	// a sale stated as a fact or an order, with a quantity or a whole position.
	saleRe = regexp.MustCompile(`(?i)\b(sold|sell|selling)\b.*(\d|\b(all|entire|whole|everything|rest|my position)\b)`)
	// a hypothetical sale or a question about one, left to the reasoning service.
	hypotheticalRe = regexp.MustCompile(`(?i)(\bwhat if\b|\bif i\b|\bwould\b|\bshould\b|\bsimulat\w*|\bsuppose\b|\?\s*$)`)
	// any mention of what happens to the proceeds, including declining a transfer.
	transferRe = regexp.MustCompile(`(?i)\b(transfer\w*|move[ds]?|moving|deposit\w*|proceeds|checking|savings|cash|keep|leave|stay|no transfer)\b`)
	// a question for data the read tools already answer.
	clarifyRe = regexp.MustCompile(`(?i)(which (account|lot|lots|position|shares|ticker|broker)|how many shares|what (is|are|was|were) (the |your )?(current |purchase |cost )?(price|positions?|holdings?|shares|cost basis|purchase dates?|lots?)|(could|can|would) you (please )?(tell|provide|share|confirm|specify|list))`)
)

// needsTransferQuestion reports whether the last turn is a sale that neither names a proceeds
// destination nor declines one, and does not answer the transfer question.
func needsTransferQuestion(history []Turn) bool {
	last := history[len(history)-1].Content
	if !saleRe.MatchString(last) || hypotheticalRe.MatchString(last) || transferRe.MatchString(last) {
		return false
	}
	if len(history) >= 2 {
		prev := history[len(history)-2]
		if prev.Role == Assistant && strings.Contains(prev.Content, TransferQuestion) {
			return false
		}
	}
	return true
}

func isClarifyingQuestion(text string) bool {
	return strings.Contains(text, "?") && clarifyRe.MatchString(text)
}

func systemPrompt(today date.Date) string {
	return fmt.Sprintf(`You manage the user's investment and cash portfolio. Today is %v.

Use the read tools to look at the portfolio before answering; never ask the user for figures
the tools can give you. To change the portfolio call the write tools: every call is shown to
the user for confirmation before anything is saved. To show a page call %s.

Be concise. Amounts are in US dollars. Tool catalog version %s.`, today, NavigateTo, SchemaVersion)
}

// Handle processes the last user turn of history against snap. The returned error is only set
// when the reasoning service fails or ctx is done: nothing has been written by then.
func (a *Agent) Handle(ctx context.Context, history []Turn, snap *folio.Snapshot) (Result, *Trace, error) {
	start := time.Now()
	trace := newTrace(a.log())
	if len(history) == 0 || history[len(history)-1].Role != User {
		return Result{}, trace, folio.ValidationError{Field: "messages", Reason: "the conversation must end with a user turn"}
	}
	res, err := a.handle(ctx, slices.Clone(history), snap, trace)
	if err != nil {
		trace.Add("failed", "%v", err)
		a.log().Warn("command failed", zap.Error(err))
		return Result{}, trace, err
	}
	trace.Add("result", "%s", res.Type)
	a.Metrics.command(res.Type, start)
	return res, trace, nil
}

func (a *Agent) handle(ctx context.Context, msgs []Turn, snap *folio.Snapshot, trace *Trace) (Result, error) {
	trace.Add("start", "%d turns", len(msgs))
	if needsTransferQuestion(msgs) {
		trace.Add("transfer_clarification", "sale without a proceeds destination")
		return Result{Type: Text, Message: TransferQuestion}, nil
	}

	env := Env{Snapshot: snap, Today: a.today()}
	lib := NewLibrary(ReadTools)
	maxRead := a.MaxReadRounds
	if maxRead <= 0 {
		maxRead = DefaultMaxReadRounds
	}

	var resp *Response
	for round := 1; ; round++ {
		var err error
		resp, err = a.reason(ctx, env.Today, msgs, Catalog())
		if err != nil {
			return Result{}, err
		}
		uses := resp.ToolUses()
		if len(uses) == 0 || !allRead(uses) {
			trace.Add("read_loop_exit", "round %d, %d tool calls", round, len(uses))
			break
		}
		msgs = a.readRound(ctx, lib, env, msgs, resp, round, trace)
		if round == maxRead {
			trace.Add("read_loop_cap", "%d rounds, read tools withheld", round)
			resp, err = a.reason(ctx, env.Today, msgs, withoutReads(Catalog()))
			if err != nil {
				return Result{}, err
			}
			break
		}
	}

	maxClarify := a.MaxClarificationRounds
	switch {
	case maxClarify == 0:
		maxClarify = DefaultMaxClarificationRounds
	case maxClarify < 0:
		maxClarify = 0
	}
	for round := 1; round <= maxClarify && len(resp.ToolUses()) == 0 && isClarifyingQuestion(resp.Text()); round++ {
		trace.Add("clarification_round", "%d: %q", round, resp.Text())
		ctxTurn, err := expandedContext(snap, env.Today)
		if err != nil {
			return Result{}, err
		}
		msgs = append(msgs, Turn{Role: Assistant, Content: resp.Text()}, ctxTurn)
		resp, err = a.reason(ctx, env.Today, msgs, withoutReads(Catalog()))
		if err != nil {
			return Result{}, err
		}
	}

	return a.resolve(resp, trace), nil
}

func allRead(uses []ToolUse) bool {
	for _, u := range uses {
		if !IsRead(u.Name) {
			return false
		}
	}
	return true
}

func withoutReads(tools []Tool) []Tool {
	return slices.DeleteFunc(tools, func(t Tool) bool { return IsRead(t.Name) })
}

func (a *Agent) reason(ctx context.Context, today date.Date, msgs []Turn, tools []Tool) (*Response, error) {
	resp, err := a.Reasoner.Reason(ctx, Request{SystemPrompt: systemPrompt(today), Tools: tools, Messages: msgs})
	a.Metrics.reasoned(err)
	if err != nil {
		return nil, fmt.Errorf("reasoning failed: %w", err)
	}
	return resp, nil
}

// readRound executes the read tool calls of resp concurrently and appends the call and its
// results to msgs. A failing tool is reported in its result.
func (a *Agent) readRound(ctx context.Context, lib Library, env Env, msgs []Turn, resp *Response, round int, trace *Trace) []Turn {
	uses := resp.ToolUses()
	for i := range uses {
		if uses[i].ID == "" {
			uses[i].ID = fmt.Sprintf("call_%d_%d", round, i)
		}
	}
	trace.Add("read_round", "%d: %s", round, strings.Join(names(uses), ", "))

	results := make([]ToolResult, len(uses))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range uses {
		g.Go(func() error {
			results[i] = lib(gctx, env, u)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		a.Metrics.tool(r.Name, r.IsError)
		if r.IsError {
			trace.Add("tool_error", "%s: %v", r.Name, r.Content)
		}
	}
	return append(msgs,
		Turn{Role: Assistant, Content: resp.Text(), ToolUses: uses},
		Turn{Role: User, ToolResults: results},
	)
}

func names(uses []ToolUse) []string {
	out := make([]string, len(uses))
	for i, u := range uses {
		out[i] = u.Name
	}
	return out
}

// expandedContext returns a user turn holding every position and transaction, unfiltered.
func expandedContext(snap *folio.Snapshot, today date.Date) (Turn, error) {
	data := map[string]any{
		"positions":    analytics.Positions(snap, analytics.PositionFilter{}),
		"transactions": analytics.Transactions(snap, today, analytics.TransactionFilter{}),
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to encode portfolio context: %w", err)
	}
	return Turn{Role: User, Content: "Here is my whole portfolio. Answer from it instead of asking me:\n" + string(b)}, nil
}

func (a *Agent) resolve(resp *Response, trace *Trace) Result {
	uses := resp.ToolUses()
	for _, u := range uses {
		if u.Name != NavigateTo {
			continue
		}
		route, _ := u.Input["route"].(string)
		if !slices.Contains(Routes, route) {
			trace.Add("resolve", "unknown route %q", route)
			return Result{Type: Text, Message: fmt.Sprintf("I cannot open %q, the available pages are %s.", route, strings.Join(Routes, ", "))}
		}
		trace.Add("resolve", "navigate to %s", route)
		return Result{Type: Navigate, Route: route}
	}

	var writes []mutation.PendingWrite
	for _, u := range uses {
		if !mutation.IsWrite(u.Name) {
			continue
		}
		w, err := mutation.Prepare(u.Name, u.Input)
		if err != nil {
			trace.Add("resolve", "cannot prepare %s: %v", u.Name, err)
			return Result{Type: Text, Message: fmt.Sprintf("I could not prepare that change: %v", err)}
		}
		writes = append(writes, w)
	}
	if len(writes) > 0 {
		confirmations := make([]Confirmation, len(writes))
		a.mu.Lock()
		if a.pending == nil {
			a.pending = make(map[string]pendingWrite)
		}
		now := a.clock()
		for i, w := range writes {
			a.pending[w.ID] = pendingWrite{PendingWrite: w, at: now}
			confirmations[i] = Confirmation{ID: w.ID, Message: w.Summary, Write: w}
		}
		if n := a.prunePending(now); n > 0 {
			trace.Add("pending_pruned", "%d confirmations dropped", n)
		}
		a.mu.Unlock()
		trace.Add("resolve", "%d confirmations", len(confirmations))
		if len(confirmations) == 1 {
			return Result{Type: WriteConfirm, Message: confirmations[0].Message, Confirmation: &confirmations[0]}
		}
		return Result{Type: WriteConfirmQueue, Confirmations: confirmations}
	}

	text := resp.Text()
	if text == "" {
		text = "I could not find an answer to that."
	}
	trace.Add("resolve", "text")
	return Result{Type: Text, Message: text}
}

// Execute applies the confirmation id. A confirmation runs at most once: it is forgotten
// before being applied, so a failed write must be asked for again.
func (a *Agent) Execute(ctx context.Context, id string) (mutation.Outcome, error) {
	a.mu.Lock()
	a.prunePending(a.clock())
	p, ok := a.pending[id]
	delete(a.pending, id)
	a.mu.Unlock()
	if !ok {
		return mutation.Outcome{}, folio.NotFoundError{Kind: "confirmation", Name: id}
	}
	w := p.PendingWrite

	out, err := a.Applier.Apply(ctx, w)
	a.Metrics.write(string(w.Kind), err)
	if err != nil {
		return out, err
	}
	if a.Publisher != nil {
		if perr := a.Publisher.Publish(ctx, out); perr != nil {
			a.log().Warn("failed to publish write", zap.String("write", w.ID), zap.Error(perr))
		}
	}
	return out, nil
}

// Discard forgets the confirmation id. It reports whether it was pending.
func (a *Agent) Discard(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prunePending(a.clock())
	_, ok := a.pending[id]
	delete(a.pending, id)
	return ok
}

func (a *Agent) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

// prunePending drops expired confirmations, then the oldest ones above the cap. It returns
// how many were dropped. a.mu must be held.
func (a *Agent) prunePending(now time.Time) int {
	ttl, limit := a.PendingTTL, a.MaxPending
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	if limit <= 0 {
		limit = DefaultMaxPending
	}
	dropped := 0
	for id, p := range a.pending {
		if now.Sub(p.at) > ttl {
			delete(a.pending, id)
			dropped++
		}
	}
	if excess := len(a.pending) - limit; excess > 0 {
		ids := slices.Collect(maps.Keys(a.pending))
		slices.SortFunc(ids, func(x, y string) int { return a.pending[x].at.Compare(a.pending[y].at) })
		for _, id := range ids[:excess] {
			delete(a.pending, id)
		}
		dropped += excess
	}
	if dropped > 0 {
		a.log().Info("dropped pending confirmations", zap.Int("count", dropped))
	}
	return dropped
}
