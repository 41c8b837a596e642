package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"switchdesk/internal/cli/command"
	"switchdesk/internal/cli/form"
	"switchdesk/internal/cli/grid"
	httpclient "switchdesk/internal/cli/http"
	"switchdesk/internal/cli/state"
	pkgrepo "switchdesk/pkg/repository"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const (
	defaultPrompt = "switchdesk> "
	livePrompt    = "search> "
)

var errExit = errors.New("exit")

// LineReader reads one line of input.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Options wires a Session.
type Options struct {
	Client     *httpclient.Client
	Commands   map[string]command.Command
	Grid       *grid.Controller
	Form       *form.ProblemForm
	View       *state.ViewState
	StatePath  string
	PrettyJSON bool
	Out        io.Writer
}

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	grid       *grid.Controller
	form       *form.ProblemForm
	view       *state.ViewState
	statePath  string
	prettyJSON bool

	in    LineReader
	outMu sync.Mutex
	out   io.Writer
	live  atomic.Bool
}

func New(opts Options) *Session {
	return &Session{
		client:     opts.Client,
		commands:   opts.Commands,
		grid:       opts.Grid,
		form:       opts.Form,
		view:       opts.View,
		statePath:  opts.StatePath,
		prettyJSON: opts.PrettyJSON,
		out:        opts.Out,
	}
}

// Run reads commands until exit or end of input.
func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          defaultPrompt,
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Listener:        readline.FuncListener(s.onKey),
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() { _ = rl.Close() }()
	s.in = rl
	s.out = rl.Stdout()

	noticeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go s.watchNotices(noticeCtx, rl)

	s.printLine("type 'help' for commands")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input failed: %w", err)
		}
		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				s.printLine("bye")
				return nil
			}
			s.printLine("error: %v", err)
		}
	}
}

// onKey forwards every keystroke to the debouncer while in live search.
func (s *Session) onKey(line []rune, pos int, key rune) ([]rune, int, bool) {
	if s.live.Load() && key != 0 && key != '\r' && key != '\n' {
		s.grid.Type(string(line))
	}
	return nil, 0, false
}

// watchNotices reports fetches started by the debouncer during live search.
func (s *Session) watchNotices(ctx context.Context, rl *readline.Instance) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.grid.Notices():
			if !s.live.Load() {
				continue
			}
			switch n.Kind {
			case grid.NoticeFailed:
				s.printLine("! %s", n.Message)
			case grid.NoticeUpdated:
				snap := s.grid.Snapshot()
				s.printLine("  %q: %s", snap.Search, s.grid.Pagination().Info())
			}
			rl.Refresh()
		}
	}
}

// Execute runs one input line.
func (s *Session) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	name, args := tokens[0], tokens[1:]
	switch name {
	case "exit", "quit":
		return errExit
	case "help":
		s.printHelp()
		return nil
	case "set":
		return s.handleSet(args)
	case "show":
		return s.handleShow(args)
	case "view", "refresh":
		return s.viewAction(ctx, s.grid.Refresh)
	case "search":
		text := strings.Join(args, " ")
		return s.viewAction(ctx, func(ctx context.Context) error { return s.grid.Search(ctx, text) })
	case "live":
		return s.liveSearch(ctx)
	case "sort":
		sort, err := pkgrepo.ParseSort(strings.Join(args, ","))
		if err != nil {
			return err
		}
		return s.viewAction(ctx, func(ctx context.Context) error { return s.grid.SetSort(ctx, sort) })
	case "toggle":
		if len(args) != 1 {
			return fmt.Errorf("usage: toggle <column>")
		}
		return s.viewAction(ctx, func(ctx context.Context) error { return s.grid.ToggleSort(ctx, args[0]) })
	case "page":
		if len(args) != 1 {
			return fmt.Errorf("usage: page <n>")
		}
		n, err := command.ParseInt(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid page: %s", args[0])
		}
		return s.viewAction(ctx, func(ctx context.Context) error { return s.grid.SetPage(ctx, n-1) })
	case "next":
		return s.viewAction(ctx, s.grid.NextPage)
	case "prev":
		return s.viewAction(ctx, s.grid.PreviousPage)
	case "size":
		if len(args) != 1 {
			return fmt.Errorf("usage: size <%s>", joinInts(grid.PageSizes, "|"))
		}
		n, err := command.ParseInt(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid page size: %s", args[0])
		}
		return s.viewAction(ctx, func(ctx context.Context) error { return s.grid.SetPageSize(ctx, n) })
	case "chart":
		s.outMu.Lock()
		defer s.outMu.Unlock()
		return grid.RenderChart(s.out, s.grid.Snapshot().Aggregates)
	case "new":
		return s.fillForm(ctx)
	}

	if len(tokens) < 2 {
		return fmt.Errorf("unknown command: %s", name)
	}
	return s.handleCommand(ctx, tokens)
}

// viewAction applies a grid change, renders the table and saves the view.
func (s *Session) viewAction(ctx context.Context, action func(context.Context) error) error {
	if err := action(ctx); err != nil {
		if errors.Is(err, grid.ErrStale) {
			return nil
		}
		s.render()
		return err
	}
	s.render()
	s.saveView()
	return nil
}

func (s *Session) liveSearch(ctx context.Context) error {
	if s.in == nil {
		return fmt.Errorf("live search needs a terminal")
	}
	s.printLine("live search: type to filter, enter to finish")
	s.in.SetPrompt(livePrompt)
	s.live.Store(true)
	line, err := s.in.Readline()
	s.live.Store(false)
	s.in.SetPrompt(defaultPrompt)
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) {
			return nil
		}
		return err
	}
	return s.viewAction(ctx, func(ctx context.Context) error { return s.grid.Search(ctx, line) })
}

func (s *Session) render() {
	w := s.out
	s.outMu.Lock()
	defer s.outMu.Unlock()
	snap := s.grid.Snapshot()
	if snap.Search != "" {
		fmt.Fprintf(w, "search: %q\n", snap.Search)
	}
	_ = grid.RenderTable(w, snap)
	_ = grid.RenderPagination(w, s.grid.Pagination())
}

func (s *Session) saveView() {
	if s.view == nil || s.statePath == "" {
		return
	}
	snap := s.grid.Snapshot()
	s.view.Search = snap.Search
	s.view.Sort = snap.Sort
	s.view.PageSize = snap.Page.PageSize
	if err := state.Save(s.statePath, *s.view); err != nil {
		s.printLine("save view state failed: %v", err)
	}
}

// fillForm walks the creation form field by field. An empty answer keeps
// the current value.
func (s *Session) fillForm(ctx context.Context) error {
	if s.in == nil {
		return fmt.Errorf("form needs a terminal")
	}
	if err := s.form.LoadOperators(ctx); err != nil {
		s.printLine("! %v", err)
	}
	for _, field := range form.Fields {
		hint := ""
		switch field {
		case "operator":
			if ops := s.form.Operators(); len(ops) > 0 {
				hint = " [" + strings.Join(ops, ", ") + "]"
			}
		case "commutator":
			req := s.form.Request()
			if coms := s.form.Commutators(); len(coms) > 0 {
				hint = " [" + strings.Join(coms, ", ") + "]"
			}
			if req.Commutator != "" {
				hint += " (" + req.Commutator + ")"
			}
		}
		s.in.SetPrompt(field + hint + ": ")
		value, err := s.in.Readline()
		if err != nil {
			s.in.SetPrompt(defaultPrompt)
			return fmt.Errorf("form aborted: %w", err)
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		if field == "commutator" {
			if s.form.SetCommutator(value) {
				s.printLine("  new commutator %q", strings.TrimSpace(value))
			}
			continue
		}
		if err := s.form.Set(ctx, field, value); err != nil {
			s.printLine("! %v", err)
		}
	}
	s.in.SetPrompt(defaultPrompt)

	result := s.form.Submit(ctx)
	if !result.Success {
		for _, name := range form.Fields {
			if msg, ok := result.Fields[name]; ok {
				s.printLine("  %s: %s", name, msg)
			}
		}
		return fmt.Errorf("create failed: %s", result.Error)
	}
	s.printLine("created problem %d", result.Data.ID)
	return s.viewAction(ctx, s.grid.Refresh)
}

func (s *Session) handleSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set base|timeout <value>")
	}
	switch args[0] {
	case "base":
		s.client.SetBaseURL(args[1])
		if s.view != nil {
			s.view.BaseURL = args[1]
			s.saveView()
		}
		s.printLine("base set to %s", args[1])
	case "timeout":
		dur, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	default:
		return fmt.Errorf("unknown set command: %s", args[0])
	}
	return nil
}

func (s *Session) handleShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show config|view")
	}
	switch args[0] {
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("statePath: %s", s.statePath)
	case "view":
		snap := s.grid.Snapshot()
		s.printLine("search: %q", snap.Search)
		s.printLine("sort: %s", pkgrepo.FormatSort(snap.Sort))
		s.printLine("page: %d  size: %d", snap.Page.PageIndex+1, snap.Page.PageSize)
	default:
		return fmt.Errorf("usage: show config|view")
	}
	return nil
}

func (s *Session) handleCommand(ctx context.Context, tokens []string) error {
	key := tokens[0] + " " + tokens[1]
	cmd, ok := s.commands[key]
	if !ok {
		return fmt.Errorf("unknown command: %s", key)
	}
	params := command.Params{}
	for _, token := range tokens[2:] {
		name, value, found := strings.Cut(token, "=")
		if !found {
			return fmt.Errorf("invalid param: %s", token)
		}
		params.Set(name, value)
	}
	if err := s.promptMissing(&cmd, params); err != nil {
		return err
	}

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	return nil
}

func (s *Session) promptMissing(cmd *command.Command, params command.Params) error {
	params.Canonicalize(cmd.Fields)
	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		if s.in == nil {
			return fmt.Errorf("%s is required", field.Name)
		}
		s.in.SetPrompt(field.Prompt + ": ")
		value, err := s.in.Readline()
		s.in.SetPrompt(defaultPrompt)
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		params.Set(field.Name, strings.TrimSpace(value))
	}
	return nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration.Round(time.Millisecond))
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{}
	services := map[string][]readline.PrefixCompleterInterface{}
	var order []string
	for _, key := range command.SortedKeys(s.commands) {
		cmd := s.commands[key]
		if _, ok := services[cmd.Service]; !ok {
			order = append(order, cmd.Service)
		}
		services[cmd.Service] = append(services[cmd.Service], readline.PcItem(cmd.Action))
	}
	for _, service := range order {
		items = append(items, readline.PcItem(service, services[service]...))
	}
	columns := make([]readline.PrefixCompleterInterface, 0, len(grid.Columns))
	for _, col := range grid.Columns {
		columns = append(columns, readline.PcItem(col))
	}
	items = append(items,
		readline.PcItem("view"), readline.PcItem("search"), readline.PcItem("live"),
		readline.PcItem("sort", columns...), readline.PcItem("toggle", columns...),
		readline.PcItem("page"), readline.PcItem("next"), readline.PcItem("prev"),
		readline.PcItem("size"), readline.PcItem("chart"), readline.PcItem("new"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout")),
		readline.PcItem("show", readline.PcItem("config"), readline.PcItem("view")),
		readline.PcItem("help"), readline.PcItem("exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

func (s *Session) printHelp() {
	s.printLine("table: view | search <text> | live | sort col[:asc|desc] ... | toggle <col>")
	s.printLine("       page <n> | next | prev | size <%s> | chart", joinInts(grid.PageSizes, "|"))
	s.printLine("form:  new")
	s.printLine("raw:   <service> <action> key=value ...")
	for _, key := range command.SortedKeys(s.commands) {
		s.printLine("         %-22s %s", key, s.commands[key].Summary)
	}
	s.printLine("system: help | exit | set base|timeout <value> | show config|view")
}

func (s *Session) printLine(format string, args ...interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, sep)
}
