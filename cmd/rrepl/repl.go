package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/npillmayer/rulegen/ast"
	"github.com/npillmayer/rulegen/rewrite"
	"github.com/npillmayer/rulegen/rules"
	"github.com/npillmayer/rulegen/ruleslang"
	"github.com/npillmayer/rulegen/schema"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
)

// main() starts an interactive CLI ("rrepl"), where users may enter trees as
// s-expressions. rrepl applies the rules of a rule file to the tree and prints
// the result.
func main() {
	// set up logging
	initDisplay()
	tracing.SetTraceSelector(tracing.SelectorForAdapter(gologadapter.GetAdapter()))
	tlevel := flag.String("trace", "Info", "Trace level [Debug|Info|Error]")
	rulesf := flag.String("rules", "", "Rule file")
	schemaf := flag.String("schema", "", "Schema file")
	initf := flag.String("init", "", "File with trees to rewrite before going interactive")
	flag.Parse()
	tracer().SetTraceLevel(tracing.LevelInfo) // will set the correct level later
	pterm.Info.Println("Welcome to rrepl")    // colored welcome message
	tracer().Infof("Trace level is %s", *tlevel)
	tracer().SetTraceLevel(tracing.TraceLevelFromString(*tlevel))
	//
	intp, err := newIntp(*rulesf, *schemaf)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(2)
	}
	intp.repl, err = readline.New("rrepl> ")
	if err != nil {
		tracer().Errorf(err.Error())
		os.Exit(3)
	}
	defer intp.repl.Close()
	tracer().Infof("Quit with <ctrl>D") // inform user how to stop the CLI
	intp.loadInitFile(*initf)
	intp.REPL()
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.EnableDebugMessages()
	pterm.Info.Prefix = pterm.Prefix{
		Text:  "  >>",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "  Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

// Intp is our interpreter object
type Intp struct {
	schema    *schema.Schema
	engine    *rules.Engine
	repl      *readline.Instance
	showTree  bool
	lastInput string
	lastValue string // rendering of the most recent result
	count     int    // number of trees rewritten
}

// newIntp loads a schema and a rule file and prepares an engine for them.
func newIntp(rulesFile, schemaFile string) (*Intp, error) {
	if rulesFile == "" || schemaFile == "" {
		return nil, errors.New("need a rule file (-rules) and a schema (-schema)")
	}
	s, err := schema.Load(schemaFile)
	if err != nil {
		return nil, err
	}
	rs, err := ruleslang.LoadRules(rulesFile, s)
	if err != nil {
		return nil, err
	}
	prog, err := rules.Compile(rulesFile, rs, s)
	if err != nil {
		return nil, err
	}
	engine, err := rules.NewEngine(prog, nil, rules.SkipUnresolved())
	if err != nil {
		return nil, err
	}
	for i, r := range prog.Rules {
		if engine.Skipped(i) {
			pterm.Info.Println(fmt.Sprintf("skipping rule at line %d: %s", r.Line, r))
		}
	}
	tracer().Infof("%d rules loaded from %s", prog.Size(), rulesFile)
	return &Intp{schema: s, engine: engine}, nil
}

func (intp *Intp) loadInitFile(filename string) {
	if filename == "" {
		return
	}
	f, err := os.Open(filename)
	if err != nil {
		tracer().Errorf("Unable to open init file: %s", filename)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if _, err := intp.Eval(line); err != nil {
			pterm.Error.Println(fmt.Sprintf("%s:%d: %v", filename, lineno, err))
		}
	}
	if err := scanner.Err(); err != nil {
		tracer().Errorf("Error while reading init file: " + err.Error())
	}
}

// REPL starts interactive mode.
func (intp *Intp) REPL() {
	for {
		line, err := intp.repl.Readline()
		if err != nil { // io.EOF
			break
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		quit, err := intp.Eval(line)
		if err != nil {
			pterm.Error.Println(err.Error())
			continue
		}
		if quit {
			break
		}
	}
	println("Good bye!")
}

// Eval evaluates a line of input: either a command or a tree.
func (intp *Intp) Eval(line string) (bool, error) {
	if strings.HasPrefix(line, ":") {
		return intp.Execute(strings.Fields(line[1:]))
	}
	intp.lastInput = line
	ctx := rewrite.NewContext(ast.NewTree(intp.schema))
	intp.count++
	body, err := ruleslang.ParseTree(ctx.Tree, "input", line)
	if err != nil {
		return false, err
	}
	fn := &ast.Function{Name: fmt.Sprintf("input%d", intp.count), Body: body}
	ctx.Tree.Dump(fn.Body, tracing.LevelDebug)
	if err := intp.engine.Pass()(ctx, fn); err != nil {
		return false, err
	}
	intp.lastValue = ctx.Tree.String(fn.Body)
	tracer().Infof("%d changes, %d nodes created, %d cloned, %d retired",
		ctx.Stats.Changes, ctx.Stats.Created, ctx.Stats.Cloned, ctx.Stats.Retired)
	pterm.Info.Println(intp.lastValue)
	if intp.showTree && fn.Body != ast.Nil {
		pterm.DefaultTree.WithRoot(treeFrom(ctx.Tree, fn.Body)).Render()
	}
	return false, nil
}

// Execute runs a REPL command.
func (intp *Intp) Execute(args []string) (bool, error) {
	if len(args) == 0 {
		return false, errors.New("empty command")
	}
	switch args[0] {
	case "quit", "q":
		return true, nil
	case "help", "h":
		pterm.Println(":rules   list rules and how often they have been applied")
		pterm.Println(":tree    toggle tree display of results")
		pterm.Println(":again   rewrite the previous input again")
		pterm.Println(":quit    leave rrepl")
	case "rules":
		prog := intp.engine.Program()
		for i, r := range prog.Rules {
			state := fmt.Sprintf("%d hits", intp.engine.Hits(i))
			if intp.engine.Skipped(i) {
				state = "skipped"
			}
			pterm.Println(fmt.Sprintf("%3d  %-10s %s", r.Line, state, r))
		}
	case "tree":
		intp.showTree = !intp.showTree
		pterm.Info.Println(fmt.Sprintf("tree display is %v", intp.showTree))
	case "again":
		if intp.lastInput == "" {
			return false, errors.New("no previous input")
		}
		return intp.Eval(intp.lastInput)
	default:
		return false, errors.Errorf("unknown command :%s", args[0])
	}
	return false, nil
}

// treeFrom converts a subtree to a pterm tree for display on a terminal.
func treeFrom(t *ast.Tree, v ast.NodeID) pterm.TreeNode {
	ll := leveledNode(t, v, pterm.LeveledList{}, 0)
	tracer().Debugf("|ll| = %d", len(ll))
	return pterm.NewTreeFromLeveledList(ll)
}

func leveledNode(t *ast.Tree, v ast.NodeID, ll pterm.LeveledList, level int) pterm.LeveledList {
	if v == ast.Nil {
		return append(ll, pterm.LeveledListItem{Level: level, Text: "nil"})
	}
	text := t.Op(v)
	if p := t.Payload(v); p != "" {
		text = fmt.Sprintf("%s %q", text, p)
	}
	ll = append(ll, pterm.LeveledListItem{Level: level, Text: text})
	for _, c := range t.Children(v) {
		ll = leveledNode(t, c, ll, level+1)
	}
	return ll
}
