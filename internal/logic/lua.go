package logic

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Shopify/go-lua"

	"github.com/seantiz/topoctl/internal/propbag"
)

const executeFunction = "execute"

// cancelCheckInterval is the number of VM instructions between checks of
// the execution context.
const cancelCheckInterval = 1000

// LuaProcedure runs a Lua chunk that defines a global execute(params)
// function. params is a table of the parameter bag; the returned table
// becomes the response bag. Every execution gets a fresh interpreter.
type LuaProcedure struct {
	name   string
	source string
	logger *slog.Logger
}

// NewLuaProcedure returns a procedure for source. name is used in error
// messages and log records.
func NewLuaProcedure(name, source string, logger *slog.Logger) *LuaProcedure {
	return &LuaProcedure{name: name, source: source, logger: logger}
}

// Compile reports syntax errors in the chunk without running it.
func (p *LuaProcedure) Compile() error {
	l := lua.NewState()
	if err := lua.LoadBuffer(l, p.source, "="+p.name, ""); err != nil {
		return fmt.Errorf("compile %s: %w", p.name, err)
	}
	return nil
}

// Execute runs the chunk and then execute(params).
func (p *LuaProcedure) Execute(ctx context.Context, params propbag.Bag) (propbag.Bag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := lua.NewState()
	lua.OpenLibraries(l)
	p.registerHelpers(ctx, l)
	lua.SetDebugHook(l, func(l *lua.State, _ lua.Debug) {
		if err := ctx.Err(); err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
	}, lua.MaskCount, cancelCheckInterval)

	if err := lua.LoadBuffer(l, p.source, "="+p.name, ""); err != nil {
		return nil, fmt.Errorf("load %s: %w", p.name, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, runError(ctx, "run "+p.name, err)
	}

	l.Global(executeFunction)
	if !l.IsFunction(-1) {
		l.Pop(1)
		return nil, fmt.Errorf("%s does not define %s(params)", p.name, executeFunction)
	}
	pushBag(l, params)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return nil, runError(ctx, p.name, err)
	}
	defer l.Pop(1)

	switch l.TypeOf(-1) {
	case lua.TypeTable:
		return tableToBag(l, -1), nil
	case lua.TypeNil:
		return propbag.Bag{}, nil
	}
	return nil, fmt.Errorf("%s: %s returned %s, want table", p.name, executeFunction, lua.TypeNameOf(l, -1))
}

// runError wraps a Lua runtime error. An interrupted run reports the
// context's error instead.
func runError(ctx context.Context, what string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%s interrupted: %w", what, cerr)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (p *LuaProcedure) registerHelpers(ctx context.Context, l *lua.State) {
	l.Register("log", func(l *lua.State) int {
		p.logger.InfoContext(ctx, lua.CheckString(l, 1), "procedure", p.name)
		return 0
	})
}

func pushBag(l *lua.State, bag propbag.Bag) {
	l.CreateTable(0, len(bag))
	for k, v := range bag {
		l.PushString(v)
		l.SetField(-2, k)
	}
}

// tableToBag copies the string-keyed entries of the table at index.
// Numbers and booleans are stringified; other values are dropped.
func tableToBag(l *lua.State, index int) propbag.Bag {
	bag := propbag.Bag{}
	index = l.AbsIndex(index)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			switch l.TypeOf(-1) {
			case lua.TypeString:
				v, _ := l.ToString(-1)
				bag[key] = v
			case lua.TypeNumber:
				v, _ := l.ToNumber(-1)
				bag[key] = strconv.FormatFloat(v, 'f', -1, 64)
			case lua.TypeBoolean:
				bag[key] = strconv.FormatBool(l.ToBoolean(-1))
			}
		}
		l.Pop(1)
	}
	return bag
}
