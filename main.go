/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
/*
	boxlow native value marshaling and lowering runtime

	interactive shell for inspecting boxed<->native conversions,
	array slicing and broadcast resolution
*/
package main

import "os"
import "io"
import "fmt"
import "flag"
import "time"
import "strconv"
import "strings"
import "syscall"
import "os/signal"
import "encoding/json"
import "runtime/debug"
import "github.com/chzyer/readline"
import "github.com/dc0d/onexit"
import "github.com/docker/go-units"
import "github.com/fsnotify/fsnotify"
import "github.com/jtolds/gls"
import "github.com/boxlow/boxlow/box"
import "github.com/boxlow/boxlow/lower"
import "github.com/boxlow/boxlow/view"

const newprompt = "\033[32m>\033[0m "
const resultprompt = "\033[31m=\033[0m "

// watchSettings loads the settings file once and reloads it on every
// change. Missing file on startup is fine, defaults apply.
func watchSettings(filename string) {
	reread := func() {
		bytes, err := os.ReadFile(filename)
		if err != nil {
			return
		}
		var s box.SettingsT
		if err := json.Unmarshal(bytes, &s); err != nil {
			fmt.Println("settings:", err)
			return
		}
		box.Settings = s
	}
	reread()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		panic(err)
	}
	gls.Go(func() {
		for {
			select {
			case <-watcher.Events:
				// flush follow-up events from the same save
				for {
					time.Sleep(10 * time.Millisecond)
					select {
					case <-watcher.Events:
						// ignore
					default:
						goto to_reread
					}
				}
			to_reread:
				reread()
				watcher.Add(filename) // text editors rename, so we have to rewatch
			}
		}
	})
	watcher.Add(filename) // may fail until the file exists
}

var scalarTypes = map[string]*lower.Type{
	"bool":       lower.Boolean,
	"int8":       lower.Int8,
	"int16":      lower.Int16,
	"int32":      lower.Int32,
	"int64":      lower.Int64,
	"uint8":      lower.Uint8,
	"uint16":     lower.Uint16,
	"uint32":     lower.Uint32,
	"uint64":     lower.Uint64,
	"float32":    lower.Float32,
	"float64":    lower.Float64,
	"complex64":  lower.Complex64,
	"complex128": lower.Complex128,
	"object":     lower.Opaque,
}

func parseType(s string) (*lower.Type, error) {
	if inner, ok := strings.CutPrefix(s, "optional:"); ok {
		t, err := parseType(inner)
		if err != nil {
			return nil, err
		}
		return lower.OptionalType(t), nil
	}
	if t, ok := scalarTypes[s]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown type %q (try int64, float64, optional:int32, ...)", s)
}

// parseLiteral boxes a command-line literal; the caller owns the
// returned reference.
func parseLiteral(s string) *box.Object {
	switch s {
	case "none":
		return box.None
	case "true":
		return box.NewBool(true)
	case "false":
		return box.NewBool(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return box.NewInt(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return box.NewFloat(f)
	}
	return box.NewString(s)
}

func parseOptIndex(s string) view.OptIndex {
	if s == "_" {
		return view.None
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		panic("index must be an integer or _")
	}
	return view.Idx(v)
}

// parseShape reads a 4x3x2 style extent list into a throwaway
// descriptor with contiguous strides.
func parseShape(s string, itemsize int64) *view.Descriptor {
	parts := strings.Split(s, "x")
	shape := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			panic("shape must look like 4x3")
		}
		shape[i] = v
	}
	strides := make([]int64, len(shape))
	stride := itemsize
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	nitems := int64(1)
	for _, e := range shape {
		nitems *= e
	}
	return &view.Descriptor{Shape: shape, Strides: strides, ItemSize: itemsize, Nitems: nitems}
}

func formatShape(shape []int64) string {
	parts := make([]string, len(shape))
	for i, e := range shape {
		parts[i] = strconv.FormatInt(e, 10)
	}
	return strings.Join(parts, "x")
}

func printHelp() {
	fmt.Print(`commands:
  to <type> <literal>        unbox a boxed literal into a native value
  roundtrip <type> <literal> unbox, then box the result again
  slice <extent> <start> <stop> <step>
                             normalize one slice axis (use _ for absent)
  broadcast <shape> <shape>...
                             resolve a broadcast shape, e.g. 1x3 4x1
  trace on|off               print every conversion
  stats                      module symbol/constant statistics
  exit
`)
}

func command(bridge *lower.Bridge, rt *box.Runtime, fields []string) {
	switch fields[0] {
	case "help":
		printHelp()

	case "trace":
		box.Settings.TraceConversions = len(fields) > 1 && fields[1] == "on"

	case "to", "roundtrip":
		if len(fields) < 3 {
			panic("usage: " + fields[0] + " <type> <literal>")
		}
		t, err := parseType(fields[1])
		if err != nil {
			panic(err)
		}
		obj := parseLiteral(fields[2])
		defer obj.DecRef()
		nv, err := bridge.ToNative(obj, t)
		if err != nil {
			panic(err)
		}
		if nv.Cleanup != nil {
			defer nv.Cleanup()
		}
		if nv.IsError {
			fmt.Println(resultprompt+"error:", rt.ErrMessage())
			rt.ErrClear()
			return
		}
		if fields[0] == "to" {
			fmt.Printf(resultprompt+"%v (%T)\n", nv.Value, nv.Value)
			return
		}
		boxed, err := bridge.FromNative(nv.Value, t)
		if err != nil {
			panic(err)
		}
		defer boxed.Release()
		fmt.Println(resultprompt + boxed.Object().String())

	case "slice":
		if len(fields) < 5 {
			panic("usage: slice <extent> <start> <stop> <step>")
		}
		extent, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			panic("extent must be an integer")
		}
		ext, stride, off := view.SliceAxis(extent, 1,
			parseOptIndex(fields[2]), parseOptIndex(fields[3]), parseOptIndex(fields[4]))
		fmt.Printf(resultprompt+"extent=%d stride=%d offset=%d\n", ext, stride, off)

	case "broadcast":
		if len(fields) < 3 {
			panic("usage: broadcast <shape> <shape>...")
		}
		operands := make([]*view.Descriptor, len(fields)-1)
		for i, s := range fields[1:] {
			operands[i] = parseShape(s, 1)
		}
		shape, err := view.BroadcastShape(operands)
		if err != nil {
			panic(err)
		}
		fmt.Println(resultprompt + formatShape(shape))

	case "stats":
		st := bridge.Module().Stats()
		fmt.Printf(resultprompt+"symbols=%d consts=%d pool=%s serialized=%d pinned=%d\n",
			st.Symbols, st.Consts, units.HumanSize(float64(st.PoolBytes)), st.Serialized, st.ObjTable)

	case "exit", "quit":
		exitroutine(0)

	default:
		panic("unknown command " + fields[0] + " (try help)")
	}
}

func repl(bridge *lower.Bridge, rt *box.Runtime) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".boxlow-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		// anti-panic func
		func() {
			defer func() {
				if r := recover(); r != nil {
					if box.Settings.TraceConversions {
						fmt.Println("panic:", r, string(debug.Stack()))
					} else {
						fmt.Println("error:", r)
					}
				}
			}()
			command(bridge, rt, fields)
		}()
	}
}

func main() {
	fmt.Print(`boxlow Copyright (C) 2025-2026   Carl-Philip Hänsch
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;

`)

	settingsFile := "boxlow-settings.json"
	flag.StringVar(&settingsFile, "settings", settingsFile, "Settings file (JSON), reloaded on change")

	var commands arrayFlags
	flag.Var(&commands, "c", "Execute shell command and exit")

	flag.Parse()

	watchSettings(settingsFile)

	rt := box.NewRuntime()
	mod := box.NewModule(rt)
	bridge := lower.NewBridge(mod)
	fmt.Println("module", mod.ID)

	onexit.Register(func() { os.Remove(".boxlow-history.tmp") }) // drop shell history on exit

	// install exit handler
	cancelChan := make(chan os.Signal, 1)
	signal.Notify(cancelChan, syscall.SIGTERM, syscall.SIGINT)
	gls.Go(func() {
		<-cancelChan
		exitroutine(1)
	})

	if len(commands) > 0 {
		for _, c := range commands {
			command(bridge, rt, strings.Fields(c))
		}
		exitroutine(0)
	}

	fmt.Print(`
    Type help to list commands

`)
	repl(bridge, rt)
	exitroutine(0)
}

func exitroutine(code int) {
	fmt.Println("Exit procedure finished")
	os.Exit(code)
}

// workaround for flags package to allow multiple values
type arrayFlags []string

func (i *arrayFlags) String() string {
	return "dummy"
}

func (i *arrayFlags) Set(value string) error {
	*i = append(*i, value)
	return nil
}
