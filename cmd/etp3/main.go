// Command etp3 is an interactive shell for the EveryThing 1.5 IPC
// protocol: connect to a server instance, run searches, inspect
// properties and follow the change journal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/pflag"

	"github.com/gvanem/etp3"
	"github.com/gvanem/etp3/protocol"
	"github.com/gvanem/etp3/utils"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("version"),
	readline.PcItem("search"),
	readline.PcItem("prop"),
	readline.PcItem("runcount"),
	readline.PcItem("journal"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func runSearch(client *etp3.Client, text string, limit uint64) error {
	s := etp3.NewSearch()
	s.SetText(text)
	s.SetViewport(0, limit)
	s.SetRequestTotalSize(true)
	if err := s.AddProperty(etp3.PropertyName); err != nil {
		return err
	}
	if err := s.AddProperty(etp3.PropertyPath); err != nil {
		return err
	}
	if err := s.AddProperty(etp3.PropertySize); err != nil {
		return err
	}
	rl, err := client.Search(s)
	if err != nil {
		return err
	}
	fmt.Printf("%d folders, %d files", rl.FolderCount(), rl.FileCount())
	if rl.HasTotalSize() {
		fmt.Printf(", %d bytes total", rl.TotalSize())
	}
	fmt.Println()
	for i := 0; i < rl.ItemCount(); i++ {
		name, _ := rl.Name(i)
		path, _ := rl.Path(i)
		size, _ := rl.Size(i)
		fmt.Printf("%12d  %s\\%s\n", size, path, name)
	}
	return nil
}

func runProp(client *etp3.Client, name string) error {
	id, err := client.FindPropertyFromName(name)
	if err != nil {
		return err
	}
	vt, err := client.GetPropertyType(id)
	if err != nil {
		return err
	}
	canonical, err := client.GetPropertyCanonicalName(id)
	if err != nil {
		return err
	}
	indexed, _ := client.IsPropertyIndexed(id)
	fast, _ := client.IsPropertyFastSort(id)
	fmt.Printf("id=%d canonical=%q type=%d indexed=%v fastsort=%v\n",
		id, canonical, vt, indexed, fast)
	return nil
}

func runJournal(client *etp3.Client, limit int) error {
	info, err := client.GetJournalInfo()
	if err != nil {
		return err
	}
	fmt.Printf("journal %x: changes %d..%d\n",
		info.JournalID, info.FirstChangeID, info.NextChangeID)
	seen := 0
	err = client.ReadJournal(info.JournalID, info.NextChangeID, etp3.GatherAll,
		func(ch *etp3.JournalChange) bool {
			fmt.Printf("%d %d %s\\%s\n", ch.Type, ch.ChangeID, ch.OldPath, ch.OldName)
			seen++
			return seen < limit
		})
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func main() {
	instance := pflag.StringP("instance", "i", "", "server instance name")
	limit := pflag.Uint64P("limit", "n", 25, "max results per search")
	verbose := pflag.BoolP("verbose", "v", false, "debug logging")
	pflag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := utils.NewDefaultLogger(level)

	opts := etp3.Options{
		Instance: *instance,
		Logger:   log,
	}
	ctx := utils.WithDefaultArgs(context.Background(), "instance", *instance)
	client, err := etp3.Connect(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "etp3 ",
		HistoryFile:     "/tmp/etp3_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
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
		}
		cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
		rest = strings.TrimSpace(rest)
		switch cmd {
		case "":
		case "help":
			fmt.Println("commands: version | search <text> | prop <name> | runcount <path> | journal [n] | quit")
		case "version":
			major, err1 := client.GetMajorVersion()
			minor, err2 := client.GetMinorVersion()
			rev, err3 := client.GetRevision()
			if err := errors.Join(err1, err2, err3); err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			fmt.Printf("%d.%d.%d\n", major, minor, rev)
		case "search":
			if err := runSearch(client, rest, *limit); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case "prop":
			if err := runProp(client, rest); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case "runcount":
			n, err := client.GetRunCount(rest)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			fmt.Println(n)
		case "journal":
			n := 10
			if rest != "" {
				if v, err := strconv.Atoi(rest); err == nil {
					n = v
				}
			}
			switch err := runJournal(client, n); {
			case errors.Is(err, protocol.ErrCancelled):
				// stopping a subscription tears the pipe down
				fmt.Println("journal stopped; reconnecting")
				_ = client.Close()
				if client, err = etp3.Connect(ctx, opts); err != nil {
					fmt.Fprintln(os.Stderr, "reconnect:", err)
					return
				}
			case err != nil:
				fmt.Fprintln(os.Stderr, err)
			}
		case "exit", "quit":
			return
		default:
			fmt.Fprintln(os.Stderr, "unknown command; try help")
		}
	}
}
