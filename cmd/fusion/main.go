// Command fusion runs one fusion-chain search against a compendium file and
// prints the directions for every chain found.
//
// Usage:
//
//	fusion -compendium p5.yaml [-creature NAME] [-max-level N] [-deep] SKILL...
//	fusion -compendium p5.yaml -mcp
//
// With -mcp the search tools are served over MCP on stdin and stdout instead.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pickled-dev/smt-tools/internal/mcp"
	"github.com/pickled-dev/smt-tools/internal/service"
	"github.com/pickled-dev/smt-tools/pkg/compendium"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fusion", flag.ContinueOnError)
	fs.SetOutput(stderr)
	compendiumPath := fs.String("compendium", os.Getenv("SMT_COMPENDIUM_PATH"), "path to a YAML or JSON compendium file")
	creature := fs.String("creature", "", "creature the chain must end in; empty searches every creature")
	maxLevel := fs.Int("max-level", 0, "highest creature and skill level allowed (default 99)")
	recursion := fs.Int("recursion", 0, "how many fusions deep a chain may go (default 2, negative for single fusions)")
	resultCap := fs.Int("cap", 0, "stop after this many chains (default 20, negative for no cap)")
	deep := fs.Bool("deep", false, "consider every creature as a chain root")
	jsonOut := fs.Bool("json", false, "print one JSON object per result")
	serveMCP := fs.Bool("mcp", false, "serve the MCP tools over stdio instead of searching")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if *compendiumPath == "" {
		fmt.Fprintln(stderr, "fusion: -compendium or SMT_COMPENDIUM_PATH is required")
		return 2
	}
	c, err := compendium.Load(*compendiumPath)
	if err != nil {
		fmt.Fprintf(stderr, "fusion: %v\n", err)
		return 1
	}
	svc := service.New(c)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serveMCP {
		if err := mcp.New(svc).Run(ctx, &mcpsdk.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(stderr, "fusion: mcp: %v\n", err)
			return 1
		}
		return 0
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "fusion: at least one skill is required")
		fs.Usage()
		return 2
	}
	req := fusion.Request{
		Skills:         fs.Args(),
		Creature:       *creature,
		MaxLevel:       *maxLevel,
		DeepSearch:     *deep,
		RecursionLimit: *recursion,
		ResultCap:      *resultCap,
	}

	var p printer
	if *jsonOut {
		p = jsonPrinter{enc: json.NewEncoder(stdout)}
	} else {
		p = &textPrinter{w: stdout}
	}
	if err := svc.Run(ctx, req, p.print); err != nil {
		fmt.Fprintf(stderr, "fusion: %v\n", err)
		return 1
	}
	return 0
}

type printer interface {
	print(fusion.Result) bool
}

type jsonPrinter struct {
	enc *json.Encoder
}

func (p jsonPrinter) print(res fusion.Result) bool {
	return p.enc.Encode(res) == nil
}

// textPrinter numbers chains in arrival order.
type textPrinter struct {
	w      io.Writer
	chains int
}

func (p *textPrinter) print(res fusion.Result) bool {
	var err error
	switch res.Kind {
	case fusion.KindChain:
		p.chains++
		ch := res.Chain
		_, err = fmt.Fprintf(p.w, "Chain %d: %s (cost %d, level %d)\n", p.chains, ch.Result, ch.Cost, ch.Level)
		for i, line := range ch.Directions {
			if err == nil {
				_, err = fmt.Fprintf(p.w, "  %d. %s\n", i+1, line)
			}
		}
	case fusion.KindFailure:
		_, err = fmt.Fprintf(p.w, "Not possible: %s\n", res.Failure.Error())
	case fusion.KindDone:
		s := res.Stats
		_, err = fmt.Fprintf(p.w, "%s, %s, %d steps searched.\n",
			plural(s.Chains, "chain"), plural(s.Failures, "failure"), s.Steps)
	}
	return err == nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
