package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/docledger/chain"
	"github.com/luca-patrignani/docledger/config"
	"github.com/luca-patrignani/docledger/ledger"
)

func main() {
	configPath := flag.String("config", os.Getenv("LEDGER_CONFIG"), "path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	// Create a new slog handler with the default PTerm logger at the configured level
	handler := pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(logLevel(cfg.LogLevel)))
	logger := slog.New(handler)
	slog.SetDefault(logger)

	renderBanner()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := newLedger(cfg, logger)
	if err != nil {
		logger.Error("failed to create ledger", "error", err)
		os.Exit(1)
	}

	pterm.Info.Printfln("prefix %q, %d blocks, type %s for the command list", l.Prefix(), l.Height(), cmdHelp)
	if err := serve(ctx, l, cfg.MineInterval, os.Stdin); err != nil {
		logger.Error("input closed", "error", err)
	}
	stop()
	if err := l.Close(); err != nil {
		logger.Error("failed to close ledger", "error", err)
	}
}

// serve runs the interactive session and, with a positive interval, the mining
// watcher. It returns only after the watcher has stopped, so the caller may close l.
func serve(ctx context.Context, l *ledger.Ledger, interval time.Duration, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Watch(ctx, interval)
		}()
	}
	return run(ctx, &session{ledger: l}, in)
}

// newLedger builds the ledger described by cfg. Zero workers means one per CPU.
func newLedger(cfg config.Config, logger *slog.Logger) (*ledger.Ledger, error) {
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	opts := []ledger.Option{
		ledger.WithPrefix(cfg.Prefix),
		ledger.WithWorkers(workers),
		ledger.WithLogger(logger),
	}
	if cfg.Genesis == "" {
		return ledger.New(opts...)
	}
	opts = append(opts, ledger.WithGenesis(json.RawMessage(cfg.Genesis)))
	spinner, _ := pterm.DefaultSpinner.Start("Mining the genesis block ...")
	l, err := ledger.New(opts...)
	if err != nil {
		spinner.Fail(err.Error())
		return nil, err
	}
	spinner.Success("Genesis block mined")
	return l, nil
}

// run feeds input lines to s until the input ends, ctx is cancelled or the user quits.
func run(ctx context.Context, s *session, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			if quit := s.exec(ctx, line); quit {
				return nil
			}
		}
	}
}

const (
	cmdMine    = ":mine"
	cmdChain   = ":chain"
	cmdPending = ":pending"
	cmdDocs    = ":docs"
	cmdGet     = ":get"
	cmdVerify  = ":verify"
	cmdHelp    = ":help"
	cmdQuit    = ":quit"
)

// session executes the commands of one interactive user.
type session struct {
	ledger *ledger.Ledger
}

// exec runs one input line. Lines that are not commands become documents. It reports
// whether the user asked to quit.
func (s *session) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case cmdMine:
		s.mine(ctx)
	case cmdChain:
		renderChain(s.ledger.Chain())
	case cmdPending:
		renderDocuments("Pending documents", sortedDocuments(s.ledger.PendingDocuments()))
	case cmdDocs:
		renderDocuments("Committed documents", s.ledger.AllDocuments())
	case cmdGet:
		doc, err := s.ledger.DocumentByID(strings.TrimSpace(arg))
		if err != nil {
			pterm.Warning.Println(err)
			return false
		}
		renderDocuments("Document", []chain.Document{doc})
	case cmdVerify:
		if s.ledger.Verify() {
			pterm.Success.Printfln("chain of %d blocks is valid", s.ledger.Height())
		} else {
			pterm.Error.Println("chain is invalid")
		}
	case cmdHelp:
		renderHelp()
	case cmdQuit:
		return true
	default:
		doc, err := s.ledger.CreateDocument(payloadOf(line))
		if err != nil {
			pterm.Error.Println(err)
			return false
		}
		pterm.Success.Printfln("document %s pending", doc.ID)
	}
	return false
}

func (s *session) mine(ctx context.Context) {
	start := time.Now()
	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Mining %d pending documents ...", s.ledger.PendingCount()))
	b, err := s.ledger.MineBlock(ctx)
	if err != nil {
		spinner.Fail(err.Error())
		return
	}
	spinner.Success(fmt.Sprintf("block %d mined in %s: %s", b.Number, time.Since(start).Round(time.Millisecond), b.Hash))
}

// payloadOf keeps a line that is already JSON and quotes anything else as a JSON string.
func payloadOf(line string) json.RawMessage {
	if json.Valid([]byte(line)) {
		return json.RawMessage(line)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(line)
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

func logLevel(level string) pterm.LogLevel {
	switch level {
	case "debug":
		return pterm.LogLevelDebug
	case "warn":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}
