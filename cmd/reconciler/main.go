package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	appreconciliation "github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  string
		logLevel    string
		fixturePath string
		activeOnly  bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config.toml")
	flag.StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	flag.StringVar(&fixturePath, "fixture", "", "Load this fixture before running the command")
	flag.BoolVar(&activeOnly, "active", false, "matches: list only active matches")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRequestID(ctx, uuid.NewString())

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start", zap.Error(err))
	}
	defer a.close(context.Background())
	log = a.log

	if fixturePath != "" {
		if err := a.loadFixture(ctx, fixturePath); err != nil {
			log.Error("Failed to load fixture", zap.String("path", fixturePath), zap.Error(err))
			exit(a, 1)
		}
	}

	result, err := a.dispatch(ctx, args, activeOnly)
	if err != nil {
		log.Error("Command failed", zap.String("command", args[0]), zap.Error(err))
		exit(a, 1)
	}
	if result != nil {
		if err := writeJSON(os.Stdout, result); err != nil {
			log.Error("Failed to write result", zap.Error(err))
			exit(a, 1)
		}
	}
}

// dispatch runs one command and returns what should be printed
func (a *app) dispatch(ctx context.Context, args []string, activeOnly bool) (any, error) {
	command, rest := args[0], args[1:]
	need := func(n int, usage string) error {
		if len(rest) < n {
			return fmt.Errorf("usage: reconciler %s", usage)
		}
		return nil
	}

	switch command {
	case "load":
		if err := need(1, "load <fixture.json>"); err != nil {
			return nil, err
		}
		return nil, a.loadFixture(ctx, rest[0])

	case "run":
		if err := need(1, "run <statement-id>"); err != nil {
			return nil, err
		}
		return a.service.RunReconciliation(ctx, appreconciliation.RunReconciliationCommand{StatementID: rest[0]})

	case "suggest":
		if err := need(1, "suggest <line-id>"); err != nil {
			return nil, err
		}
		return a.service.SuggestMatches(ctx, appreconciliation.SuggestMatchesQuery{LineID: rest[0]})

	case "match":
		if err := need(3, "match <line-id> <txn-id> <user-id> [reason]"); err != nil {
			return nil, err
		}
		cmd := appreconciliation.CreateManualMatchCommand{LineID: rest[0], TransactionID: rest[1], UserID: rest[2]}
		if len(rest) > 3 {
			cmd.Reason = rest[3]
		}
		return a.service.CreateManualMatch(ctx, cmd)

	case "undo":
		if err := need(2, "undo <match-id> <user-id>"); err != nil {
			return nil, err
		}
		return a.service.UndoMatch(ctx, appreconciliation.UndoMatchCommand{MatchID: rest[0], UserID: rest[1]})

	case "matches":
		if err := need(1, "[-active] matches <statement-id>"); err != nil {
			return nil, err
		}
		return a.service.ListMatches(ctx, appreconciliation.ListMatchesQuery{StatementID: rest[0], ActiveOnly: activeOnly})

	case "show":
		if err := need(1, "show <reconciliation-id>"); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(rest[0])
		if err != nil {
			return nil, fmt.Errorf("invalid reconciliation id %q: %w", rest[0], err)
		}
		return a.service.GetReconciliation(ctx, id)

	case "settings":
		return a.service.DefaultSettings(), nil

	default:
		printUsage()
		return nil, fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) loadFixture(ctx context.Context, path string) error {
	f, err := readFixture(path)
	if err != nil {
		return err
	}
	ds, err := f.toDomain()
	if err != nil {
		return err
	}
	if err := a.importer.load(ctx, ds); err != nil {
		return err
	}
	lines := 0
	for _, s := range ds.Statements {
		lines += len(s.Lines)
	}
	a.log.Info("Fixture loaded",
		zap.String("path", path),
		zap.Int("accounts", len(ds.Accounts)),
		zap.Int("statements", len(ds.Statements)),
		zap.Int("lines", lines),
		zap.Int("transactions", len(ds.Transactions)),
	)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exit releases resources before leaving; deferred calls do not run on os.Exit
func exit(a *app, code int) {
	a.close(context.Background())
	_ = a.log.Sync()
	os.Exit(code)
}

func printUsage() {
	fmt.Println(`Bank reconciliation tool

Usage:
  reconciler [flags] <command> [arguments]

Commands:
  load <fixture.json>                          Import accounts, statements and ledger transactions
  run <statement-id>                           Run automatic matching over a statement
  suggest <line-id>                            Show ranked candidates for an open line
  match <line-id> <txn-id> <user-id> [reason]  Pair a line with a transaction manually
  undo <match-id> <user-id>                    Revoke a match
  matches <statement-id>                       List the match history of a statement
  show <reconciliation-id>                     Show a finalized run
  settings                                     Print the default matching settings

Flags:
  -config     Path to config.toml
  -log-level  Override log.level
  -fixture    Load a fixture first; with database.path = ":memory:" this runs one-shot
  -active     With matches, list only active matches

Examples:
  reconciler -config config.toml load cmd/reconciler/testdata/march.json
  reconciler -config config.toml run 7b0c5a62-3f7e-4d33-9a57-0c6f1f1c2a10
  reconciler -config config.toml match <line-id> <txn-id> alice "wire fee netted"`)
}
