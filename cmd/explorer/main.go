package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/algo-explorer/internal/config"
	"github.com/danielpatrickdp/algo-explorer/internal/journal"
	"github.com/danielpatrickdp/algo-explorer/internal/logging"
	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
)

// #region main
func main() {
	configPath := flag.String("config", "", "path to explorer YAML config")
	engineName := flag.String("engine", string(session.EngineKMeans), "initial engine: kmeans | tree | regression")
	noJournal := flag.Bool("no-journal", false, "do not record snapshots")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LoggingConfig("explorer"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	engine, err := session.ParseEngine(*engineName)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	opts := []session.Option{session.WithLogger(logger)}
	if !*noJournal && cfg.Journal.Path != "" {
		store, err := journal.NewStore(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer store.Close()
		opts = append(opts, session.WithRecorder(store))
	}

	sess, err := session.New(cfg.SessionConfig(), cfg.Rand(), opts...)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	r := &repl{sess: sess, engine: engine, player: cfg.PlayerConfig(), logger: logger}
	fmt.Println(titleStyle.Render("Algorithm Explorer ready."))
	fmt.Printf("  Session: %s | Points: %d | Journal: %s\n", sess.ID(), len(sess.Points()), journalLabel(cfg, *noJournal))
	fmt.Println("Type 'help' for commands (or 'quit' to exit):")
	r.run(bufio.NewScanner(os.Stdin))
}
// #endregion main

// #region repl
type repl struct {
	sess   *session.Session
	engine session.Engine
	player step.PlayerConfig
	logger *slog.Logger
}

func (r *repl) run(scanner *bufio.Scanner) {
	for {
		fmt.Print(promptStyle.Render(string(r.engine)) + "> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := r.dispatch(cmd, args); err != nil {
			fmt.Println(errorStyle.Render("error: " + err.Error()))
		}
	}
}

func (r *repl) dispatch(cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Print(helpText)
		return nil
	case "engine":
		if len(args) != 1 {
			return errors.New("usage: engine kmeans|tree|regression")
		}
		e, err := session.ParseEngine(args[0])
		if err != nil {
			return err
		}
		r.engine = e
		fmt.Println(statusLine(r.sess.Snapshot(e)))
		return nil
	case "step":
		snap, err := r.sess.Step(r.engine)
		if err != nil {
			return err
		}
		fmt.Println(statusLine(snap))
		return nil
	case "play":
		n := 0
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return fmt.Errorf("play: bad step count %q", args[0])
			}
			n = v
		}
		return r.play(n)
	case "add":
		p, err := parsePoint(args)
		if err != nil {
			return err
		}
		if err := r.sess.AddPoint(p); err != nil {
			return err
		}
		fmt.Printf("added (%.1f, %.1f); %d points, all engines reset\n", p.X, p.Y, len(r.sess.Points()))
		return nil
	case "k":
		v, err := intArg(cmd, args)
		if err != nil {
			return err
		}
		return r.mutate(r.sess.SetK(v), session.EngineKMeans)
	case "depth":
		v, err := intArg(cmd, args)
		if err != nil {
			return err
		}
		return r.mutate(r.sess.SetMaxDepth(v), session.EngineTree)
	case "lr":
		if len(args) != 1 {
			return errors.New("usage: lr RATE")
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("lr: %w", err)
		}
		return r.mutate(r.sess.SetLearningRate(v), session.EngineRegression)
	case "regen":
		return r.mutate(r.sess.Regenerate(), r.engine)
	case "reset":
		fmt.Println(statusLine(r.sess.Reset(r.engine)))
		return nil
	case "show":
		fmt.Println(detail(r.sess.Snapshot(r.engine)))
		return nil
	}
	return fmt.Errorf("unknown command %q (try 'help')", cmd)
}

func (r *repl) mutate(err error, e session.Engine) error {
	if err != nil {
		return err
	}
	fmt.Println(statusLine(r.sess.Snapshot(e)))
	return nil
}

// play runs up to n steps (0 = until interrupted). Ctrl-C pauses.
func (r *repl) play(n int) error {
	p, err := step.NewPlayer(r.sess.Stepper(r.engine), r.player)
	if err != nil {
		return err
	}
	p.OnStep(func(int) {
		fmt.Println(statusLine(r.sess.Snapshot(r.engine)))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = p.Play(ctx, n)
	if errors.Is(err, context.Canceled) {
		fmt.Printf("paused after %d steps\n", p.Steps())
		return nil
	}
	return err
}
// #endregion repl

// #region helpers
const helpText = `commands:
  engine kmeans|tree|regression   switch the active engine
  step                            advance one phase
  play [N]                        auto-step N times (Ctrl-C pauses)
  add X Y [LABEL]                 add a point (resets every engine)
  k N | depth N | lr RATE         change a hyper-parameter
  regen                           regenerate the point cloud
  reset                           reset the active engine
  show                            print the full snapshot
  quit
`

func parsePoint(args []string) (points.Point, error) {
	if len(args) < 2 || len(args) > 3 {
		return points.Point{}, errors.New("usage: add X Y [LABEL]")
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return points.Point{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return points.Point{}, fmt.Errorf("y: %w", err)
	}
	p := points.Point{X: x, Y: y, Label: points.NoLabel}
	if len(args) == 3 {
		l, err := strconv.Atoi(args[2])
		if err != nil {
			return points.Point{}, fmt.Errorf("label: %w", err)
		}
		p.Label = points.Label(l)
	}
	return p, nil
}

func intArg(cmd string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: %s N", cmd)
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", cmd, err)
	}
	return v, nil
}

func journalLabel(cfg config.Config, disabled bool) string {
	if disabled || cfg.Journal.Path == "" {
		return "off"
	}
	return cfg.Journal.Path
}
// #endregion helpers
