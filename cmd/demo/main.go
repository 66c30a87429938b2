package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/choicepoint"
	"github.com/danielpatrickdp/choicepoint/internal/tracestore"
)

// #region main
func main() {
	dbPath := flag.String("db", envOr("CHOICEPOINT_DB", ""), "save the trace session to this SQLite db")
	rulesPath := flag.String("rules", "", "load additional static rules from this YAML file")
	jsonOut := flag.Bool("json", false, "emit the session as wire JSON instead of rendered text")
	verbose := flag.Bool("v", false, "log rule resolutions")
	flag.Parse()

	var logger *zap.Logger
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("logger: %v", err)
		}
		logger = l
		defer logger.Sync()
	}

	eng := choicepoint.New(choicepoint.WithLogger(logger))
	app := setup(eng)

	if *rulesPath != "" {
		if err := eng.LoadRules(*rulesPath); err != nil {
			log.Fatalf("load rules: %v", err)
		}
	}

	eng.TraceStart()
	if err := app.run(context.Background()); err != nil {
		log.Fatalf("run: %v", err)
	}
	sess := eng.TraceStop()

	if *jsonOut {
		if err := sess.WriteJSON(os.Stdout); err != nil {
			log.Fatalf("write session: %v", err)
		}
	} else {
		sess.Render(os.Stdout)
	}

	if *dbPath != "" {
		store, err := tracestore.NewStore(*dbPath)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		id, err := store.SaveSession("demo", sess)
		if err != nil {
			log.Fatalf("save session: %v", err)
		}
		fmt.Fprintf(os.Stderr, "saved session %s to %s\n", id, *dbPath)
	}
}

// #endregion main

// #region scenario

// demoApp is a greeting pipeline with one customization point. greet has a
// formal interface implementation and an informal alternate; rules switch the
// alternate in when greet runs under broadcast, pick a dedicated greeting for
// one argument value, and lower everything inside a quiet scope.
type demoApp struct {
	eng   *choicepoint.Engine
	greet uuid.UUID
	app   uuid.UUID
	bcast uuid.UUID
	quiet uuid.UUID
}

func setup(eng *choicepoint.Engine) *demoApp {
	d := &demoApp{eng: eng}

	greet, err := eng.Func("greet", []string{"name", "greeting"},
		map[string]any{"greeting": "Hi"},
		func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			return fmt.Sprintf("%v %v", kwargs["greeting"], args[0]), nil
		})
	if err != nil {
		log.Fatalf("setup: %v", err)
	}

	informal, err := eng.Impl("informal", greet, []string{"name", "greeting"},
		map[string]any{"greeting": "Hey"},
		func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			return fmt.Sprintf("%v %v!", kwargs["greeting"], args[0]), nil
		})
	if err != nil {
		log.Fatalf("setup: %v", err)
	}

	app, err := eng.Tracked("app", nil)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	bcast, err := eng.Tracked("broadcast", []string{"audience"})
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	quiet, err := eng.ContextClass("quiet")
	if err != nil {
		log.Fatalf("setup: %v", err)
	}

	rules := []struct {
		sel  []choicepoint.Pattern
		impl uuid.UUID
		vals map[string]any
	}{
		{[]choicepoint.Pattern{choicepoint.Fn(bcast), choicepoint.Fn(greet)}, informal, nil},
		{[]choicepoint.Pattern{choicepoint.MatchArgs(greet, choicepoint.Args{"name": "VIP"})}, greet, map[string]any{"greeting": "Welcome"}},
		{[]choicepoint.Pattern{choicepoint.Ctx(quiet), choicepoint.Fn(greet)}, greet, map[string]any{"greeting": "hi"}},
	}
	for _, r := range rules {
		if err := eng.Rule(r.sel, r.impl, r.vals); err != nil {
			log.Fatalf("setup rule: %v", err)
		}
	}

	d.greet, d.app, d.bcast, d.quiet = greet, app, bcast, quiet
	return d
}

func (d *demoApp) run(ctx context.Context) error {
	say := func(ctx context.Context, name string) error {
		out, err := d.eng.Call(ctx, d.greet, []any{name}, nil)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	// Default resolution, no rule matches the bare call.
	if err := say(ctx, "World"); err != nil {
		return err
	}

	// The broadcast rule switches greet to the informal alternate.
	_, err := d.eng.Track(ctx, d.app, nil, nil, func(ctx context.Context) (any, error) {
		return d.eng.Track(ctx, d.bcast, []any{"everyone"}, nil, func(ctx context.Context) (any, error) {
			return nil, say(ctx, "User")
		})
	})
	if err != nil {
		return err
	}

	// Argument-constrained rule.
	if err := say(ctx, "VIP"); err != nil {
		return err
	}

	// Ambient context scope.
	qctx, release, err := d.eng.EnterContext(ctx, d.quiet)
	if err != nil {
		return err
	}
	defer release()
	return say(qctx, "Neighbor")
}

// #endregion scenario

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
