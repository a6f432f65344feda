package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"aido/internal/config"
	"aido/internal/confirm"
	"aido/internal/convo"
	"aido/internal/engine"
	"aido/internal/llm"
	"aido/internal/logging"
	"aido/internal/recipe"
	"aido/internal/storage"
	"aido/internal/tool"
)

func main() {
	var (
		configPath  string
		recipeName  string
		continueRun bool
		verbose     bool
		listRecipes bool
		listTools   bool
	)
	flag.StringVar(&configPath, "config", "", "yaml config path (default "+config.DefaultPath()+")")
	flag.StringVar(&recipeName, "r", "", "recipe to run")
	flag.BoolVar(&continueRun, "c", false, "continue the latest conversation")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.BoolVar(&listRecipes, "list-recipes", false, "list available recipes and exit")
	flag.BoolVar(&listTools, "tools", false, "list registered tools and exit")
	flag.Parse()

	if err := run(configPath, recipeName, continueRun, verbose, listRecipes, listTools, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, recipeName string, continueRun, verbose, listRecipes, listTools bool, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	registry := tool.NewRegistry()
	if err := tool.RegisterBuiltins(registry, cfg.ToolTimeout, cfg.ToolOutputLimit); err != nil {
		return err
	}
	if err := registerConfigTools(registry, cfg); err != nil {
		return err
	}
	recipes := recipe.NewStore(cfg.RecipesDir, registry)

	if listTools {
		for _, name := range registry.Names() {
			spec, _ := registry.Get(name)
			state := "enabled"
			if !spec.Enabled {
				state = "disabled"
			}
			fmt.Printf("%-12s %-9s %s\n", name, state, spec.Description)
		}
		return nil
	}
	if listRecipes {
		infos, err := recipes.List()
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%-20s %s\n", info.File, info.Name)
		}
		return nil
	}

	input := strings.TrimSpace(strings.Join(args, " "))
	if input == "" {
		return errors.New("nothing to do: pass a request, e.g. aido how do I extract a tar.gz file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewBoltStore(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer store.Close()
	conversations := convo.NewManager(store)

	client := llm.NewOpenAIClient(llm.Options{
		BaseURL:        cfg.APIURL,
		APIKey:         cfg.APIKey,
		Model:          cfg.ModelName,
		Temperature:    cfg.Temperature,
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.LLMMaxRetries,
		Stream:         cfg.Stream,
		Logger:         log,
	})
	eng := engine.New(client, registry, confirm.NewTTYGate(), log, engine.Options{
		MaxTurns:   cfg.MaxTurns,
		MaxDenials: cfg.MaxDenials,
	})

	var conv convo.Conversation
	var allowed []string
	switch {
	case continueRun:
		conv, err = conversations.Latest(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return errors.New("no conversation to continue")
			}
			return err
		}
		switch cfg.ContinuationTools {
		case config.ContinuationInherit:
			allowed = conv.AllowedTools
		case config.ContinuationAll:
			allowed = registry.EnabledNames()
		case config.ContinuationNone:
			allowed = nil
		}
		log.Debug("continuing conversation", zap.String("id", conv.ID), zap.Strings("allowed", allowed))
	case recipeName != "":
		rec, err := recipes.Load(recipeName)
		if err != nil {
			return err
		}
		conv, err = conversations.Create(ctx)
		if err != nil {
			return err
		}
		conv.Append(rec.Seed())
		allowed = rec.AllowedTools
		log.Debug("starting recipe conversation", zap.String("recipe", rec.Name), zap.Strings("allowed", allowed))
	default:
		conv, err = conversations.Create(ctx)
		if err != nil {
			return err
		}
	}

	res, runErr := eng.Run(ctx, conv, allowed, input)
	saved := res.Conversation
	if err := conversations.Save(ctx, &saved); err != nil {
		log.Warn("persist conversation failed", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}
	log.Debug("token usage",
		zap.Int("prompt", saved.Usage.PromptTokens),
		zap.Int("completion", saved.Usage.CompletionTokens),
		zap.Int("total", saved.Usage.TotalTokens))

	switch res.Outcome {
	case engine.OutcomeAnswer:
		fmt.Println(res.Answer)
		return nil
	case engine.OutcomeAborted:
		return fmt.Errorf("aborted: %s", res.Reason)
	default:
		return fmt.Errorf("run ended with outcome %q", res.Outcome)
	}
}

func registerConfigTools(registry *tool.Registry, cfg config.Config) error {
	for name, tc := range cfg.Tools {
		args := make([]tool.Arg, 0, len(tc.Args))
		for _, a := range tc.Args {
			arg := tool.NewArg(a.Name).WithDescription(a.Description)
			if t := strings.TrimSpace(a.Type); t != "" {
				arg = arg.OfType(tool.ArgType(t))
			}
			if a.Required {
				arg = arg.AsRequired()
			}
			if len(a.Enum) > 0 {
				arg = arg.WithEnum(a.Enum...)
			}
			args = append(args, arg)
		}
		enabled := true
		if tc.Enabled != nil {
			enabled = *tc.Enabled
		}
		parts := strings.Fields(tc.Command)
		spec := tool.Spec{
			Name:           name,
			Description:    tc.Description,
			Enabled:        enabled,
			RequireConfirm: tc.Confirm,
			Args:           args,
			Exec: &tool.CommandExecutor{
				Path:        parts[0],
				BaseArgs:    parts[1:],
				Args:        args,
				Timeout:     cfg.ToolTimeout,
				OutputLimit: cfg.ToolOutputLimit,
			},
		}
		if err := registry.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
