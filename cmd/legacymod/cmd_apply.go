package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"legacymod/internal/block"
	"legacymod/internal/config"
	"legacymod/internal/errs"
	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
	"legacymod/internal/listener"
	"legacymod/internal/migration"
	"legacymod/internal/plan"
	"legacymod/internal/state"
	"legacymod/internal/template"
)

var (
	applyProjectRoot  string
	applyPlanPath     string
	applyDefines      []string
	applyVariables    []string
	applyVariableFile string
	applyTask         string
	applyPhase        string
	applyResume       bool
	applyDryRun       bool
	applyInteractive  bool
	applyStatus       bool
	applyAIProvider   string
	applyDatabase     string
	applyListVars     bool
	applyRecipesDir   string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Execute a migration plan against the analyzed graph",
	RunE:  runApply,
}

func init() {
	f := applyCmd.Flags()
	f.StringVar(&applyProjectRoot, "project", "", "project root (required unless --status)")
	f.StringVar(&applyPlanPath, "plan", "", "plan file or resource (required unless --status)")
	f.StringArrayVarP(&applyDefines, "define", "D", nil, "-D<key>=<value>, highest precedence")
	f.StringArrayVar(&applyVariables, "variable", nil, "--variable k=v")
	f.StringVar(&applyVariableFile, "variables", "", "path to a properties file of variables")
	f.StringVar(&applyTask, "task", "", "run only this task id")
	f.StringVar(&applyPhase, "phase", "", "run only this phase id")
	f.BoolVarP(&applyResume, "resume", "r", false, "resume from the last checkpoint")
	f.BoolVar(&applyDryRun, "dry-run", false, "describe blocks without side effects")
	f.BoolVarP(&applyInteractive, "interactive", "i", false, "step mode: confirm each block")
	f.BoolVarP(&applyStatus, "status", "s", false, "read the state file and exit")
	f.StringVar(&applyAIProvider, "ai-provider", "none", "AI backend to invoke for AI_PROMPT(_BATCH) blocks")
	f.StringVar(&applyDatabase, "database", "", "graph database path override")
	f.BoolVar(&applyListVars, "list-variables", false, "print the resolved variable scope and exit")
	f.StringVar(&applyRecipesDir, "recipes", "", "directory of interpreted rewrite-recipe scripts (*.go)")
}

func parseKV(pairs []string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, invalidArgs("invalid key=value pair %q", p)
		}
		out[k] = v
	}
	return out, nil
}

func loadVariablesFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IOWrap(err, "reading variables file %s", path)
	}
	out := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}

	statePath := cfg.Project.StatePath
	if applyProjectRoot != "" {
		statePath = resolveUnderRoot(applyProjectRoot, cfg.Project.StatePath)
	}
	stateStore := state.NewStore(statePath)

	if applyStatus {
		st, err := stateStore.Load(cfg.Migration.HistoryCap)
		if err != nil {
			return err
		}
		return printState(st)
	}

	if applyProjectRoot == "" {
		return invalidArgs("--project is required unless --status is set")
	}
	if applyPlanPath == "" {
		return invalidArgs("--plan is required unless --status is set")
	}

	defines, err := parseKV(applyDefines)
	if err != nil {
		return err
	}
	cliVars, err := parseKV(applyVariables)
	if err != nil {
		return err
	}
	varsFile, err := loadVariablesFile(applyVariableFile)
	if err != nil {
		return err
	}

	loaded, err := plan.Load(plan.LoadOptions{
		MainPath:      applyPlanPath,
		ProjectRoot:   applyProjectRoot,
		CLIDefines:    defines,
		CLIVariables:  cliVars,
		VariablesFile: varsFile,
	})
	if err != nil {
		return err
	}

	if applyListVars {
		keys := make([]string, 0, len(loaded.Variables))
		for k := range loaded.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s=%s\n", k, loaded.Variables[k])
		}
		return nil
	}

	dbPath := cfg.Project.DatabasePath
	if applyDatabase != "" {
		dbPath = applyDatabase
	}
	registry := graph.NewRegistry()
	store, err := graphstore.Open(resolveUnderRoot(applyProjectRoot, dbPath), registry)
	if err != nil {
		return err
	}
	defer store.Close()

	rewriteRegistry := block.NewRewriteRegistry()
	if applyRecipesDir != "" {
		if err := rewriteRegistry.LoadScriptDir(applyRecipesDir); err != nil {
			return err
		}
	}
	backendRegistry := block.NewBackendRegistry() // a domain pack registers real backends here
	aiBackend, aiErr := backendRegistry.Get(applyAIProvider)
	if aiErr != nil {
		if applyAIProvider != "none" {
			return invalidArgs("%v", aiErr)
		}
		aiBackend = block.NewUnavailableBackend("none")
	}
	dispatcher := block.NewDispatcher(store, aiBackend, rewriteRegistry, block.NewTTYPrompter())
	dispatcher.DefaultTimeout = cfg.Migration.DefaultTimeout
	dispatcher.AITimeout = cfg.Migration.AITimeout

	st, err := stateStore.Load(cfg.Migration.HistoryCap)
	if err != nil {
		return err
	}

	scope := template.NewScope()
	scope.SetAll(loaded.Variables)
	if applyResume {
		for k, v := range st.VariableSnapshot {
			scope.Set(k, v)
		}
		// Only the CLI-supplied overrides (-D/--define, --variable,
		// --variables) re-apply on top of the restored snapshot; plan-
		// declared and auto-derived variables stay whatever the snapshot
		// captured, so a block output sharing a name with one of those
		// isn't clobbered back to the original plan-file value.
		cliOverrides := map[string]string{}
		for k, v := range varsFile {
			cliOverrides[k] = v
		}
		for k, v := range cliVars {
			cliOverrides[k] = v
		}
		for k, v := range defines {
			cliOverrides[k] = v
		}
		scope.SetAll(cliOverrides)
	}

	listeners := listener.NewSet(listener.ConsoleProgressListener{})
	listeners.Register(listener.NewStateFileListener(stateStore, st))

	checkpointer, err := migration.NewGitCheckpointer(applyProjectRoot, "legacymod", "legacymod@localhost")
	if err != nil {
		return err
	}

	engine := migration.New(dispatcher, listeners, stateStore, migration.NewTTYStepPrompter(), checkpointer, cfg.Migration.HistoryCap)

	result, err := engine.Run(context.Background(), loaded.Plan, scope, st, migration.Options{
		PlanKey:   loaded.Plan.Name,
		DryRun:    applyDryRun,
		StepMode:  applyInteractive,
		Resume:    applyResume,
		OnlyPhase: applyPhase,
		OnlyTask:  applyTask,
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("migration plan %q finished with failures", result.PlanKey)
	}
	return nil
}

func printState(st *state.MigrationState) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
