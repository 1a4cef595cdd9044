package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ahrav/go-lessonforge/internal/application"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

// runFlags are shared by every pipeline command.
type runFlags struct {
	configPath  string
	logMode     string
	metricsAddr string
	debug       bool
	dryRun      bool

	languages []string
	levels    []string
	topics    []string
	types     []string

	generationModel string
	validationModel string
	workers         int
	database        string
	failuresFile    string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lessonforge",
		Short:         "Generate and validate language exercises with LLMs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd(), newRetryFailuresCmd())
	return root
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "config.yaml", "path to the pipeline YAML config")
	fs.StringVar(&f.logMode, "log-mode", "dev", "log format: dev or prod")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.BoolVar(&f.debug, "debug", false, "dump prompt and response on parse or validation failures and wait for Enter")
	fs.BoolVar(&f.dryRun, "dry-run", false, "run every stage but skip persistence")

	fs.StringArrayVar(&f.languages, "language", nil, "only this target language (repeatable)")
	fs.StringArrayVar(&f.levels, "level", nil, "only this level (repeatable)")
	fs.StringArrayVar(&f.topics, "topic", nil, "only this topic (repeatable)")
	fs.StringArrayVar(&f.types, "type", nil, "only this exercise type (repeatable)")

	fs.StringVar(&f.generationModel, "generation-model", "", "override llm_servers.generation.model")
	fs.StringVar(&f.validationModel, "validation-model", "", "override llm_servers.validation.model")
	fs.IntVar(&f.workers, "workers", 0, "override workers")
	fs.StringVar(&f.database, "database", "", "override storage.database")
	fs.StringVar(&f.failuresFile, "failures-file", "", "override storage.failures_file")
}

// apply copies every set override into cfg. The caller re-validates.
func (f *runFlags) apply(cfg *application.Config) {
	if f.generationModel != "" {
		cfg.LLMServers.Generation.Model = f.generationModel
	}
	if f.validationModel != "" {
		cfg.LLMServers.Validation.Model = f.validationModel
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.database != "" {
		cfg.Storage.Database = f.database
	}
	if f.failuresFile != "" {
		cfg.Storage.FailuresFile = f.failuresFile
	}
}

func (f *runFlags) filters() (application.Filters, error) {
	types := make([]domain.ExerciseType, 0, len(f.types))
	for _, s := range f.types {
		t, err := domain.ParseExerciseType(s)
		if err != nil {
			return application.Filters{}, fmt.Errorf("--type: %w", err)
		}
		types = append(types, t)
	}
	return application.Filters{
		Languages:     f.languages,
		Levels:        f.levels,
		Topics:        f.topics,
		ExerciseTypes: types,
	}, nil
}
