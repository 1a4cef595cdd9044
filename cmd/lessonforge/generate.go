package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-lessonforge/internal/application"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

func newGenerateCmd() *cobra.Command {
	var (
		flags       runFlags
		incremental bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate lessons for every configured combination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := flags.filters()
			if err != nil {
				return err
			}
			p, err := setup(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer p.close()

			return p.run(cmd.Context(), application.Options{Incremental: incremental, DryRun: flags.dryRun},
				func(ctx context.Context, s *application.Scheduler) (domain.Stats, error) {
					return s.Run(ctx, f)
				})
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&incremental, "incremental", false, "only generate lessons a combination is still missing")
	return cmd
}
