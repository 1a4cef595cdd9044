package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-lessonforge/infrastructure/ledger"
	"github.com/ahrav/go-lessonforge/internal/application"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

// retiredSuffix is appended to a failures file once its records have been
// picked up by retry-failures, followed by a UTC timestamp so earlier batches
// are never overwritten.
const retiredSuffix = ".retried-"

// retiredLayout sorts lexically and is safe in file names.
const retiredLayout = "20060102T150405.000000000Z"

func newRetryFailuresCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "retry-failures",
		Short: "Regenerate the lessons recorded in a failures file",
		Long: "Reads the failures file, moves it aside with a timestamped .retried " +
			"suffix and requests one lesson per record. Records excluded by filters are " +
			"copied back, and new failures are appended to a fresh file at the same path. " +
			"With --dry-run the failures file is left untouched and new failures go to " +
			"a scratch file.",
		Args: cobra.NoArgs,
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

			path := p.cfg.Storage.FailuresFile
			records, err := ledger.ReadAll(path)
			if err != nil {
				return err
			}
			retry, keep := splitRecords(records, f)
			if len(retry) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No failures to retry in %s.\n", path)
				return nil
			}

			l, retired, err := prepareRetryLedger(path, keep, flags.dryRun, time.Now())
			if err != nil {
				return err
			}
			p.ledger = l
			p.log.Info("retrying failures",
				"records", len(retry),
				"kept", len(keep),
				"previous_file", retired,
				"ledger", l.Path(),
				"dry_run", flags.dryRun,
			)

			reqs := application.FailureRequests(retry)
			return p.run(cmd.Context(), application.Options{DryRun: flags.dryRun},
				func(ctx context.Context, s *application.Scheduler) (domain.Stats, error) {
					return s.RunRequests(ctx, reqs)
				})
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

// prepareRetryLedger returns the ledger that receives failures from a retry
// run and the path the previous records were moved to.
//
// A dry run persists nothing, so it leaves path alone and hands back a ledger
// in a fresh temporary directory with an empty retired path. Otherwise path is
// renamed to a timestamped retired file and keep is written to a new ledger at
// path.
func prepareRetryLedger(
	path string,
	keep []domain.FailureRecord,
	dryRun bool,
	now time.Time,
) (*ledger.FileLedger, string, error) {
	if dryRun {
		dir, err := os.MkdirTemp("", "lessonforge-dry-run-")
		if err != nil {
			return nil, "", fmt.Errorf("create dry-run ledger directory: %w", err)
		}
		l, err := ledger.Open(filepath.Join(dir, filepath.Base(path)))
		return l, "", err
	}

	retired := path + retiredSuffix + now.UTC().Format(retiredLayout)
	if _, err := os.Stat(retired); err == nil {
		return nil, "", fmt.Errorf("retired failures file %s already exists", retired)
	}
	if err := os.Rename(path, retired); err != nil {
		return nil, "", fmt.Errorf("move failures file aside: %w", err)
	}

	l, err := ledger.Open(path)
	if err != nil {
		return nil, "", err
	}
	for _, rec := range keep {
		if err := l.Append(rec); err != nil {
			_ = l.Close()
			return nil, "", err
		}
	}
	return l, retired, nil
}

// splitRecords separates records to retry from those the filters exclude.
func splitRecords(records []domain.FailureRecord, f application.Filters) (retry, keep []domain.FailureRecord) {
	for _, rec := range records {
		if f.Matches(rec.Combination) {
			retry = append(retry, rec)
		} else {
			keep = append(keep, rec)
		}
	}
	return retry, keep
}
