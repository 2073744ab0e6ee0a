package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/payroll/internal/journal"
	"github.com/wolfeidau/payroll/internal/logger"
	memorystore "github.com/wolfeidau/payroll/internal/store/memory"
)

type JournalCmd struct {
	Verify  JournalVerifyCmd  `cmd:"" help:"Replay a journal and report what it restores"`
	Archive JournalArchiveCmd `cmd:"" help:"Write a compressed copy of a journal"`
	Cleanup JournalCleanupCmd `cmd:"" help:"Delete archives older than the retention period"`
}

type JournalVerifyCmd struct {
	Path string `arg:"" help:"journal file" type:"existingfile"`

	out io.Writer
}

func (c *JournalVerifyCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	j, err := journal.Open(c.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	stats, err := j.Stats()
	if err != nil {
		return err
	}

	accounts := memorystore.NewAccountStore(memorystore.WithJournal(j))
	if err := accounts.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore from journal: %w", err)
	}

	restored, err := accounts.ListAccounts(ctx)
	if err != nil {
		return err
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintf(out, "path:      %s\n", c.Path)
	fmt.Fprintf(out, "records:   %d\n", stats.Records)
	if stats.Records > 0 {
		fmt.Fprintf(out, "sequences: %d..%d\n", stats.FirstSequence, stats.LastSequence)
	}
	fmt.Fprintf(out, "size:      %d bytes\n", stats.SizeBytes)
	fmt.Fprintf(out, "truncated: %t\n", stats.Truncated)
	fmt.Fprintf(out, "accounts:  %d\n", len(restored))

	return nil
}

type JournalArchiveCmd struct {
	Path string `arg:"" help:"journal file" type:"existingfile"`
	Dir  string `help:"archive directory" default:"archive" type:"path"`
}

func (c *JournalArchiveCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	j, err := journal.Open(c.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	archivePath, err := j.Archive(ctx, c.Dir)
	if err != nil {
		return err
	}

	log.Info().Str("archive", archivePath).Msg("Journal archived")

	return nil
}

type JournalCleanupCmd struct {
	Dir           string `arg:"" help:"archive directory" type:"path"`
	RetentionDays int    `help:"delete archives older than this many days" default:"30"`
}

func (c *JournalCleanupCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	deleted, err := journal.CleanupArchive(c.Dir, c.RetentionDays)
	if err != nil {
		return err
	}

	log.Info().Str("archive_dir", c.Dir).Int("deleted_files", deleted).Msg("Cleanup finished")

	return nil
}
