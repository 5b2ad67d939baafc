package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliang-cn/askpdf/internal/domain"
	"github.com/liliang-cn/askpdf/internal/tui"
)

func chatCMD(cfgPath *string) *cobra.Command {
	var logFile string
	chat := &cobra.Command{
		Use:   "chat file.pdf [file.pdf ...]",
		Short: "Index PDFs and chat with them in the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			// The terminal belongs to the UI, so logs only go to a file.
			logger := zap.NewNop()
			if logFile != "" {
				if logger, err = newLogger(cfg.Log.Development, logFile); err != nil {
					return fmt.Errorf("create logger: %w", err)
				}
				defer logger.Sync()
			}
			if err := cfg.Validate(); err != nil {
				logger.Error("Invalid configuration", zap.Error(err))
				return err
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			files := make([]domain.File, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				files = append(files, domain.File{Name: filepath.Base(path), Data: data})
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexing %d file(s)...\n", len(files))
			res, err := a.ingest.IngestBatch(ctx, files)
			if err != nil {
				return err
			}

			summary := fmt.Sprintf("%d document(s), %d page(s), %d chunk(s) indexed", len(res.Documents), res.Pages, res.Chunks)
			_, err = tea.NewProgram(tui.New(ctx, a.orchestrator, summary), tea.WithAltScreen()).Run()
			return err
		},
	}
	chat.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	return chat
}
