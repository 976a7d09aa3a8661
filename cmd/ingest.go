/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jjudge-oj/contestd/internal/ingest"
	"github.com/jjudge-oj/contestd/internal/mq"
	"github.com/jjudge-oj/contestd/internal/server"
	"github.com/spf13/cobra"
)

var publishFile string

// ingestCmd groups the message queue commands.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Consume or publish judge states",
}

var ingestConsumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run only the judge-state consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		if cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Shutdown(cmd.Context()) }()
		return srv.Consume(ctx)
	},
}

var ingestPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish judge states read from a JSON file",
	Long: `Publishes judge states to the judge channel. The file holds a JSON array of
{"contest_id": n, "judge_state": {...}} objects. Usage:

	contestd ingest publish --file states.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		f, err := os.Open(publishFile)
		if err != nil {
			return err
		}
		defer f.Close()
		messages, err := ingest.ReadMessages(f)
		if err != nil {
			return err
		}

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is required")
		}
		defer broker.Close()

		for i, m := range messages {
			id, err := ingest.Publish(cmd.Context(), broker, cfg.MQ.JudgeChannel, m)
			if err != nil {
				return fmt.Errorf("publish message %d: %w", i, err)
			}
			log.Debug().Str("message_id", id).Int("contest_id", m.ContestID).Msg("judge state published")
		}
		log.Info().Int("count", len(messages)).Str("channel", cfg.MQ.JudgeChannel).Msg("judge states published")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestConsumeCmd, ingestPublishCmd)
	ingestPublishCmd.Flags().StringVar(&publishFile, "file", "", "JSON file of judge states")
	_ = ingestPublishCmd.MarkFlagRequired("file")
}
