package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"markov-persona/corpus"
	apperrors "markov-persona/errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	trainDir   string
	trainLines bool
)

// trainCmd seeds user chains from message files and persists them
var trainCmd = &cobra.Command{
	Use:   "train [user] [file...]",
	Short: "Seed a user's chain from message files",
	Long: `Seeds a user's chain from one or more files and saves it.

Files ending in .json are message batches (a JSON array of strings), .pdf files
contribute one segment per page, anything else is read one message per line.

With --dir every user_messages_<user>.json batch in the directory is trained,
several users at once (TRAIN_CONCURRENCY).`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainDir, "dir", "", "train every user_messages_<user>.json batch in this directory")
	trainCmd.Flags().BoolVar(&trainLines, "lines", false, "seed raw lines without markdown stripping or sentence splitting")
}

func runTrain(cmd *cobra.Command, args []string) error {
	err := train(cmd, args)
	if provider := apperrors.ProviderOf(err); provider != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "chain store provider %q failed\n", provider)
	}
	return err
}

func train(cmd *cobra.Command, args []string) error {
	if trainDir == "" && len(args) < 2 {
		return fmt.Errorf("train needs a user and at least one file, or --dir")
	}

	svc, closeStore, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	out := cmd.OutOrStdout()
	if trainDir != "" {
		batches, err := readBatchDir(trainDir)
		if err != nil {
			return err
		}
		results, err := svc.TrainAll(cmd.Context(), batches)
		if err != nil {
			return err
		}
		for _, res := range results {
			fmt.Fprintf(out, "%-20s %6d messages %6d links (+%d)\n", res.User, res.Messages, res.Links, res.NewLinks)
		}
		return nil
	}

	user, files := args[0], args[1:]
	if trainLines {
		for _, path := range files {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			res, err := svc.TrainLines(cmd.Context(), user, f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(out, "%-20s %6d links (+%d) from %s\n", user, res.Links, res.NewLinks, filepath.Base(path))
		}
		return nil
	}

	var messages []string
	for _, path := range files {
		msgs, err := corpus.ReadFile(path, logger)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Debug("Read corpus file", zap.String("path", path), zap.Int("messages", len(msgs)))
		messages = append(messages, msgs...)
	}
	res, err := svc.Train(cmd.Context(), user, messages)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-20s %6d messages %6d links (+%d)\n", res.User, res.Messages, res.Links, res.NewLinks)
	return nil
}

const batchPrefix = "user_messages_"

// readBatchDir reads every user_messages_<user>.json file in dir.
func readBatchDir(dir string) (map[string][]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, batchPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	batches := make(map[string][]string, len(paths))
	for _, path := range paths {
		user := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), batchPrefix), ".json")
		if user == "" {
			continue
		}
		msgs, err := corpus.ReadFile(path, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		batches[user] = append(batches[user], msgs...)
	}
	if len(batches) == 0 {
		return nil, fmt.Errorf("no %s*.json batches in %s", batchPrefix, dir)
	}
	return batches, nil
}
