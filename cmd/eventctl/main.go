package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	vocabFlag   string
	channelFlag string
	limitFlag   int
	rootCmd     = &cobra.Command{
		Use:   "eventctl",
		Short: "Offline tools for the event watcher",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&vocabFlag, "vocab", "", "Vocabulary YAML file (defaults to the built-in set)")

	classifyCmd := &cobra.Command{
		Use:   "classify [file]",
		Short: "Classify captured lines and print the candidates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			v, err := loadVocab(vocabFlag)
			if err != nil {
				return err
			}
			return runClassify(v, channelFlag, in, cmd.OutOrStdout())
		},
	}
	classifyCmd.Flags().StringVarP(&channelFlag, "channel", "c", "chat", "Capture channel: chat or dialog")
	rootCmd.AddCommand(classifyCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "vocab",
		Short: "List the known event kinds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := loadVocab(vocabFlag)
			if err != nil {
				return err
			}
			return runVocab(v, cmd.OutOrStdout())
		},
	})

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print records stored in the configured KV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return runHistory(st, limitFlag, cmd.OutOrStdout())
		},
	}
	historyCmd.Flags().IntVarP(&limitFlag, "limit", "n", 0, "Only the newest N records (0 = all)")
	rootCmd.AddCommand(historyCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "snapshot",
		Short: "Write the stored records as a JSON snapshot to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			data, err := st.Snapshot()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "restore <file>",
		Short: "Replace the stored records with a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			st, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return runRestore(cmd.Context(), st, data, cmd.OutOrStdout())
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
