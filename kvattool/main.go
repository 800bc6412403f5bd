// Command kvattool is a manual-exercise CLI for a KVAT store backed by
// a regular file, useful for poking at the engine without writing Go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/repixen/kvat"
	"github.com/repixen/kvat/storage/filestorage"
)

var storePath string

func openEngine() (*kvat.Engine, *filestorage.Storage, error) {
	cfg := kvat.DefaultConfig()
	store := filestorage.New(storePath, cfg.StorageSize())
	eng := kvat.NewEngine(store, cfg)
	if err := eng.Init(); err != nil {
		return nil, nil, err
	}
	return eng, store, nil
}

func main() {
	root := &cobra.Command{
		Use:   "kvattool",
		Short: "Inspect and edit a KVAT store from the command line",
	}
	root.PersistentFlags().StringVar(&storePath, "store", "kvat.img", "path to the backing file")

	root.AddCommand(
		&cobra.Command{
			Use:   "save <key> <value>",
			Short: "Store a value under key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				eng, store, err := openEngine()
				if err != nil {
					return err
				}
				defer store.Close()
				return eng.SaveString(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the value stored under key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				eng, store, err := openEngine()
				if err != nil {
					return err
				}
				defer store.Close()
				val, err := eng.RetrieveString(args[0])
				if err != nil {
					return err
				}
				fmt.Println(val)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <key>",
			Short: "Delete the entry stored under key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				eng, store, err := openEngine()
				if err != nil {
					return err
				}
				defer store.Close()
				return eng.DeleteValue(args[0])
			},
		},
		&cobra.Command{
			Use:   "search <prefix>",
			Short: "List keys starting with prefix",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				eng, store, err := openEngine()
				if err != nil {
					return err
				}
				defer store.Close()
				cursor := kvat.InitialSearchID
				for {
					key, next, found, err := eng.Search(args[0], cursor)
					if err != nil {
						return err
					}
					if !found {
						return nil
					}
					fmt.Println(key)
					if next == 0 {
						return nil
					}
					cursor = next
				}
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
