package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/odvcencio/hgbridge/pkg/config"
	"github.com/odvcencio/hgbridge/pkg/helper"
	"github.com/odvcencio/hgbridge/pkg/hg"
	"github.com/odvcencio/hgbridge/pkg/store"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "hgbridge",
		Short: "Translate Mercurial revisions into a git object store",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML configuration")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newHeadsCmd())
	root.AddCommand(newChangesetCmd())
	root.AddCommand(newManifestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore wires config → logger → helper → store and hands back a
// teardown that finalizes the session.
func openStore() (*store.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level})

	client, err := helper.Start(cfg.Helper.Command, cfg.Helper.Args, logger)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(client, logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	teardown := func() {
		if err := s.Close(); err != nil {
			logger.Error("close store", "err", err)
		}
		client.Close()
	}
	return s, teardown, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("hgbridge 0.1.0-dev")
		},
	}
}

func newHeadsCmd() *cobra.Command {
	var branches []string
	cmd := &cobra.Command{
		Use:   "heads",
		Short: "List changeset heads known to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, teardown, err := openStore()
			if err != nil {
				return err
			}
			defer teardown()
			heads, err := s.Heads(branches...)
			if err != nil {
				return err
			}
			for _, h := range heads {
				fmt.Println(h)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&branches, "branch", nil, "restrict to the given branches")
	return cmd
}

func newChangesetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "changeset <node>",
		Short: "Dump a changeset by node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, teardown, err := openStore()
			if err != nil {
				return err
			}
			defer teardown()
			cs, err := s.Changeset(hg.Node(args[0]))
			if err != nil {
				return err
			}
			os.Stdout.Write(cs.Data())
			return nil
		},
	}
}

func newManifestCmd() *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "manifest <node>",
		Short: "Dump a manifest by node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, teardown, err := openStore()
			if err != nil {
				return err
			}
			defer teardown()
			m, err := s.Manifest(hg.Node(args[0]), parents)
			if err != nil {
				return err
			}
			if parents {
				fmt.Printf("parent %s\nparent %s\n", m.Parent1, m.Parent2)
			}
			os.Stdout.Write(m.Data())
			return nil
		},
	}
	cmd.Flags().BoolVar(&parents, "parents", false, "resolve and print parent manifests")
	return cmd
}
