package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xdbsoft/docstore"
	"github.com/xdbsoft/docstore/api"
)

var exampleCollection string

// exampleCmd walks a record through insert, fetch, update and remove
var exampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Run an insert/fetch/update/remove walkthrough against the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		svc, err := docstore.NewService(cfg, docstore.CollectionDefinition{Name: exampleCollection})
		if err != nil {
			return err
		}
		defer svc.Close(ctx)

		out := cmd.OutOrStdout()

		return svc.Then(ctx, func(svc *docstore.Service) error {

			id, err := svc.Insert(ctx, api.Record{"name": "a"})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "insert {name: a} -> %s\n", id)

			if err := printFetch(ctx, cmd, svc, id); err != nil {
				return err
			}

			res, err := svc.Update(ctx, id, api.Record{"value": 1})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "update %s {value: 1} -> %s\n", id, res.Status)

			if err := printFetch(ctx, cmd, svc, id); err != nil {
				return err
			}

			res, err = svc.Remove(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "remove %s -> %s\n", id, res.Status)

			return printFetch(ctx, cmd, svc, id)
		})
	},
}

func printFetch(ctx context.Context, cmd *cobra.Command, svc *docstore.Service, id string) error {

	r, found, err := svc.Fetch(ctx, id)
	if err != nil {
		return err
	}

	if !found {
		fmt.Fprintf(cmd.OutOrStdout(), "fetch %s -> not found\n", id)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "fetch %s -> %v\n", id, map[string]interface{}(r))
	return nil
}

func init() {
	exampleCmd.Flags().StringVar(&exampleCollection, "collection", "example", "collection to use")
}
