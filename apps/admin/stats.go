package main

import (
	"context"
	"encoding/json"
)

func (cli *commandLine) stats(ctx context.Context) error {
	stats, err := cli.feeSvc.GetStats(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
