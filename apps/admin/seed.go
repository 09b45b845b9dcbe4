package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

var defaultFeeTypes = []fee.NewFeeType{
	{Name: "Tuition", Amount: decimal.RequireFromString("500.00"), Description: null.StringFrom("Term tuition")},
	{Name: "Registration", Amount: decimal.RequireFromString("50.00"), Description: null.StringFrom("One-off registration fee")},
	{Name: "Library", Amount: decimal.RequireFromString("25.00")},
	{Name: "Transport", Amount: decimal.RequireFromString("120.00"), Description: null.StringFrom("School bus, per term")},
	{Name: "Uniform", Amount: decimal.RequireFromString("45.00")},
	{Name: "Examination", Amount: decimal.RequireFromString("30.00")},
}

func readFeeTypes(path string) ([]fee.NewFeeType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading seed file")
	}
	var fts []fee.NewFeeType
	if err = json.Unmarshal(data, &fts); err != nil {
		return nil, errors.Wrap(err, "decoding seed file")
	}
	return fts, nil
}

// seed creates the fee types of the catalog; fee types that already exist are skipped.
func (cli *commandLine) seed(ctx context.Context, path string) error {
	catalog := defaultFeeTypes
	if path != "" {
		var err error
		if catalog, err = readFeeTypes(path); err != nil {
			return err
		}
	}

	var created, skipped int
	for _, nft := range catalog {
		ft, err := cli.feeSvc.CreateFeeType(ctx, nft)
		switch {
		case err == nil:
			created++
			_, _ = fmt.Fprintf(cli.out, "created %s (%s)\n", ft.Name, ft.Amount.StringFixed(2))
		case core.IsConflict(err):
			skipped++
			_, _ = fmt.Fprintf(cli.out, "skipped %s: already exists\n", nft.Name)
		default:
			return errors.Wrapf(err, "seeding %q", nft.Name)
		}
	}
	_, _ = fmt.Fprintf(cli.out, "%d fee types created, %d skipped\n", created, skipped)
	return nil
}
