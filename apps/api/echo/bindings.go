package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

// orderingParam lists the fields to order by, comma separated. A leading "-" means descending.
const orderingParam = "ordering"

// bindInvoiceQuery reads the invoice filter and ordering from the query string.
func bindInvoiceQuery(ctx echo.Context) (fee.QueryFilter, []core.DBOrdering, error) {
	var filter fee.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return fee.QueryFilter{}, nil, err
	}
	return filter, parseOrdering(ctx.QueryParam(orderingParam)), nil
}

// parseOrdering skips blank fields, so "-due_date,,amount" is two orderings.
func parseOrdering(param string) []core.DBOrdering {
	var orderings []core.DBOrdering
	for _, field := range strings.Split(param, ",") {
		field = strings.TrimSpace(field)
		ascending := !strings.HasPrefix(field, "-")
		if field = strings.TrimSpace(strings.TrimPrefix(field, "-")); field == "" {
			continue
		}
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: ascending})
	}
	return orderings
}
