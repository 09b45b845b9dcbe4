package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

type feeApi struct {
	svc *fee.Service
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *fee.Service) {
	api := feeApi{svc: svc}

	staff := roleMiddleware(core.RoleAdmin, core.RoleBursar, core.RoleTeacher)
	ledger := roleMiddleware(core.RoleAdmin, core.RoleBursar)

	fees := g.Group("/fees", jwt, actorMiddleware)
	fees.GET("/types", api.feeTypeQuery, staff)
	fees.POST("/types", api.feeTypeCreate, ledger)
	fees.GET("/stats", api.stats, staff)

	invoices := fees.Group("/invoices")
	invoices.GET("", api.invoiceQuery, staff)
	invoices.POST("", api.invoiceCreate, ledger)
	invoices.GET("/:id", api.invoiceRetrieve, staff)
	invoices.GET("/:id/payments", api.paymentQuery, staff)
	invoices.POST("/:id/payments", api.paymentCreate, ledger)
}

func (api *feeApi) feeTypeQuery(ctx echo.Context) error {
	fts, err := api.svc.ListFeeTypes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying fee types")
	}
	return ctx.JSON(http.StatusOK, fts)
}

func (api *feeApi) feeTypeCreate(ctx echo.Context) error {
	var data fee.NewFeeType
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeType")
	}
	ft, err := api.svc.CreateFeeType(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee type")
	}
	return ctx.JSON(http.StatusCreated, ft)
}

func (api *feeApi) stats(ctx echo.Context) error {
	stats, err := api.svc.GetStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *feeApi) invoiceQuery(ctx echo.Context) error {
	filter, ordering, err := bindInvoiceQuery(ctx)
	if err != nil {
		return errors.Wrap(err, "binding invoice query")
	}

	invs, err := api.svc.ListInvoices(ctx.Request().Context(), filter, ordering...)
	if err != nil {
		return errors.Wrap(err, "querying invoices")
	}
	return ctx.JSON(http.StatusOK, invs)
}

func (api *feeApi) invoiceCreate(ctx echo.Context) error {
	var data fee.NewInvoice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvoice")
	}
	inv, err := api.svc.CreateInvoice(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating invoice")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *feeApi) invoiceRetrieve(ctx echo.Context) error {
	detail, err := api.svc.GetInvoice(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting invoice")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *feeApi) paymentQuery(ctx echo.Context) error {
	payments, err := api.svc.ListPayments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ctx.JSON(http.StatusOK, payments)
}

// paymentCreate responds with 201 when the payment is recorded
// and 200 when an already recorded payment is replayed (same idempotency key).
func (api *feeApi) paymentCreate(ctx echo.Context) error {
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	data.InvoiceID = ctx.Param("id")
	if key := ctx.Request().Header.Get("Idempotency-Key"); key != "" && !data.IdempotencyKey.Valid {
		data.IdempotencyKey.SetValid(key)
	}

	receipt, err := api.svc.RecordPayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	code := http.StatusCreated
	if receipt.Replayed {
		code = http.StatusOK
	}
	return ctx.JSON(code, receipt)
}
