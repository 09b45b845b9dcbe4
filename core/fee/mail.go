package fee

import (
	"context"
	"net/mail"

	"github.com/trezcool/masomo-fees/core"
)

const receiptTemplate = "payment_receipt"

type receiptData struct {
	StudentName   string
	FeeName       string
	PaymentID     string
	Amount        string
	Method        string
	PaidAmount    string
	InvoiceAmount string
	Balance       string
	Status        Status
}

// sendReceipt emails a payment receipt to the student, if they have an email address.
// Sending is asynchronous and never fails the payment.
func (svc *Service) sendReceipt(ctx context.Context, receipt PaymentReceipt) {
	view, err := svc.repo.GetInvoice(ctx, receipt.Invoice.ID)
	if err != nil {
		svc.logger.Warn("fee.sendReceipt: "+err.Error(), err, map[string]interface{}{"invoice_id": receipt.Invoice.ID})
		return
	}
	if view.StudentEmail == "" {
		return
	}

	inv := receipt.Invoice
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: view.StudentName, Address: view.StudentEmail}},
		Subject:      "Payment receipt",
		TemplateName: receiptTemplate,
		TemplateData: receiptData{
			StudentName:   view.StudentName,
			FeeName:       view.FeeName.String,
			PaymentID:     receipt.Payment.ID,
			Amount:        receipt.Payment.Amount.StringFixed(2),
			Method:        receipt.Payment.Method,
			PaidAmount:    inv.PaidAmount.StringFixed(2),
			InvoiceAmount: inv.Amount.StringFixed(2),
			Balance:       inv.Balance().StringFixed(2),
			Status:        inv.Status,
		},
	})
}
