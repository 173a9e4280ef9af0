package notify

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"kart-ledger/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var templates = template.Must(template.New("notify").Funcs(template.FuncMap{
	"money":      Money,
	"variations": variationText,
}).Parse(`
{{define "order"}}Thank you for your order {{.Order.OrderNumber}}.

{{range .Order.Items}}{{.Quantity}} x {{.Name}}{{variations .Variations}}  {{money .LineTotalCents}}
{{end}}
Subtotal: {{money .Order.SubtotalCents}}
Shipping: {{money .Order.ShippingCents}}
{{if .Order.DiscountCents}}Discount ({{.Order.DiscountCode}}): -{{money .Order.DiscountCents}}
{{end}}{{if .Order.PointsDiscountCents}}Bonus points ({{.Order.BonusPointsRedeemed}}): -{{money .Order.PointsDiscountCents}}
{{end}}Total: {{money .Order.TotalCents}}
{{if .Order.BonusPointsEarned}}
You will earn {{.Order.BonusPointsEarned}} bonus points once the return period has passed.
{{end}}{{end}}
{{define "tracking"}}Your order {{.Order.OrderNumber}} is on its way.

Carrier: {{.Tracking.Carrier}}
Tracking number: {{.Tracking.TrackingNumber}}
{{if .Tracking.URL}}Track it here: {{.Tracking.URL}}
{{end}}{{end}}
{{define "return"}}We received your return request for order {{.Return.OrderNumber}}.

{{range .Return.Items}}{{.Quantity}} x {{.Name}}{{variations .Variations}}
{{end}}
We will let you know once it has been processed.
{{end}}
{{define "credit"}}Your return for order {{.Note.OrderNumber}} has been processed.

{{range .Note.Lines}}{{.Quantity}} x {{.Name}}{{variations .Variations}}  {{money .LineRefundCents}}
{{end}}
Refund total: {{money .Note.TotalRefundCents}}
{{end}}`))

// Money formats cents as a two-decimal amount.
func Money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2) + " EUR"
}

func variationText(v map[string]string) string {
	if len(v) == 0 {
		return ""
	}
	sig := model.LineSignature("", v)
	return " (" + strings.ReplaceAll(strings.TrimPrefix(sig, "|"), ":", ": ") + ")"
}

// Notifier renders order events and hands them to a Sender.
type Notifier struct {
	sender Sender
	logger zerolog.Logger
}

// NewNotifier creates a new notifier.
func NewNotifier(sender Sender, logger zerolog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// OrderConfirmed sends the order confirmation.
func (n *Notifier) OrderConfirmed(ctx context.Context, to string, order *model.Order) {
	n.send(ctx, to, "Order confirmation "+order.OrderNumber, "order", map[string]any{"Order": order})
}

// TrackingAdded tells the customer a shipment is on its way.
func (n *Notifier) TrackingAdded(ctx context.Context, to string, order *model.Order, tracking model.TrackingInfo) {
	n.send(ctx, to, "Your order "+order.OrderNumber+" has shipped", "tracking", map[string]any{
		"Order":    order,
		"Tracking": tracking,
	})
}

// ReturnReceived acknowledges a return request.
func (n *Notifier) ReturnReceived(ctx context.Context, to string, ret *model.ReturnRequest) {
	n.send(ctx, to, "Return request for order "+ret.OrderNumber, "return", map[string]any{"Return": ret})
}

// CreditNoteIssued sends the refund summary of a completed return.
func (n *Notifier) CreditNoteIssued(ctx context.Context, to string, note *model.CreditNote) {
	n.send(ctx, to, "Credit note for order "+note.OrderNumber, "credit", map[string]any{"Note": note})
}

func (n *Notifier) send(ctx context.Context, to, subject, name string, data any) {
	if n == nil || n.sender == nil {
		return
	}
	if to == "" {
		n.logger.Debug().Str("template", name).Msg("no recipient, skipping email")
		return
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		n.logger.Error().Err(err).Str("template", name).Msg("failed to render email")
		return
	}

	msg := &Message{To: to, Subject: subject, Text: strings.TrimSpace(body.String())}
	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.Error().
			Err(err).
			Str("template", name).
			Str("subject", subject).
			Msg("failed to send email")
	}
}
