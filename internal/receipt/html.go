package receipt

import (
	"html/template"
	"io"

	"github.com/go-faster/errors"

	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
)

var htmlTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Receipt {{.Number}}</title>
<style>
body { font-family: monospace; font-size: 12px; }
.receipt { width: 300px; margin: 0 auto; }
.header { text-align: center; border-bottom: 2px solid #000; padding: 10px 0; }
.title { font-size: 16px; font-weight: bold; }
.info { margin: 10px 0; }
.items { border-top: 1px solid #000; border-bottom: 1px solid #000; }
.item { display: flex; justify-content: space-between; padding: 2px 0; }
.note { font-size: 10px; color: #666; margin-left: 10px; }
.total { text-align: right; margin: 10px 0; }
.grand { font-weight: bold; border-top: 1px solid #000; padding-top: 5px; }
.footer { text-align: center; margin-top: 20px; font-size: 10px; }
@media print { body { -webkit-print-color-adjust: exact; } }
</style>
</head>
<body>
<div class="receipt">
<div class="header">
<div class="title">{{.Shop}}</div>
<div>Receipt</div>
</div>
<div class="info">
<div>Order: {{.Number}}</div>
<div>Table: {{.Table}}</div>
<div>Date: {{.Date}}</div>
<div>Status: {{.Status}}</div>
</div>
<div class="items">
{{- range .Lines}}
<div class="item"><span>{{.Name}} x{{.Quantity}}</span><span>{{.Amount}}</span></div>
{{- if .Instructions}}
<div class="note">* {{.Instructions}}</div>
{{- end}}
{{- end}}
</div>
<div class="total">
<div>Subtotal: {{.Subtotal}}</div>
<div>Tax ({{.TaxRate}}): {{.Tax}}</div>
<div class="grand">Total: {{.Total}}</div>
</div>
{{- if .Note}}
<div class="info">Note: {{.Note}}</div>
{{- end}}
<div class="footer">
<div>Thank you for dining with us!</div>
<div>We look forward to your next visit.</div>
{{- if .Address}}
<div>Address: {{.Address}}</div>
{{- end}}
{{- if .Phone}}
<div>Phone: {{.Phone}}</div>
{{- end}}
</div>
</div>
</body>
</html>
`))

type htmlLine struct {
	Name         string
	Quantity     int
	Amount       string
	Instructions string
}

type htmlData struct {
	Shop, Address, Phone string
	Number, Table, Date  string
	Status               string
	Lines                []htmlLine
	Subtotal, Tax, Total string
	TaxRate              string
	Note                 string
}

// HTML writes the printable receipt. All order-supplied text is escaped.
func (f *Formatter) HTML(w io.Writer, o *order.Order, t *table.Table) error {
	tot := f.Totals(o)
	data := htmlData{
		Shop:     f.cfg.ShopName,
		Address:  f.cfg.Address,
		Phone:    f.cfg.Phone,
		Number:   Number(o),
		Table:    tableNumber(t),
		Date:     o.CreatedAt.In(f.cfg.Location).Format(timeLayout),
		Status:   StatusLabel(o.Status),
		Lines:    make([]htmlLine, 0, len(o.Items)),
		Subtotal: f.Money(tot.Subtotal),
		Tax:      f.Money(tot.Tax),
		Total:    f.Money(tot.Total),
		TaxRate:  f.taxPercent(),
		Note:     o.CustomerNote,
	}
	for _, it := range o.Items {
		data.Lines = append(data.Lines, htmlLine{
			Name:         it.Name,
			Quantity:     it.Quantity,
			Amount:       f.Money(it.LineTotal()),
			Instructions: it.Instructions,
		})
	}
	if err := htmlTemplate.Execute(w, data); err != nil {
		return errors.Wrap(err, "render receipt")
	}
	return nil
}
