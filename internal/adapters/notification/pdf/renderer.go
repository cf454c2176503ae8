// Package pdf renders the printable mirror (DANFSE) of an authorized
// NFS-e that is attached to the notification e-mail.
package pdf

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"gestaoplus/ms_nfse_core/internal/core/invoice"
	"gestaoplus/ms_nfse_core/internal/core/settings"
)

var hundred = decimal.NewFromInt(100)

// Renderer builds the DANFSE PDF for an authorized invoice.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces the PDF bytes. The invoice must already carry the
// authority-assigned number and verification code.
func (r *Renderer) Render(inv *invoice.Invoice, st *settings.IssuerSettings) ([]byte, error) {
	if inv.NFSeNumber == "" {
		return nil, fmt.Errorf("invoice %s has no NFS-e number yet", inv.ID)
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "NFS-e — Nota Fiscal de Serviços Eletrônica", props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, "Prefeitura do Município de São Paulo — Secretaria Municipal da Fazenda", props.Text{
			Size:  9,
			Align: align.Center,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Número da NFS-e: "+inv.NFSeNumber, props.Text{Style: fontstyle.Bold}),
			text.New("Código de verificação: "+inv.VerificationCode, props.Text{Top: 5}),
			text.New("Data de emissão: "+inv.IssuedAt.Format("02/01/2006"), props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New(fmt.Sprintf("RPS: %s/%d", inv.RPSSeries, inv.RPSNumber)),
			text.New("Código do serviço: "+inv.ServiceCode, props.Text{Top: 5}),
		),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New("Prestador de serviços", props.Text{Style: fontstyle.Bold}),
			text.New("CNPJ: "+st.CNPJ, props.Text{Top: 5}),
			text.New("Inscrição municipal: "+st.MunicipalRegistration, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Tomador de serviços", props.Text{Style: fontstyle.Bold}),
			text.New("CPF/CNPJ: "+inv.ClientRef, props.Text{Top: 5}),
		),
	)

	m.AddRow(10,
		text.NewCol(12, "Discriminação dos serviços", props.Text{Style: fontstyle.Bold, Size: 10}),
	)
	m.AddRow(20,
		text.NewCol(12, inv.ServiceDescr, props.Text{Size: 9}),
	)

	m.AddRow(10,
		text.NewCol(4, "Valor total do serviço", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Deduções", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Base de cálculo", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Alíquota", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Valor do ISS", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		text.NewCol(4, "R$ "+inv.ServiceAmount.StringFixed(2), props.Text{Size: 9}),
		text.NewCol(2, "R$ "+inv.Deductions.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, "R$ "+inv.TaxBase.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, inv.TaxRate.Mul(hundred).StringFixed(2)+"%", props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, "R$ "+inv.TaxAmount().StringFixed(2), props.Text{Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate DANFSE pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
