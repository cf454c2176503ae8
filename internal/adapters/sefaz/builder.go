package sefaz

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"gestaoplus/ms_nfse_core/internal/core/invoice"
	"gestaoplus/ms_nfse_core/internal/core/settings"
)

// Namespace of the São Paulo municipal NFS-e schema.
const Namespace = "http://www.prefeitura.sp.gov.br/nfe"

const schemaInstanceNS = "http://www.w3.org/2001/XMLSchema-instance"

// Builder renders the three request kinds of the São Paulo protocol.
// It is pure: same invoice + settings always produce byte-identical
// XML. Free text is escaped by etree serialization. Signature elements
// are emitted with their plaintext signing string as content; the
// Signer replaces them with the actual RSA-SHA1 values.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// BuildEnvioLoteRPS renders a single-RPS batch submission
// (PedidoEnvioLoteRPS).
func (b *Builder) BuildEnvioLoteRPS(inv *invoice.Invoice, st *settings.IssuerSettings) (string, error) {
	if err := validateSubmission(inv, st); err != nil {
		return "", err
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("PedidoEnvioLoteRPS")
	root.CreateAttr("xmlns", Namespace)
	root.CreateAttr("xmlns:xsi", schemaInstanceNS)

	issueDate := inv.IssuedAt.Format("2006-01-02")

	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("Versao", st.SchemaVersion)
	cab.CreateAttr("xmlns", "")
	remetente := cab.CreateElement("CPFCNPJRemetente")
	remetente.CreateElement("CNPJ").SetText(st.CNPJ)
	cab.CreateElement("transacao").SetText("true")
	cab.CreateElement("dtInicio").SetText(issueDate)
	cab.CreateElement("dtFim").SetText(issueDate)
	cab.CreateElement("QtdRPS").SetText("1")
	cab.CreateElement("ValorTotalServicos").SetText(formatAmount(inv.ServiceAmount))
	cab.CreateElement("ValorTotalDeducoes").SetText(formatAmount(inv.Deductions))

	rps := root.CreateElement("RPS")
	rps.CreateAttr("xmlns", "")
	// Plaintext RPS signing string; replaced by the Signer.
	rps.CreateElement("Assinatura").SetText(rpsSigningString(inv, st))

	chave := rps.CreateElement("ChaveRPS")
	chave.CreateElement("InscricaoPrestador").SetText(st.MunicipalRegistration)
	chave.CreateElement("SerieRPS").SetText(inv.RPSSeries)
	chave.CreateElement("NumeroRPS").SetText(fmt.Sprintf("%d", inv.RPSNumber))

	rps.CreateElement("TipoRPS").SetText(inv.RPSType)
	rps.CreateElement("DataEmissao").SetText(issueDate)
	rps.CreateElement("StatusRPS").SetText("N")
	rps.CreateElement("TributacaoRPS").SetText(st.TaxRegime)
	rps.CreateElement("ValorServicos").SetText(formatAmount(inv.ServiceAmount))
	rps.CreateElement("ValorDeducoes").SetText(formatAmount(inv.Deductions))
	rps.CreateElement("CodigoServico").SetText(inv.ServiceCode)
	rps.CreateElement("AliquotaServicos").SetText(inv.TaxRate.StringFixed(4))
	rps.CreateElement("ISSRetido").SetText("false")
	if tomador := digitsOnly(inv.ClientRef); len(tomador) == 14 {
		rps.CreateElement("CPFCNPJTomador").CreateElement("CNPJ").SetText(tomador)
	} else if len(tomador) == 11 {
		rps.CreateElement("CPFCNPJTomador").CreateElement("CPF").SetText(tomador)
	}
	rps.CreateElement("Discriminacao").SetText(inv.ServiceDescr)

	return serialize(doc)
}

// BuildCancelamento renders a cancellation request
// (PedidoCancelamentoNFe) for an authorized invoice, addressed by its
// authority-assigned NFS-e number.
func (b *Builder) BuildCancelamento(inv *invoice.Invoice, st *settings.IssuerSettings) (string, error) {
	if err := validateSettings(st); err != nil {
		return "", err
	}
	if inv.NFSeNumber == "" {
		return "", fmt.Errorf("%w: invoice has no authority-assigned number", ErrMalformedInput)
	}
	if !isNumeric(inv.NFSeNumber) || len(inv.NFSeNumber) > 12 {
		return "", fmt.Errorf("%w: NFS-e number must be numeric with at most 12 digits", ErrMalformedInput)
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("PedidoCancelamentoNFe")
	root.CreateAttr("xmlns", Namespace)
	root.CreateAttr("xmlns:xsi", schemaInstanceNS)

	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("Versao", st.SchemaVersion)
	cab.CreateAttr("xmlns", "")
	cab.CreateElement("CPFCNPJRemetente").CreateElement("CNPJ").SetText(st.CNPJ)
	cab.CreateElement("transacao").SetText("true")

	det := root.CreateElement("Detalhe")
	det.CreateAttr("xmlns", "")
	chave := det.CreateElement("ChaveNFe")
	chave.CreateElement("InscricaoPrestador").SetText(st.MunicipalRegistration)
	chave.CreateElement("NumeroNFe").SetText(inv.NFSeNumber)
	// Plaintext cancellation signing string; replaced by the Signer.
	det.CreateElement("AssinaturaCancelamento").SetText(cancellationSigningString(inv, st))

	return serialize(doc)
}

// BuildConsulta renders a status query (PedidoConsultaNFe) addressed
// by the invoice's RPS key, the only identifier guaranteed to exist
// while the authority-side outcome is unknown.
func (b *Builder) BuildConsulta(inv *invoice.Invoice, st *settings.IssuerSettings) (string, error) {
	if err := validateSettings(st); err != nil {
		return "", err
	}
	if inv.RPSNumber <= 0 || inv.RPSSeries == "" {
		return "", fmt.Errorf("%w: RPS number and series are required", ErrMalformedInput)
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("PedidoConsultaNFe")
	root.CreateAttr("xmlns", Namespace)
	root.CreateAttr("xmlns:xsi", schemaInstanceNS)

	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("Versao", st.SchemaVersion)
	cab.CreateAttr("xmlns", "")
	cab.CreateElement("CPFCNPJRemetente").CreateElement("CNPJ").SetText(st.CNPJ)

	det := root.CreateElement("Detalhe")
	det.CreateAttr("xmlns", "")
	chave := det.CreateElement("ChaveRPS")
	chave.CreateElement("InscricaoPrestador").SetText(st.MunicipalRegistration)
	chave.CreateElement("SerieRPS").SetText(inv.RPSSeries)
	chave.CreateElement("NumeroRPS").SetText(fmt.Sprintf("%d", inv.RPSNumber))

	return serialize(doc)
}

// rpsSigningString builds the fixed-width ASCII string the authority
// requires to be RSA-SHA1 signed per RPS. Field widths follow the São
// Paulo NFS-e manual: registration 8, series 5 space-padded, number
// 12, date AAAAMMDD, tax regime 1, status 1, ISS withheld S/N, amounts
// 15 digits in cents, service code 5, client document indicator 1 plus
// 14 digits.
func rpsSigningString(inv *invoice.Invoice, st *settings.IssuerSettings) string {
	var sb strings.Builder
	sb.WriteString(padNumber(st.MunicipalRegistration, 8))
	sb.WriteString(padRight(strings.ToUpper(inv.RPSSeries), 5))
	sb.WriteString(fmt.Sprintf("%012d", inv.RPSNumber))
	sb.WriteString(inv.IssuedAt.Format("20060102"))
	sb.WriteString(st.TaxRegime)
	sb.WriteString("N")
	sb.WriteString("N")
	sb.WriteString(amountInCents(inv.ServiceAmount))
	sb.WriteString(amountInCents(inv.Deductions))
	sb.WriteString(padNumber(inv.ServiceCode, 5))

	tomador := digitsOnly(inv.ClientRef)
	switch len(tomador) {
	case 11:
		sb.WriteString("1")
		sb.WriteString(padNumber(tomador, 14))
	case 14:
		sb.WriteString("2")
		sb.WriteString(padNumber(tomador, 14))
	default:
		sb.WriteString("3")
		sb.WriteString(strings.Repeat("0", 14))
	}
	return sb.String()
}

// cancellationSigningString is registration (8) plus NFS-e number (12).
func cancellationSigningString(inv *invoice.Invoice, st *settings.IssuerSettings) string {
	return padNumber(st.MunicipalRegistration, 8) + padNumber(inv.NFSeNumber, 12)
}

func validateSubmission(inv *invoice.Invoice, st *settings.IssuerSettings) error {
	if err := validateSettings(st); err != nil {
		return err
	}
	var problems []string
	if inv.RPSNumber <= 0 {
		problems = append(problems, "RPS number is required")
	}
	if inv.RPSSeries == "" {
		problems = append(problems, "RPS series is required")
	}
	if inv.RPSType == "" {
		problems = append(problems, "RPS type is required")
	}
	if inv.IssuedAt.IsZero() {
		problems = append(problems, "issuance date is required")
	}
	if inv.ServiceCode == "" || !isNumeric(inv.ServiceCode) || len(inv.ServiceCode) > 5 {
		problems = append(problems, "service code must be numeric with at most 5 digits")
	}
	if inv.ServiceDescr == "" {
		problems = append(problems, "service description is required")
	}
	if inv.ServiceAmount.IsNegative() || inv.Deductions.IsNegative() {
		problems = append(problems, "amounts must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrMalformedInput, strings.Join(problems, "; "))
	}
	return nil
}

func validateSettings(st *settings.IssuerSettings) error {
	if !isNumeric(st.MunicipalRegistration) || len(st.MunicipalRegistration) > 8 {
		return fmt.Errorf("%w: municipal registration must be numeric with at most 8 digits", ErrMalformedInput)
	}
	if len(st.CNPJ) != 14 || !isNumeric(st.CNPJ) {
		return fmt.Errorf("%w: CNPJ must be 14 digits", ErrMalformedInput)
	}
	if st.SchemaVersion == "" {
		return fmt.Errorf("%w: schema version is required", ErrMalformedInput)
	}
	return nil
}

func serialize(doc *etree.Document) (string, error) {
	doc.WriteSettings.CanonicalEndTags = true
	xml, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return xml, nil
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// amountInCents renders an amount as 15 zero-padded digits.
func amountInCents(d decimal.Decimal) string {
	cents := d.Mul(decimal.NewFromInt(100)).Round(0)
	return fmt.Sprintf("%015s", cents.String())
}

// padNumber zero-pads a numeric field to its signing-string width.
// Over-width values are rejected by the builders' validation before any
// signing string is assembled; truncating here would produce a
// signature the authority rejects with no local hint.
func padNumber(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
