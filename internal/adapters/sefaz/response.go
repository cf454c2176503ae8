package sefaz

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// AuthorityError is one structured rejection item issued by the
// authority. Code and message are preserved verbatim for audit and
// compliance.
type AuthorityError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the parsed outcome of an authority answer.
type Result struct {
	Accepted         bool
	NFSeNumber       string
	VerificationCode string
	Errors           []AuthorityError
}

// ErrorText joins the authority's error messages for the audit log.
func (r *Result) ErrorText() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Code, e.Message))
	}
	return strings.Join(parts, "; ")
}

// ParseResponse extracts the authority's verdict from a raw response
// body. The authority embeds its return document as an escaped string
// (RetornoXML) inside the SOAP envelope, so parsing takes two passes:
// first the envelope, then the unescaped inner document. A body whose
// root already is a Retorno document (stub servers, stored payloads)
// parses in one pass.
func ParseResponse(body []byte) (*Result, error) {
	outer := etree.NewDocument()
	if err := outer.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}
	root := outer.Root()
	if root == nil {
		return nil, ErrUnparsableResponse
	}

	inner := outer
	if !strings.HasPrefix(root.Tag, "Retorno") {
		retorno := root.FindElement("//RetornoXML")
		if retorno == nil {
			return nil, fmt.Errorf("%w: no RetornoXML element", ErrUnparsableResponse)
		}
		inner = etree.NewDocument()
		if err := inner.ReadFromString(retorno.Text()); err != nil {
			return nil, fmt.Errorf("%w: inner document: %v", ErrUnparsableResponse, err)
		}
		if inner.Root() == nil {
			return nil, fmt.Errorf("%w: empty inner document", ErrUnparsableResponse)
		}
	}

	sucesso := inner.FindElement("//Cabecalho/Sucesso")
	if sucesso == nil {
		return nil, fmt.Errorf("%w: no success marker", ErrUnparsableResponse)
	}

	result := &Result{
		Accepted: strings.EqualFold(strings.TrimSpace(sucesso.Text()), "true"),
	}

	if chave := inner.FindElement("//ChaveNFe"); chave != nil {
		if numero := chave.FindElement("NumeroNFe"); numero != nil {
			result.NFSeNumber = strings.TrimSpace(numero.Text())
		}
		if codigo := chave.FindElement("CodigoVerificacao"); codigo != nil {
			result.VerificationCode = strings.TrimSpace(codigo.Text())
		}
	}

	for _, erro := range inner.FindElements("//Erro") {
		item := AuthorityError{}
		if codigo := erro.FindElement("Codigo"); codigo != nil {
			item.Code = strings.TrimSpace(codigo.Text())
		}
		if descricao := erro.FindElement("Descricao"); descricao != nil {
			item.Message = strings.TrimSpace(descricao.Text())
		}
		if item.Code != "" || item.Message != "" {
			result.Errors = append(result.Errors, item)
		}
	}

	return result, nil
}

// ParseConsultaStatus inspects a status-query answer for an invoice
// that may have been processed during an ambiguous timeout. When the
// authority knows the NFS-e, the result carries its number and
// verification code; Accepted=false with no errors means the authority
// never registered the RPS.
func ParseConsultaStatus(body []byte) (*Result, error) {
	result, err := ParseResponse(body)
	if err != nil {
		return nil, err
	}
	// A successful query that lists no NFS-e means the lot was never
	// processed; downgrade to not-accepted so the caller can reopen
	// the draft path.
	if result.Accepted && result.NFSeNumber == "" {
		result.Accepted = false
	}
	return result, nil
}
