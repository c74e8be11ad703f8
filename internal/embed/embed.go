// Package embed renders the script snippet a page pastes in to unlock exclusive content.
package embed

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Elias8833/webmonetization/internal/models"
)

// DefaultScriptSrc is the module the rendered snippet imports
const DefaultScriptSrc = "./exclusive-content.js"

const scriptTemplate = `<script type="module">
  import { exclusiveContent } from "{{ jsstr .ScriptSrc }}";

  const data = {
    paymentPointer: "{{ jsstr .PaymentPointer }}",
    proxyPaymentPointer: "{{ jsstr .ProxyPaymentPointer }}",
    cypherText: "{{ jsstr .CipherText }}",
    cypherVerifier: "{{ jsstr .CipherVerifier }}",
    initVector: "{{ jsstr .InitVector }}",
    nonce: "{{ jsstr .Nonce }}",
    receipt: "",
  };

  exclusiveContent(data);
</script>`

type scriptData struct {
	ScriptSrc           string
	PaymentPointer      string
	ProxyPaymentPointer string
	CipherText          string
	CipherVerifier      string
	InitVector          string
	Nonce               string
}

// Renderer produces embed scripts importing a fixed script source
type Renderer struct {
	scriptSrc string
	tmpl      *template.Template
}

// NewRenderer creates a renderer; an empty scriptSrc falls back to DefaultScriptSrc
func NewRenderer(scriptSrc string) *Renderer {
	if scriptSrc == "" {
		scriptSrc = DefaultScriptSrc
	}
	return &Renderer{
		scriptSrc: scriptSrc,
		tmpl: template.Must(template.New("embed").
			Funcs(template.FuncMap{"jsstr": jsString}).
			Parse(scriptTemplate)),
	}
}

// ScriptSrc returns the import path used by rendered scripts
func (r *Renderer) ScriptSrc() string {
	return r.scriptSrc
}

// Render fills the snippet with the request and its payload
func (r *Renderer) Render(req models.GenerationRequest, payload models.EncryptedPayload) (string, error) {
	if req.PaymentPointer == "" {
		return "", fmt.Errorf("%w: paymentPointer", models.ErrMissingField)
	}
	if req.VerifierURL == "" {
		return "", fmt.Errorf("%w: verifierUrl", models.ErrMissingField)
	}
	if err := payload.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	err := r.tmpl.Execute(&b, scriptData{
		ScriptSrc:           r.scriptSrc,
		PaymentPointer:      req.PaymentPointer,
		ProxyPaymentPointer: ProxyPaymentPointer(req.VerifierURL, req.PaymentPointer),
		CipherText:          payload.CipherText,
		CipherVerifier:      payload.CipherVerifier,
		InitVector:          payload.InitializationVector,
		Nonce:               payload.Nonce,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render embed script: %w", err)
	}
	return b.String(), nil
}

// ProxyPaymentPointer appends the encoded payment pointer to the verifier URL,
// which always ends up with exactly one trailing path separator.
func ProxyPaymentPointer(verifierURL, paymentPointer string) string {
	return strings.TrimRight(verifierURL, "/") + "/" + EncodeURIComponent(paymentPointer)
}

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent percent-encodes s the way JavaScript's encodeURIComponent does.
// s must be valid UTF-8; JavaScript throws on lone surrogates where this encodes the raw
// bytes, so GenerationRequest.Validate rejects such input before it gets here.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// jsString escapes s for a double-quoted string literal inside an HTML script element
func jsString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		case '<':
			b.WriteString(`\u003C`)
		case '>':
			b.WriteString(`\u003E`)
		case '&':
			b.WriteString(`\u0026`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
