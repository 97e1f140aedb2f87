package payfast

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const (
	sandboxHost    = "https://sandbox.payfast.co.za"
	productionHost = "https://www.payfast.co.za"

	processPath  = "/eng/process"
	validatePath = "/eng/query/validate"
)

func host(sandbox bool) string {
	if sandbox {
		return sandboxHost
	}
	return productionHost
}

// Endpoint returns the payment process URL for the sandbox or production gateway.
func Endpoint(sandbox bool) string {
	return host(sandbox) + processPath
}

// ValidateEndpoint returns the server-to-server confirmation URL.
func ValidateEndpoint(sandbox bool) string {
	return host(sandbox) + validatePath
}

// signedPairs returns the emitted name/value pairs: every input field except a
// stray passphrase, in name order, followed by the signature.
func signedPairs(fields Fields, passphrase string) []formField {
	keys := fields.sortedKeys(true)
	pairs := make([]formField, 0, len(keys)+1)
	for _, k := range keys {
		pairs = append(pairs, formField{Name: k, Value: fields[k]})
	}

	signed := make(Fields, len(keys))
	for _, k := range keys {
		signed[k] = fields[k]
	}
	pairs = append(pairs, formField{Name: FieldSignature, Value: Checksum(signed, passphrase)})
	return pairs
}

// RedirectURL returns the gateway URL carrying all fields and the signature
// as query parameters.
func RedirectURL(fields Fields, passphrase string, sandbox bool) string {
	pairs := signedPairs(fields, passphrase)

	var sb strings.Builder
	sb.WriteString(Endpoint(sandbox))
	sb.WriteByte('?')
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(p.Name)
		sb.WriteByte('=')
		sb.WriteString(Encode(p.Value))
	}
	return sb.String()
}

type formField struct {
	Name  string
	Value string
}

var redirectFormTmpl = template.Must(template.New("payfast-form").Parse(`<form action="{{.Action}}" method="post" id="payfast-payment-form">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<button type="submit">Pay with PayFast</button>
</form>
<script>document.getElementById('payfast-payment-form').submit();</script>
`))

// RedirectForm returns hidden-field markup for a form that posts all fields and
// the signature to the gateway and submits itself on load.
func RedirectForm(fields Fields, passphrase string, sandbox bool) (string, error) {
	var buf bytes.Buffer
	err := redirectFormTmpl.Execute(&buf, struct {
		Action string
		Fields []formField
	}{
		Action: Endpoint(sandbox),
		Fields: signedPairs(fields, passphrase),
	})
	if err != nil {
		return "", fmt.Errorf("render payfast form: %w", err)
	}
	return buf.String(), nil
}
