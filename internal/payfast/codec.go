package payfast

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	// FieldSignature carries the checksum and is never signed over.
	FieldSignature = "signature"
	// FieldPassphrase is the merchant secret; appended only, never transmitted.
	FieldPassphrase = "passphrase"
)

// Fields is a flat field-name to value mapping as exchanged with the gateway.
type Fields map[string]string

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// sortedKeys returns the field names in ascending byte order, skipping the
// signature and, when skipPassphrase is set, any stray passphrase entry.
func (f Fields) sortedKeys(skipPassphrase bool) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		if k == FieldSignature {
			continue
		}
		if skipPassphrase && k == FieldPassphrase {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode percent-encodes a value the way the gateway expects it in the
// signing string: uppercase hex escapes, space as %20.
func Encode(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// SigningString builds the canonical parameter string for fields.
// The signature field is dropped, names are sorted, empty values are kept as
// "name=" and a non-empty passphrase is appended last.
func SigningString(fields Fields, passphrase string) string {
	var sb strings.Builder
	for i, k := range fields.sortedKeys(false) {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(Encode(fields[k]))
	}
	if passphrase != "" {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(FieldPassphrase)
		sb.WriteByte('=')
		sb.WriteString(Encode(passphrase))
	}
	return sb.String()
}

// Checksum returns the lowercase hex MD5 of the signing string.
// MD5 is fixed by the gateway protocol.
func Checksum(fields Fields, passphrase string) string {
	sum := md5.Sum([]byte(SigningString(fields, passphrase)))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the signature carried in fields matches the
// checksum recomputed over the remaining fields.
func Verify(fields Fields, passphrase string) bool {
	expected := Checksum(fields, passphrase)
	got := fields[FieldSignature]
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// Codec binds a merchant passphrase to the signing operations.
// The zero value signs without a passphrase. Safe for concurrent use.
type Codec struct {
	passphrase string
}

// NewCodec returns a Codec that signs with passphrase. An empty passphrase
// leaves it out of the signing string.
func NewCodec(passphrase string) *Codec {
	return &Codec{passphrase: passphrase}
}

// Checksum signs fields with the configured passphrase.
func (c *Codec) Checksum(fields Fields) string {
	return Checksum(fields, c.passphrase)
}

// Sign returns a copy of fields with the signature field set.
func (c *Codec) Sign(fields Fields) Fields {
	out := fields.Clone()
	delete(out, FieldPassphrase)
	out[FieldSignature] = Checksum(out, c.passphrase)
	return out
}

// VerifyNotification checks an inbound notification against the passphrase.
func (c *Codec) VerifyNotification(n *Notification) bool {
	return VerifyNotification(n, c.passphrase)
}

// RedirectURL builds the signed redirect URL for the configured passphrase.
func (c *Codec) RedirectURL(fields Fields, sandbox bool) string {
	return RedirectURL(fields, c.passphrase, sandbox)
}

// RedirectForm builds the signed auto-submitting form for the configured passphrase.
func (c *Codec) RedirectForm(fields Fields, sandbox bool) (string, error) {
	return RedirectForm(fields, c.passphrase, sandbox)
}
