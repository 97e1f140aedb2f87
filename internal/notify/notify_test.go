package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"academypay/internal/models"
)

func testPayment() (*models.Payment, *models.Booking) {
	p := &models.Payment{Reference: "ref-1", Amount: decimal.RequireFromString("1250")}
	b := &models.Booking{ID: 42, ParticipantName: "Sipho <Dube>", ClassName: "U10 Football"}
	return p, b
}

func TestPaymentReport(t *testing.T) {
	p, b := testPayment()
	text := PaymentReport(p, b, "1089250")

	assert.Contains(t, text, "Booking: #42")
	assert.Contains(t, text, "Sipho &lt;Dube&gt;")
	assert.Contains(t, text, "R 1 250.00")
	assert.Contains(t, text, "<code>1089250</code>")
}

func TestPaymentReceipt(t *testing.T) {
	p, b := testPayment()
	subject, body := PaymentReceipt(p, b)

	assert.Equal(t, "Payment received - booking #42", subject)
	assert.Contains(t, body, "Item: U10 Football")
	assert.Contains(t, body, "Reference: ref-1")

	b.ClassName = ""
	_, body = PaymentReceipt(p, b)
	assert.Contains(t, body, "Item: Class booking")
}

func TestNop(t *testing.T) {
	var r Reporter = Nop{}
	var s Sender = Nop{}
	assert.NoError(t, r.Report(context.Background(), "x"))
	assert.NoError(t, s.Send(context.Background(), "a@b.c", "s", "b"))
}

func TestMailer_Message(t *testing.T) {
	m := NewMailer("smtp.example.com", 587, "noreply@academy.test", "pw", "")
	msg := m.Message("thandi@example.com", "Payment received", "Hello")

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "From: noreply@academy.test")
	assert.Contains(t, raw, "To: thandi@example.com")
	assert.Contains(t, raw, "Subject: Payment received")
	assert.Contains(t, raw, "Hello")
}

func TestTelegram_Report(t *testing.T) {
	var hits atomic.Int32
	var gotChat atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotChat.Store(body["chat_id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100123,"type":"supergroup"},"text":"ok"}}`))
	}))
	defer srv.Close()

	tg, err := NewTelegram("123:abc", -100123, srv.URL, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, tg.Report(context.Background(), "<b>hello</b>"))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "-100123", gotChat.Load())
}
