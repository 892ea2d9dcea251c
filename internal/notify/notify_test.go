package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taquilla/taquilla/internal/model"
)

func TestPickChannel(t *testing.T) {
	cust := func(email, phone string) *model.Customer {
		return &model.Customer{Email: email, Phone: phone}
	}
	prefs := func(email, sms, wa bool) *model.NotificationPreferences {
		return &model.NotificationPreferences{EmailEnabled: email, SMSEnabled: sms, WhatsAppEnabled: wa}
	}

	cases := []struct {
		name      string
		c         *model.Customer
		p         *model.NotificationPreferences
		channel   string
		recipient string
	}{
		{"email wins when present", cust("a@b.c", "+58414"), nil, ChannelEmail, "a@b.c"},
		{"no prefs means defaults", cust("", "+58414"), nil, ChannelSMS, "+58414"},
		{"email disabled falls to sms", cust("a@b.c", "+58414"), prefs(false, true, true), ChannelSMS, "+58414"},
		{"sms disabled falls to whatsapp", cust("", "+58414"), prefs(true, false, true), ChannelWhatsApp, "+58414"},
		{"everything disabled", cust("a@b.c", "+58414"), prefs(false, false, false), "", ""},
		{"no reachable contact", cust("", ""), nil, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch, rcpt := pickChannel(tc.c, tc.p)
			assert.Equal(t, tc.channel, ch)
			assert.Equal(t, tc.recipient, rcpt)
		})
	}
}

func TestCategoryEnabled(t *testing.T) {
	p := &model.NotificationPreferences{Purchases: true, Reminders: false}
	assert.True(t, categoryEnabled(p, TemplatePurchase))
	assert.False(t, categoryEnabled(p, TemplateReservation))
	assert.True(t, categoryEnabled(p, "unknown_template"))
}

func TestBodies(t *testing.T) {
	subject, body := PurchaseBody("Gran Concierto", []string{"1042-1-1", "1042-1-2"})
	assert.Contains(t, subject, "Gran Concierto")
	assert.Contains(t, body, "1042-1-1")
	assert.Contains(t, body, "1042-1-2")

	subject, body = ReservationLapsedBody("Gran Concierto")
	assert.Contains(t, subject, "Gran Concierto")
	assert.Contains(t, body, "lapsed")
}
