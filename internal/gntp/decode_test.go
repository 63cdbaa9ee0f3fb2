package gntp_test

import (
	"testing"

	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResponseOK(t *testing.T) {
	for _, action := range []gntp.Action{gntp.ActionRegister, gntp.ActionNotify} {
		raw := "GNTP/1.0 -OK NONE\r\n" +
			"Response-Action: " + string(action) + "\r\n"

		resp, err := gntp.DecodeResponse([]byte(raw))
		require.NoError(t, err)
		assert.True(t, resp.OK())
		assert.Equal(t, action, resp.Action)
		assert.Zero(t, resp.ErrorCode)
	}
}

func TestDecodeResponseError(t *testing.T) {
	raw := "GNTP/1.0 -ERROR NONE\r\n" +
		"Response-Action: NOTIFY\r\n" +
		"Error-Code: 402\r\n" +
		"Error-Description: Unknown notification type\r\n" +
		"\r\n"

	resp, err := gntp.DecodeResponse([]byte(raw))
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, gntp.StatusError, resp.Status)
	assert.Equal(t, gntp.ActionNotify, resp.Action)
	assert.Equal(t, gntp.ErrCodeUnknownNotification, resp.ErrorCode)
	assert.Equal(t, "Unknown notification type", resp.ErrorDescription)
}

func TestDecodeResponseIgnoresUnknownKeys(t *testing.T) {
	raw := "GNTP/1.0 -OK NONE\r\n" +
		"Response-Action: REGISTER\r\n" +
		"Origin-Machine-Name: build-box\r\n" +
		"X-Future-Header: whatever\r\n" +
		"\r\n"

	resp, err := gntp.DecodeResponse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, gntp.ActionRegister, resp.Action)
	assert.Equal(t, "whatever", resp.Headers.Get("x-future-header"))
}

func TestDecodeResponseToleratesBareLF(t *testing.T) {
	resp, err := gntp.DecodeResponse([]byte("GNTP/1.0 -OK NONE\nResponse-Action: NOTIFY\n\n"))
	require.NoError(t, err)
	assert.Equal(t, gntp.ActionNotify, resp.Action)
}

func TestDecodeResponseMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no directive":   "GNTP/1.0\r\n",
		"wrong protocol": "HTTP/1.1 200 OK\r\n",
		"wrong version":  "GNTP/2.0 -OK NONE\r\n",
		"request":        "GNTP/1.0 NOTIFY NONE\r\nApplication-Name: x\r\n",
		"bad header":     "GNTP/1.0 -OK NONE\r\nno colon here\r\n",
		"bad error code": "GNTP/1.0 -ERROR NONE\r\nError-Code: abc\r\n",
		"unknown cipher": "GNTP/1.0 -OK RC4:00 SHA256:00.00\r\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := gntp.DecodeResponse([]byte(raw))
			var perr *gntp.ProtocolError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []gntp.Response{
		{Status: gntp.StatusOK, Action: gntp.ActionRegister},
		{Status: gntp.StatusOK, Action: gntp.ActionNotify, NotificationID: "n-1"},
		{Status: gntp.StatusError, Action: gntp.ActionNotify, ErrorCode: gntp.ErrCodeNotAuthorized, ErrorDescription: "bad password"},
		{Status: gntp.StatusCallback, NotificationID: "n-2", CallbackResult: "CLICKED"},
	}
	for _, in := range cases {
		raw, err := gntp.EncodeResponse(in)
		require.NoError(t, err)

		out, err := gntp.DecodeResponse(raw)
		require.NoError(t, err)
		assert.Equal(t, in.Status, out.Status)
		assert.Equal(t, in.Action, out.Action)
		assert.Equal(t, in.ErrorCode, out.ErrorCode)
		assert.Equal(t, in.ErrorDescription, out.ErrorDescription)
		assert.Equal(t, in.NotificationID, out.NotificationID)
		assert.Equal(t, in.CallbackResult, out.CallbackResult)
	}
}

func TestDecodeMessageRegisterSections(t *testing.T) {
	app := gntp.NewApplication("MyApp", gntp.Icon{}, "Status", "Error")
	app.Notifications[1].Disabled = true

	raw, err := gntp.EncodeRegister(app)
	require.NoError(t, err)

	m, err := gntp.DecodeMessage(raw, "")
	require.NoError(t, err)
	assert.Equal(t, string(gntp.ActionRegister), m.Directive)
	assert.Equal(t, "MyApp", m.Headers.Get(gntp.HeaderApplicationName))
	assert.Equal(t, "2", m.Headers.Get(gntp.HeaderNotificationsCount))
	require.Len(t, m.Sections, 2)
	assert.Equal(t, "Status", m.Sections[0].Get(gntp.HeaderNotificationName))
	assert.Equal(t, "True", m.Sections[0].Get(gntp.HeaderNotificationEnabled))
	assert.Equal(t, "False", m.Sections[1].Get(gntp.HeaderNotificationEnabled))
}

func TestDecodeMessageTruncatedResource(t *testing.T) {
	raw := "GNTP/1.0 NOTIFY NONE\r\n" +
		"Notification-Icon: x-growl-resource://abc\r\n" +
		"\r\n" +
		"Identifier: abc\r\n" +
		"Length: 100\r\n" +
		"\r\n" +
		"short"
	_, err := gntp.DecodeMessage([]byte(raw), "")
	var perr *gntp.ProtocolError
	require.ErrorAs(t, err, &perr)
}
