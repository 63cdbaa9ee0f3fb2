package gntptest

import (
	"context"
	"errors"
	"testing"

	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransportMatchesByAction(t *testing.T) {
	m := NewMockTransport()
	m.AddResponse("GNTP/1.0 -OK NONE\r\nResponse-Action: REGISTER\r\n")
	m.AddResponse("GNTP/1.0 -OK NONE\r\nResponse-Action: NOTIFY\r\n")

	app := gntp.NewApplication("MyApp", gntp.Icon{}, "Status")
	notify, err := gntp.EncodeNotify(app, gntp.NewNotification("Status", "", "x"))
	require.NoError(t, err)
	register, err := gntp.EncodeRegister(app)
	require.NoError(t, err)

	raw, err := m.RoundTrip(context.Background(), "localhost:23053", notify)
	require.NoError(t, err)
	resp, err := gntp.DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, gntp.ActionNotify, resp.Action)

	raw, err = m.RoundTrip(context.Background(), "localhost:23053", register)
	require.NoError(t, err)
	resp, err = gntp.DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, gntp.ActionRegister, resp.Action)

	_, err = m.RoundTrip(context.Background(), "localhost:23053", register)
	require.ErrorIs(t, err, ErrNoResponse)

	assert.Len(t, m.Requests(), 3)
	assert.Len(t, m.RequestsFor(gntp.ActionRegister), 2)
}

func TestMockTransportFailAddr(t *testing.T) {
	m := NewMockTransport()
	m.AddOK(gntp.ActionNotify)
	boom := errors.New("connection refused")
	m.FailAddr("10.0.0.1:23053", boom)

	_, err := m.RoundTrip(context.Background(), "10.0.0.1:23053", []byte("GNTP/1.0 NOTIFY NONE\r\n\r\n"))
	require.ErrorIs(t, err, boom)

	_, err = m.RoundTrip(context.Background(), "localhost:23053", []byte("GNTP/1.0 NOTIFY NONE\r\n\r\n"))
	require.NoError(t, err)
}
