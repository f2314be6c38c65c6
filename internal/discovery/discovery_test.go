package discovery

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hmcalister/connectd/internal/connect"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListener() *Listener {
	return New(Config{
		Identity: connect.ConnectConfig{
			Name:         "Kitchen",
			DeviceType:   connect.DeviceTypeSpeaker,
			Volume:       1000,
			LinearVolume: true,
		},
		DeviceID:    "abc123",
		DisableMDNS: true,
	})
}

func TestGetInfoReportsIdentity(t *testing.T) {
	l := newTestListener()
	server := httptest.NewServer(l.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/?action=getInfo")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "Kitchen", info["remoteName"])
	assert.Equal(t, "abc123", info["deviceID"])
	assert.Equal(t, "SPEAKER", info["deviceType"])
	assert.Equal(t, float64(statusOK), info["status"])
}

func TestAddUserYieldsCredentials(t *testing.T) {
	l := newTestListener()
	server := httptest.NewServer(l.Handler())
	defer server.Close()

	respCh := make(chan *http.Response, 1)
	go func() {
		resp, err := server.Client().PostForm(server.URL+"/", url.Values{
			"action":    {"addUser"},
			"userName":  {"alice"},
			"blob":      {"opaque"},
			"clientKey": {"key"},
		})
		if err == nil {
			respCh <- resp
		}
		close(respCh)
	}()

	select {
	case c := <-l.Credentials():
		assert.Equal(t, connect.Credentials{
			Username: "alice",
			AuthType: connect.AuthTypeDiscoveryBlob,
			AuthData: []byte("opaque"),
		}, c)
	case <-time.After(5 * time.Second):
		t.Fatal("no credentials from addUser")
	}

	resp, ok := <-respCh
	require.True(t, ok)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAddUserRequiresUsernameAndBlob(t *testing.T) {
	l := newTestListener()
	server := httptest.NewServer(l.Handler())
	defer server.Close()

	resp, err := server.Client().PostForm(server.URL+"/", url.Values{"action": {"addUser"}, "userName": {"alice"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunClosesStreamOnCancel(t *testing.T) {
	l := newTestListener()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("listener did not stop")
	}
	_, open := <-l.Credentials()
	assert.False(t, open)
	assert.ErrorIs(t, l.Err(), context.Canceled)
}

func TestMDNSHostName(t *testing.T) {
	assert.Equal(t, "connectd-living-room.local", mdnsHostName("connectd@Living Room"))
	assert.Equal(t, "connectd.local", mdnsHostName("@@@"))
	assert.Equal(t, "kitchen.local", mdnsHostName("Kitchen!"))
}

func TestServiceAdvertisesZeroconfEndpoint(t *testing.T) {
	service, err := newService("Kitchen", 4070, []net.IP{net.ParseIP("192.0.2.10")})
	require.NoError(t, err)

	// What the responder answers to a browse for the service type
	var records []dns.RR
	for _, q := range []dns.Question{
		{Name: "_spotify-connect._tcp.local.", Qtype: dns.TypePTR, Qclass: dns.ClassINET},
		{Name: "Kitchen._spotify-connect._tcp.local.", Qtype: dns.TypeSRV, Qclass: dns.ClassINET},
		{Name: "Kitchen._spotify-connect._tcp.local.", Qtype: dns.TypeTXT, Qclass: dns.ClassINET},
		{Name: "kitchen.local.", Qtype: dns.TypeA, Qclass: dns.ClassINET},
	} {
		records = append(records, service.Records(q)...)
	}

	var ptr *dns.PTR
	var srv *dns.SRV
	var txt *dns.TXT
	var a *dns.A
	for _, rr := range records {
		switch r := rr.(type) {
		case *dns.PTR:
			ptr = r
		case *dns.SRV:
			srv = r
		case *dns.TXT:
			txt = r
		case *dns.A:
			a = r
		}
	}
	require.NotNil(t, ptr, "browsing the service type finds the instance")
	assert.Equal(t, "Kitchen._spotify-connect._tcp.local.", ptr.Ptr)
	require.NotNil(t, srv)
	assert.Equal(t, uint16(4070), srv.Port)
	assert.Equal(t, "kitchen.local.", srv.Target)
	require.NotNil(t, txt)
	assert.Contains(t, txt.Txt, "CPath=/")
	require.NotNil(t, a)
	assert.True(t, a.A.Equal(net.ParseIP("192.0.2.10")))
}

func TestServiceInstanceHasNoDots(t *testing.T) {
	service, err := newService("connectd@host.lan", 4070, []net.IP{net.ParseIP("192.0.2.10")})
	require.NoError(t, err)
	assert.Equal(t, "connectd@host-lan", service.Instance)
	assert.Equal(t, "connectd-host-lan.local.", service.HostName)
}

func TestAdvertisedIPsNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, advertisedIPs())
}
