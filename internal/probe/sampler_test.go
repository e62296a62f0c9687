package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveenergy/netstrain/pkg/types"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    types.LatencySample
		matched bool
	}{
		{
			name:    "iputils reply",
			line:    "64 bytes from 8.8.8.8: icmp_seq=1 ttl=117 time=12.3 ms",
			want:    types.Sample(12.3),
			matched: true,
		},
		{
			name:    "squashed time token",
			line:    "64 bytes from 10.0.0.1: seq=0 ttl=64 time=0.482ms",
			want:    types.Sample(0.482),
			matched: true,
		},
		{
			name:    "ipv6 reply",
			line:    "64 bytes from 2001:db8::1: icmp_seq=4 ttl=55 time=23.0 ms",
			want:    types.Sample(23.0),
			matched: true,
		},
		{
			name:    "outstanding probe",
			line:    "no answer yet for icmp_seq=3",
			want:    types.Drop(),
			matched: true,
		},
		{
			name:    "bsd timeout",
			line:    "Request timeout for icmp_seq 7",
			want:    types.Drop(),
			matched: true,
		},
		{
			name:    "host unreachable",
			line:    "From 192.168.1.1 icmp_seq=2 Destination Host Unreachable",
			want:    types.Drop(),
			matched: true,
		},
		{
			name: "banner",
			line: "PING 8.8.8.8 (8.8.8.8) 56(84) bytes of data.",
		},
		{
			name: "summary header",
			line: "--- 8.8.8.8 ping statistics ---",
		},
		{
			name: "summary counts",
			line: "10 packets transmitted, 10 received, 0% packet loss, time 9012ms",
		},
		{
			name: "rtt summary",
			line: "rtt min/avg/max/mdev = 11.961/12.412/13.492/0.458 ms",
		},
		{
			name: "empty",
			line: "",
		},
		{
			name: "unparseable rtt",
			line: "64 bytes from 8.8.8.8: icmp_seq=1 ttl=117 time=abc ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseLine(tt.line)
			assert.Equal(t, tt.matched, ok)
			if tt.matched {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSamplerCollectsSamples(t *testing.T) {
	script := writeScript(t, "ping", `
echo "PING example.org (93.184.216.34) 56(84) bytes of data."
echo "64 bytes from 93.184.216.34: icmp_seq=1 ttl=56 time=14.1 ms"
echo "64 bytes from 93.184.216.34: icmp_seq=2 ttl=56 time=15.9 ms"
echo "no answer yet for icmp_seq=3"
echo "64 bytes from 93.184.216.34: icmp_seq=4 ttl=56 time=13.2 ms"
while :; do sleep 1; done
`)

	s := New(Config{Host: "example.org", Command: script, Interval: 200 * time.Millisecond})
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.Count() >= 4 }, 5*time.Second, 20*time.Millisecond)

	samples := s.Stop()
	require.Len(t, samples, 4)

	var valid, drops int
	for _, sm := range samples {
		if sm.Dropped {
			drops++
		} else {
			valid++
		}
	}
	assert.Equal(t, 3, valid)
	assert.Equal(t, 1, drops)
	assert.NoError(t, s.Err())
}

func TestSamplerStopIdempotent(t *testing.T) {
	script := writeScript(t, "ping", `
echo "64 bytes from 10.0.0.1: icmp_seq=1 ttl=64 time=1.0 ms"
while :; do sleep 1; done
`)

	s := New(Config{Host: "10.0.0.1", Command: script})
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Count() >= 1 }, 5*time.Second, 20*time.Millisecond)

	first := s.Stop()
	second := s.Stop()
	assert.Equal(t, first, second)
}

func TestSamplerLaunchFailure(t *testing.T) {
	s := New(Config{
		Host:    "example.org",
		Command: filepath.Join(t.TempDir(), "no-such-binary"),
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsLaunchFailure(err))
}

func TestSamplerEarlyExit(t *testing.T) {
	script := writeScript(t, "ping", `
echo "ping: nosuch.invalid: Name or service not known" 1>&2
exit 2
`)

	s := New(Config{Host: "nosuch.invalid", Command: script})
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-s.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("probe did not exit")
	}

	err := s.Err()
	require.Error(t, err)
	assert.True(t, types.IsLaunchFailure(err))
	assert.Contains(t, err.Error(), "Name or service not known")
	assert.Empty(t, s.Stop())
}

func TestSamplerContextCancelKillsProbe(t *testing.T) {
	script := writeScript(t, "ping", `
while :; do sleep 1; done
`)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{Host: "example.org", Command: script})
	require.NoError(t, s.Start(ctx))

	cancel()
	select {
	case <-s.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("probe survived context cancellation")
	}
	assert.NoError(t, s.Err())
}

func TestProbeArgs(t *testing.T) {
	args := probeArgs(Config{Host: "example.org", Interval: 200 * time.Millisecond})
	assert.Equal(t, []string{"-n", "-O", "-i", "0.2", "example.org"}, args)

	args = probeArgs(Config{Host: "example.org"})
	assert.Equal(t, []string{"-n", "-O", "example.org"}, args)
}
