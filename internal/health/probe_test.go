package health

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

// freeAddr returns an address on loopback with nothing listening.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestProbe_Listening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	if !Probe(context.Background(), ln.Addr().String(), time.Second) {
		t.Error("Probe() = false, want true for listening port")
	}
}

func TestProbe_NothingListening(t *testing.T) {
	addr := freeAddr(t)

	start := time.Now()
	if Probe(context.Background(), addr, time.Second) {
		t.Error("Probe() = true, want false for closed port")
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("Probe() took %v, want bounded by timeout", elapsed)
	}
}

func TestProbe_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if Probe(ctx, "127.0.0.1:1", time.Second) {
		t.Error("Probe() = true, want false with cancelled context")
	}
}

func TestProber_UsesEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	p := NewProber(Endpoint{Host: "127.0.0.1", Port: port}, time.Second)
	if !p.Probe(context.Background()) {
		t.Error("Probe() = false while listening")
	}

	ln.Close()
	if p.Probe(context.Background()) {
		t.Error("Probe() = true after listener closed")
	}
}

func TestEndpoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		wantErr bool
	}{
		{
			name: "valid",
			ep:   Endpoint{Host: "127.0.0.1", Port: 8080, BaseURL: "http://127.0.0.1:8080/"},
		},
		{
			name: "implicit http port",
			ep:   Endpoint{Host: "localhost", Port: 80, BaseURL: "http://localhost/"},
		},
		{
			name:    "empty host",
			ep:      Endpoint{Port: 8080, BaseURL: "http://127.0.0.1:8080/"},
			wantErr: true,
		},
		{
			name:    "port out of range",
			ep:      Endpoint{Host: "127.0.0.1", Port: 70000, BaseURL: "http://127.0.0.1:70000/"},
			wantErr: true,
		},
		{
			name:    "relative url",
			ep:      Endpoint{Host: "127.0.0.1", Port: 8080, BaseURL: "/index"},
			wantErr: true,
		},
		{
			name:    "port mismatch",
			ep:      Endpoint{Host: "127.0.0.1", Port: 8080, BaseURL: "http://127.0.0.1:9090/"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ep.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEndpoint) {
				t.Errorf("Validate() error = %v, want ErrInvalidEndpoint", err)
			}
		})
	}
}

func TestEndpoint_Addr(t *testing.T) {
	ep := Endpoint{Host: "::1", Port: 8080}
	if got := ep.Addr(); got != "[::1]:8080" {
		t.Errorf("Addr() = %q, want %q", got, "[::1]:8080")
	}
}
