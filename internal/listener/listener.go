// Package listener wires the pipeline to miekg/dns's UDP/TCP servers:
// one PacketConn and one net.Listener per WaitGroup-tracked goroutine
// pair, for a configurable set of listen addresses.
package listener

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"

	"authdns/internal/logging"
	"authdns/internal/pipeline"
	"authdns/internal/store"
)

// Handler is the subset of *pipeline.Pipeline the listener calls.
type Handler interface {
	Handle(ctx context.Context, req *dns.Msg) *dns.Msg
}

// Servers owns one UDP and one TCP *dns.Server per configured address.
type Servers struct {
	log     *logging.Logger
	tcpTimeout time.Duration
	handler Handler

	mu      sync.Mutex
	servers []*dns.Server
	wg      sync.WaitGroup
}

// New builds a Servers that will dispatch every question through handler.
func New(handler Handler, tcpTimeout time.Duration, log *logging.Logger) *Servers {
	return &Servers{handler: handler, tcpTimeout: tcpTimeout, log: log}
}

// Start binds a UDP and TCP listener on each of addrs and begins serving.
// Returns once every listener is bound; serving continues in background
// goroutines until Shutdown is called.
func (s *Servers) Start(addrs []string) error {
	mux := dns.NewServeMux()
	mux.HandleFunc(".", s.serveDNS)

	for _, addr := range addrs {
		packetConn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return err
		}
		tcpListener, err := net.Listen("tcp", addr)
		if err != nil {
			packetConn.Close()
			return err
		}

		udpSrv := &dns.Server{PacketConn: packetConn, Handler: mux, UDPSize: 65535}
		tcpSrv := &dns.Server{Listener: tcpListener, Handler: mux, ReadTimeout: s.tcpTimeout, WriteTimeout: s.tcpTimeout}

		s.mu.Lock()
		s.servers = append(s.servers, udpSrv, tcpSrv)
		s.mu.Unlock()

		s.wg.Add(2)
		go s.serve(udpSrv, addr, "udp")
		go s.serve(tcpSrv, addr, "tcp")
	}

	return nil
}

func (s *Servers) serve(srv *dns.Server, addr, proto string) {
	defer s.wg.Done()
	s.log.Infof("listener: serving %s/%s", addr, proto)
	if err := srv.ActivateAndServe(); err != nil {
		s.log.Warnf("listener: %s/%s server stopped: %v", addr, proto, err)
	}
}

// Shutdown closes every bound listener and waits for their serve
// goroutines to return.
func (s *Servers) Shutdown(ctx context.Context) {
	s.mu.Lock()
	servers := s.servers
	s.mu.Unlock()

	for _, srv := range servers {
		srv.ShutdownContext(ctx)
	}
	s.wg.Wait()
}

// serveDNS adapts a dns.ResponseWriter callback to the pipeline's
// Handle(ctx, req) signature, attaching the client's address for
// geo/region resolution and marking the origin as external so the
// store façade's rate limiter applies.
func (s *Servers) serveDNS(w dns.ResponseWriter, req *dns.Msg) {
	if len(req.Question) == 0 {
		m := new(dns.Msg)
		m.SetRcode(req, dns.RcodeFormatError)
		w.WriteMsg(m)
		return
	}

	host, _, err := net.SplitHostPort(w.RemoteAddr().String())
	var clientIP net.IP
	if err == nil {
		clientIP = net.ParseIP(host)
	}

	ctx := context.Background()
	ctx = pipeline.WithClientIP(ctx, clientIP)
	ctx = store.WithOrigin(ctx, store.OriginExternal)

	resp := s.handler.Handle(ctx, req)
	if err := w.WriteMsg(resp); err != nil {
		s.log.Warnf("listener: write response: %v", err)
	}
}
