package main

import (
	"crypto/tls"
	"net"
)

// newTLSListener wraps a TCP listener on host:port with TLS using the given
// certificate/key pair.
func newTLSListener(host, port, certFile, keyFile string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}

	config := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequestClientCert,
	}

	return tls.Listen("tcp", net.JoinHostPort(host, port), config)
}
