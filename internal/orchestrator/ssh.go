// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig holds the credentials used to reach LINBO clients. A single
// shared key/password pair is used fleet-wide: every client carries the
// same administrative identity.
type SSHConfig struct {
	User           string
	Password       string
	Signer         ssh.Signer // optional, preferred over Password when set
	Port           int
	ConnectTimeout time.Duration
}

func (c SSHConfig) clientConfig() *ssh.ClientConfig {
	var auths []ssh.AuthMethod
	if c.Signer != nil {
		auths = append(auths, ssh.PublicKeys(c.Signer))
	}
	if c.Password != "" {
		auths = append(auths, ssh.Password(c.Password))
	}
	timeout := c.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // LINBO clients have no fixed host key
		Timeout:         timeout,
	}
}

// RunCommand opens one SSH connection to host, runs cmd, and returns its
// combined stdout/stderr/exit code. It honors ctx cancellation by closing
// the underlying connection if ctx is done before the command finishes.
func RunCommand(ctx context.Context, host, cmd string, cfg SSHConfig) (stdout, stderr string, exitCode int, err error) {
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host, fmt.Sprint(port))

	dialer := net.Dialer{Timeout: cfg.clientConfig().Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", "", -1, fmt.Errorf("dialing %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg.clientConfig())
	if err != nil {
		conn.Close()
		return "", "", -1, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-done:
		}
	}()
	defer close(done)

	session, err := client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("opening session to %s: %w", addr, err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	runErr := session.Run(cmd)
	exitCode = 0
	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return outBuf.String(), errBuf.String(), -1, fmt.Errorf("running command on %s: %w", addr, runErr)
		}
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}
