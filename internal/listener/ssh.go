package listener

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

const sshHandshakeTimeout = 10 * time.Second

// SshListener serves sessions over SSH without client authentication; the
// name prompt identifies the user. Each connection carries one session.
type SshListener struct {
	addr   string
	cm     *ConnectionManager
	config *ssh.ServerConfig
}

func NewSshListener(port uint16, cm *ConnectionManager, hostKey ssh.Signer, opts ...ListenerOpt) *SshListener {
	config := &ssh.ServerConfig{
		NoClientAuth:  true,
		ServerVersion: "SSH-2.0-colony",
	}
	config.AddHostKey(hostKey)

	return &SshListener{
		addr:   newListenConfig(port, opts).addr(),
		cm:     cm,
		config: config,
	}
}

func (l *SshListener) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.addr, err)
	}

	slog.InfoContext(ctx, "listening for ssh", "addr", ln.Addr())
	return serve(ctx, ln, l.handleConnection)
}

func (l *SshListener) handleConnection(ctx context.Context, conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(sshHandshakeTimeout))
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, l.config)
	if err != nil {
		slog.WarnContext(ctx, "ssh handshake", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	_ = conn.SetDeadline(time.Time{})
	defer func() { _ = sshConn.Close() }()

	// Closing the connection ends the channel loop below.
	stop := context.AfterFunc(ctx, func() { _ = sshConn.Close() })
	defer stop()

	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		l.serveChannel(ctx, newChan, conn.RemoteAddr())
		return
	}
}

func (l *SshListener) serveChannel(ctx context.Context, newChan ssh.NewChannel, remote net.Addr) {
	ch, requests, err := newChan.Accept()
	if err != nil {
		slog.WarnContext(ctx, "accepting ssh channel", "remote", remote, "error", err)
		return
	}
	defer func() { _ = ch.Close() }()

	// Clients hold their input until the shell request is answered.
	shellReady := make(chan struct{})
	go replyToRequests(requests, shellReady)

	select {
	case <-shellReady:
	case <-ctx.Done():
		return
	}

	l.cm.AcceptConnection(WithConnInfo(ctx, ConnInfo{Protocol: "ssh", Remote: remote.String()}), newLineEndings(ch))

	status := struct{ Status uint32 }{0}
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
}

// replyToRequests accepts the first shell request and refuses everything
// else. Refusing pty-req keeps local echo and line editing on the client.
func replyToRequests(in <-chan *ssh.Request, shellReady chan<- struct{}) {
	shell := false
	for req := range in {
		ok := req.Type == "shell" && !shell
		if ok {
			shell = true
			close(shellReady)
		}
		if req.WantReply {
			_ = req.Reply(ok, nil)
		}
	}
}
