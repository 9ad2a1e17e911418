package credentials

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hirochachacha/go-smb2"
	"golang.org/x/crypto/ssh"
)

// DefaultTimeout bounds each connection attempt
const DefaultTimeout = 5 * time.Second

const probeCommand = `echo "Connection successful"`

var (
	// ErrAuth marks a rejected login
	ErrAuth = errors.New("authentication failed")
	// ErrCommandFailed marks an SSH login whose test command did not answer
	ErrCommandFailed = errors.New("command execution failed")
)

// Prober logs in to one host over one protocol. A nil error is a successful login.
type Prober interface {
	SSH(ctx context.Context, host string, cred Credential) error
	SMB(ctx context.Context, host string, cred Credential) error
}

// NetProber logs in over the network
type NetProber struct {
	Timeout time.Duration
	SSHPort int
	SMBPort int
}

// NewNetProber returns a prober on the standard ports
func NewNetProber(timeout time.Duration) *NetProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &NetProber{Timeout: timeout, SSHPort: 22, SMBPort: 445}
}

func (p *NetProber) dial(ctx context.Context, host string, port int) (net.Conn, string, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, addr, err
	}
	if err := conn.SetDeadline(time.Now().Add(p.Timeout)); err != nil {
		conn.Close()
		return nil, addr, err
	}
	return conn, addr, nil
}

// SSH logs in with the password and runs the test command
func (p *NetProber) SSH(ctx context.Context, host string, cred Credential) error {
	conn, addr, err := p.dial(ctx, host, p.SSHPort)
	if err != nil {
		return err
	}

	password := cred.Password()
	cfg := &ssh.ClientConfig{
		User: cred.Username(),
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         p.Timeout,
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return err
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}
	defer session.Close()

	out, err := session.Output(probeCommand)
	if err != nil || strings.TrimSpace(string(out)) != "Connection successful" {
		return ErrCommandFailed
	}
	return nil
}

// SMB opens and closes an NTLM session
func (p *NetProber) SMB(ctx context.Context, host string, cred Credential) error {
	conn, _, err := p.dial(ctx, host, p.SMBPort)
	if err != nil {
		return err
	}
	defer conn.Close()

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     cred.Username(),
			Password: cred.Password(),
			Domain:   cred.Domain(),
		},
	}
	s, err := d.DialContext(ctx, conn)
	if err != nil {
		if logonFailure(err) {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return err
	}
	return s.Logoff()
}

func logonFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"logon", "access denied", "access rights", "authentication"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Describe turns a probe error into the message shown for the attempt
func Describe(protocol string, err error) string {
	if err == nil {
		return "Success"
	}
	var netErr net.Error
	var opErr *net.OpError
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, ErrAuth):
		return "Authentication failed (wrong credentials)"
	case errors.Is(err, ErrCommandFailed):
		return "Command execution failed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(), strings.Contains(msg, "timed out"):
		return "Connection timed out"
	case errors.Is(err, syscall.ECONNREFUSED), strings.Contains(msg, "connection refused"):
		return "Connection refused"
	case errors.As(err, &opErr):
		return "Network error: " + err.Error()
	default:
		return protocol + " error: " + err.Error()
	}
}
