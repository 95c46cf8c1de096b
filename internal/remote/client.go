// Package remote is the SSH/SFTP transport for mirroring skills onto
// remote hosts: connectivity tests, tool detection, uploads, and the
// per-host sync batches.
package remote

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"skillshub/internal/faults"
)

// ErrAuth marks a connection failure caused by authentication rather
// than the network; callers branch on it with errors.Is.
var ErrAuth = errors.New("authentication failed")

// Params identifies one SSH endpoint and how to authenticate against
// it. AuthMethod is "agent" or "key"; KeyPath may be empty for the
// default key candidates under ~/.ssh.
type Params struct {
	Host       string
	Port       int
	Username   string
	AuthMethod string
	KeyPath    string
}

// Timeouts bounds connection establishment: Connect covers the TCP
// dial, Session the handshake and every subsequent operation's
// deadline.
type Timeouts struct {
	Connect time.Duration
	Session time.Duration
}

// DefaultTimeouts matches the tuning the product shipped with.
func DefaultTimeouts() Timeouts {
	return Timeouts{Connect: 15 * time.Second, Session: 30 * time.Second}
}

// Passphrase resolves the passphrase for an encrypted key file, or ""
// when none is stored.
type Passphrase func(keyPath string) (string, error)

// Conn is the transport surface the sync and detection logic needs.
// *Client implements it; tests substitute fakes.
type Conn interface {
	Home() (string, error)
	Exec(command string) (string, error)
	UploadDir(localDir, remoteDir string) error
	MkdirAll(remoteDir string) error
}

// Client is one live SSH connection plus a lazily opened SFTP
// subsystem. A Client serves one command at a time; per-host
// serialization above it keeps concurrent syncs off the same session.
type Client struct {
	ssh *ssh.Client

	mu   sync.Mutex
	sftp *sftp.Client
	home string
}

// Dial opens a connection to the endpoint described by params. The TCP
// dial and the handshake are bounded separately; auth failures are
// distinguishable from network failures via ErrAuth.
func Dial(params Params, t Timeouts, passphrase Passphrase) (*Client, error) {
	auth, err := authMethods(params, passphrase)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(params.Host, strconv.Itoa(params.Port))
	conn, err := net.DialTimeout("tcp", addr, t.Connect)
	if err != nil {
		return nil, faults.Wrap(faults.Connection, err, "connect to %s", addr)
	}

	// The handshake gets its own longer deadline; a server that
	// accepts TCP quickly may still negotiate slowly.
	conn.SetDeadline(time.Now().Add(t.Session))

	cfg := &ssh.ClientConfig{
		User: params.Username,
		Auth: auth,
		// The saved host entry is the user's trust decision.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         t.Session,
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		if isAuthErr(err) {
			return nil, faults.Wrap(faults.Connection, errors.Join(ErrAuth, err),
				"authentication failed for user %q", params.Username)
		}
		return nil, faults.Wrap(faults.Connection, err, "SSH handshake with %s", addr)
	}
	conn.SetDeadline(time.Time{})

	return &Client{ssh: ssh.NewClient(sshConn, chans, reqs)}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.sftp != nil {
		c.sftp.Close()
		c.sftp = nil
	}
	c.mu.Unlock()
	return c.ssh.Close()
}

// Exec runs a command on the remote host and returns its stdout. The
// stderr stream is drained to EOF before waiting for channel close;
// some servers stall on a full stderr buffer otherwise.
func (c *Client) Exec(command string) (string, error) {
	sess, err := c.ssh.NewSession()
	if err != nil {
		return "", faults.Wrap(faults.Connection, err, "open SSH session")
	}
	defer sess.Close()

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return "", faults.Wrap(faults.Connection, err, "attach stdout")
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return "", faults.Wrap(faults.Connection, err, "attach stderr")
	}

	if err := sess.Start(command); err != nil {
		return "", faults.Wrap(faults.Connection, err, "exec: %s", command)
	}

	outBuf, _ := io.ReadAll(stdout)
	errBuf, _ := io.ReadAll(stderr)

	if err := sess.Wait(); err != nil {
		return "", faults.Wrap(faults.Connection, err,
			"remote command %q failed: %s", command, strings.TrimSpace(string(errBuf)))
	}
	return string(outBuf), nil
}

// Home returns the remote home directory, resolved once per
// connection. SFTP does not expand ~, so every remote path is built
// from this.
func (c *Client) Home() (string, error) {
	c.mu.Lock()
	cached := c.home
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	out, err := c.Exec("echo $HOME")
	if err != nil {
		return "", err
	}
	home := strings.TrimSpace(out)
	if home == "" {
		return "", faults.New(faults.Connection, "remote host reported no home directory")
	}

	c.mu.Lock()
	c.home = home
	c.mu.Unlock()
	return home, nil
}

func (c *Client) sftpClient() (*sftp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sftp != nil {
		return c.sftp, nil
	}
	cl, err := sftp.NewClient(c.ssh)
	if err != nil {
		return nil, faults.Wrap(faults.Connection, err, "open SFTP subsystem")
	}
	c.sftp = cl
	return cl, nil
}

// TestConnection dials, runs a probe command, and reports the remote
// output. It is the connectivity check behind the host form's test
// button.
func TestConnection(params Params, t Timeouts, passphrase Passphrase) (string, error) {
	client, err := Dial(params, t, passphrase)
	if err != nil {
		return "", err
	}
	defer client.Close()

	out, err := client.Exec("echo ok")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func authMethods(params Params, passphrase Passphrase) ([]ssh.AuthMethod, error) {
	if params.AuthMethod == "agent" {
		sock := os.Getenv("SSH_AUTH_SOCK")
		if sock == "" {
			return nil, faults.New(faults.Connection, "no SSH agent available (SSH_AUTH_SOCK unset)")
		}
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, faults.Wrap(faults.Connection, err, "connect to SSH agent")
		}
		return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(conn).Signers)}, nil
	}

	keyPath, err := resolveKeyPath(params.KeyPath)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, faults.Wrap(faults.IO, err, "read SSH key").At(keyPath)
	}

	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if !errors.As(err, &missing) || passphrase == nil {
			return nil, faults.Wrap(faults.Validation, err, "parse SSH key").At(keyPath)
		}
		pass, passErr := passphrase(keyPath)
		if passErr != nil || pass == "" {
			return nil, faults.Wrap(faults.Connection, errors.Join(ErrAuth, err),
				"SSH key is encrypted and no passphrase is stored").At(keyPath)
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(raw, []byte(pass))
		if err != nil {
			return nil, faults.Wrap(faults.Connection, errors.Join(ErrAuth, err),
				"decrypt SSH key").At(keyPath)
		}
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// defaultKeyCandidates are tried in order when no key path is given.
var defaultKeyCandidates = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// resolveKeyPath expands an explicit key path or falls back to the
// conventional keys under ~/.ssh.
func resolveKeyPath(keyPath string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", faults.Wrap(faults.IO, err, "resolve home directory")
	}

	if keyPath != "" {
		if strings.HasPrefix(keyPath, "~/") {
			keyPath = filepath.Join(home, keyPath[2:])
		}
		return keyPath, nil
	}

	for _, name := range defaultKeyCandidates {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", faults.New(faults.Validation, "no SSH key found in ~/.ssh; set an explicit key path")
}

func isAuthErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "permission denied")
}
