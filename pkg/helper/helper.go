// Package helper speaks the line-and-length framed protocol of the
// long-lived helper process that fronts the native git object store.
//
// The model is strictly synchronous: one request line goes out, then the
// caller reads exactly one response. Every typed query drains its full
// response before returning; if a response ever fails to parse the
// channel cannot be resynchronized, so the client marks itself broken and
// refuses further queries.
package helper

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/odvcencio/hgbridge/pkg/hg"
)

// ProtocolVersion is sent in the handshake; the helper answers "ok" when
// it speaks it.
const ProtocolVersion = 11

var (
	// ErrBroken means an earlier response failed to parse and the
	// request/response stream is no longer aligned.
	ErrBroken = errors.New("helper: protocol stream desynchronized")
	// ErrClosed means the client has been shut down.
	ErrClosed = errors.New("helper: client closed")
	// ErrHandshake means the helper rejected or garbled the version
	// handshake.
	ErrHandshake = errors.New("helper: version handshake failed")
)

// nullSHA1 is the helper's miss sentinel for git-side lookups.
const nullSHA1 = "0000000000000000000000000000000000000000"

// HeadRef is one entry of a "heads" response.
type HeadRef struct {
	Node   hg.Node
	Branch string
}

// RefEntry is one entry of a "for-each-ref" response.
type RefEntry struct {
	SHA1 string
	Name string
}

// Client is a synchronous client over the helper's duplex byte stream.
// It is not safe for concurrent use; callers confine it to one logical
// thread.
type Client struct {
	r      *bufio.Reader
	w      io.Writer
	logger *log.Logger
	cmd    *exec.Cmd

	version string
	broken  bool
	closed  bool
}

// New wraps an already-connected duplex stream. No handshake is
// performed; tests use this with scripted streams.
func New(r io.Reader, w io.Writer, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{r: bufio.NewReader(r), w: w, logger: logger}
}

// Start launches the helper executable, wires up its pipes and performs
// the version handshake.
func Start(command string, args []string, logger *log.Logger) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(), "GIT_REPLACE_REF_BASE=refs/cinnabar/replace/")
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("helper: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("helper: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("helper: start %s: %w", command, err)
	}
	c := New(stdout, stdin, logger)
	c.cmd = cmd
	if err := c.handshake(); err != nil {
		stdin.Close()
		cmd.Wait()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake() error {
	if err := c.request("version", fmt.Sprintf("%d", ProtocolVersion)); err != nil {
		return err
	}
	line, err := c.readLine()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if line != "ok" && !strings.HasPrefix(line, "ok ") {
		return fmt.Errorf("%w: got %q", ErrHandshake, line)
	}
	c.version = strings.TrimSpace(strings.TrimPrefix(line, "ok"))
	if c.version == "" {
		c.version = "unknown"
	}
	return nil
}

// Version reports the helper version string from the handshake.
func (c *Client) Version() string { return c.version }

// Closed reports whether Close has been called.
func (c *Client) Closed() bool { return c.closed }

// Close shuts down the stream and, when the helper was started as a
// subprocess, waits for it to exit. Idempotent.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var err error
	if wc, ok := c.w.(io.WriteCloser); ok {
		err = wc.Close()
	}
	if c.cmd != nil {
		if werr := c.cmd.Wait(); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func (c *Client) request(name string, args ...string) error {
	if c.closed {
		return ErrClosed
	}
	if c.broken {
		return ErrBroken
	}
	line := name
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	c.logger.Debug("helper query", "request", line)
	if _, err := io.WriteString(c.w, line+"\n"); err != nil {
		c.broken = true
		return fmt.Errorf("helper: send %q: %w", name, err)
	}
	return nil
}

// desync records a framing failure; the stream is unusable afterwards.
func (c *Client) desync(err error) error {
	c.broken = true
	return fmt.Errorf("%w: %v", ErrBroken, err)
}

func (c *Client) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", c.desync(err)
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func (c *Client) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, c.desync(err)
	}
	return buf, nil
}

// readData reads a "<size>\n<data>\n" response.
func (c *Client) readData() ([]byte, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	var size int
	if _, err := fmt.Sscanf(line, "%d", &size); err != nil {
		return nil, c.desync(fmt.Errorf("bad size line %q", line))
	}
	data, err := c.readExact(size)
	if err != nil {
		return nil, err
	}
	lf, err := c.readExact(1)
	if err != nil {
		return nil, err
	}
	if lf[0] != '\n' {
		return nil, c.desync(errors.New("missing data terminator"))
	}
	return data, nil
}

// readObject reads a "<sha1> <type> <size>\n<data>\n" response, or the
// "<null sha1>\n" miss form, in which case found is false.
func (c *Client) readObject(expectedType string) (data []byte, found bool, err error) {
	head, err := c.readExact(41)
	if err != nil {
		return nil, false, err
	}
	if head[40] == '\n' {
		if string(head[:40]) != nullSHA1 {
			return nil, false, c.desync(fmt.Errorf("bad miss response %q", head))
		}
		return nil, false, nil
	}
	if head[40] != ' ' {
		return nil, false, c.desync(fmt.Errorf("bad object response %q", head))
	}
	rest, err := c.readLine()
	if err != nil {
		return nil, false, err
	}
	var typ string
	var size int
	if _, err := fmt.Sscanf(rest, "%s %d", &typ, &size); err != nil {
		return nil, false, c.desync(fmt.Errorf("bad object header %q", rest))
	}
	if typ != expectedType {
		return nil, false, c.desync(fmt.Errorf("object type %q, expected %q", typ, expectedType))
	}
	data, err = c.readExact(size)
	if err != nil {
		return nil, false, err
	}
	lf, err := c.readExact(1)
	if err != nil {
		return nil, false, err
	}
	if lf[0] != '\n' {
		return nil, false, c.desync(errors.New("missing object terminator"))
	}
	return data, true, nil
}
