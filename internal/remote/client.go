// Package remote implements the short-lived text-protocol client for
// every operation the upload engine needs against the PS5 host-side
// service besides the framed pack stream itself (SPEC_FULL.md §9).
// spec.md §6 lists these operations by name but leaves their wire
// format out of scope; this package gives them one concrete, internally
// consistent shape: one request line, one response line (or block for
// listings), with a dial timeout and a ReadTimeout deadline on
// responses. Request writes are plain conn.Write calls, without the
// retrying, idle-timed write loop the worker connections use.
package remote

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ps5upload/engine/internal/resume"
)

// ReadTimeout bounds how long a response read may take, per
// SPEC_FULL.md §9 ("a short 10s read timeout on responses").
const ReadTimeout = 10 * time.Second

// Client issues short-lived text-protocol requests against one PS5
// host-side service address.
type Client struct {
	Addr        string
	DialTimeout time.Duration
}

// NewClient returns a Client with spec.md-reasonable defaults.
func NewClient(addr string) *Client {
	return &Client{Addr: addr, DialTimeout: 10 * time.Second}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", c.Addr, err)
	}
	return conn, nil
}

// call opens one connection, writes a single request line, reads a
// single response line, and closes the connection. Used by every
// operation except UploadInit, which hands its connection to the
// caller instead of closing it.
func (c *Client) call(ctx context.Context, op string, args ...string) (string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return c.callOn(conn, op, args...)
}

func (c *Client) callOn(conn net.Conn, op string, args ...string) (string, error) {
	req := op
	if len(args) > 0 {
		req += " " + strings.Join(args, " ")
	}
	req += "\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		return "", fmt.Errorf("remote: write %s: %w", op, err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("remote: read response to %s: %w", op, err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return strings.TrimRight(line, "\r\n"), nil
}

// Exists reports whether relPath exists on the remote.
func (c *Client) Exists(ctx context.Context, relPath string) (bool, error) {
	resp, err := c.call(ctx, "EXISTS", relPath)
	if err != nil {
		return false, err
	}
	return resp == "1" || strings.EqualFold(resp, "true"), nil
}

// CreateDir creates relPath (and any missing parents) on the remote.
func (c *Client) CreateDir(ctx context.Context, relPath string) error {
	_, err := c.call(ctx, "MKDIR", relPath)
	return err
}

// Delete removes relPath on the remote.
func (c *Client) Delete(ctx context.Context, relPath string) error {
	_, err := c.call(ctx, "DELETE", relPath)
	return err
}

// Rename renames oldRelPath to newName within the same directory.
func (c *Client) Rename(ctx context.Context, oldRelPath, newName string) error {
	_, err := c.call(ctx, "RENAME", oldRelPath, newName)
	return err
}

// Move moves srcRelPath to dstRelPath.
func (c *Client) Move(ctx context.Context, srcRelPath, dstRelPath string) error {
	_, err := c.call(ctx, "MOVE", srcRelPath, dstRelPath)
	return err
}

// Copy copies srcRelPath to dstRelPath.
func (c *Client) Copy(ctx context.Context, srcRelPath, dstRelPath string) error {
	_, err := c.call(ctx, "COPY", srcRelPath, dstRelPath)
	return err
}

// Chmod sets relPath's mode, given as an octal string (e.g. "755").
func (c *Client) Chmod(ctx context.Context, relPath, mode string) error {
	_, err := c.call(ctx, "CHMOD", relPath, mode)
	return err
}

// FreeSpace returns the remote destination's available bytes, feeding
// the precondition check in spec.md §7.2 (required + 64MiB margin).
func (c *Client) FreeSpace(ctx context.Context, relPath string) (int64, error) {
	resp, err := c.call(ctx, "FREESPACE", relPath)
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseInt(resp, 10, 64)
	if perr != nil {
		return 0, fmt.Errorf("remote: parse free space %q: %w", resp, perr)
	}
	return n, nil
}

// FileHash fetches the remote's content hash (hex SHA-256) for
// relPath, consulted only by resume's sha256 mode.
func (c *Client) FileHash(ctx context.Context, relPath string) (string, error) {
	return c.call(ctx, "HASH", relPath)
}

// ListDirRecursive fetches the full remote inventory feeding
// resume.Plan, as "rel_path size [mtime]" lines terminated by a blank
// line.
func (c *Client) ListDirRecursive(ctx context.Context, relPath string) (resume.Inventory, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := "LISTR " + relPath + "\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		return nil, fmt.Errorf("remote: write LISTR: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(ReadTimeout))

	inv := resume.Inventory{}
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		size, perr := strconv.ParseInt(fields[1], 10, 64)
		if perr != nil {
			continue
		}
		entry := resume.RemoteEntry{Size: size}
		if len(fields) >= 3 {
			if mtime, merr := strconv.ParseInt(fields[2], 10, 64); merr == nil {
				entry.ModTime = mtime
				entry.HasModTime = true
			}
		}
		inv[fields[0]] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("remote: read LISTR response: %w", err)
	}
	return inv, nil
}

// ListDir lists one directory's immediate children, newline-separated.
func (c *Client) ListDir(ctx context.Context, relPath string) ([]string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("LIST " + relPath + "\n")); err != nil {
		return nil, fmt.Errorf("remote: write LIST: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(ReadTimeout))

	var names []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

// UploadInit negotiates one new upload connection and returns it with
// the protocol handshake already consumed; workers then speak FTX1
// framing directly on the returned net.Conn. The caller owns closing
// it. useTemp requests that the remote stage this upload to a
// temporary path and atomically move it into place once the Finish
// frame lands, per spec.md §4.5 "Temp-staging"; it is meaningful only
// for single-connection uploads and ignored by the remote otherwise.
func (c *Client) UploadInit(ctx context.Context, destRelPath string, payloadVersion string, useTemp bool) (net.Conn, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.callOn(conn, "UPLOADINIT", destRelPath, payloadVersion, strconv.FormatBool(useTemp))
	if err != nil {
		conn.Close()
		return nil, err
	}
	if resp != "OK" {
		conn.Close()
		return nil, fmt.Errorf("remote: upload init refused: %s", resp)
	}
	return conn, nil
}

// DownloadFile requests a download of one remote file, returning the
// remote's response line.
func (c *Client) DownloadFile(ctx context.Context, relPath string) (string, error) {
	return c.call(ctx, "DOWNLOAD", relPath)
}

// DownloadDir requests a recursive directory download, returning the
// remote's ack.
func (c *Client) DownloadDir(ctx context.Context, relPath string) (string, error) {
	return c.call(ctx, "DOWNLOADDIR", relPath)
}

// ExtractArchive asks the remote to extract an already-uploaded
// archive at relPath in place.
func (c *Client) ExtractArchive(ctx context.Context, relPath string) error {
	_, err := c.call(ctx, "EXTRACT", relPath)
	return err
}

// QueueExtract, CancelExtract, and ClearExtractQueue manage the
// remote's background extraction queue. mode is the RAR extraction
// mode ("safe"|"normal"|"turbo", or "" for the remote's default),
// carried so an uploaded-raw RAR archive (spec.md §6 "RAR extraction
// mode") is extracted the way the caller asked.
func (c *Client) QueueExtract(ctx context.Context, relPath string, mode string) error {
	if mode == "" {
		_, err := c.call(ctx, "EXTRACTQUEUE", relPath)
		return err
	}
	_, err := c.call(ctx, "EXTRACTQUEUE", relPath, mode)
	return err
}

func (c *Client) CancelExtract(ctx context.Context, relPath string) error {
	_, err := c.call(ctx, "EXTRACTCANCEL", relPath)
	return err
}

func (c *Client) ClearExtractQueue(ctx context.Context) error {
	_, err := c.call(ctx, "EXTRACTCLEAR")
	return err
}

// GetPayloadVersion fetches the remote payload's version string,
// gating Zstd/LZMA capability (spec.md §9).
func (c *Client) GetPayloadVersion(ctx context.Context) (string, error) {
	return c.call(ctx, "PAYLOADVERSION")
}

// GetPayloadStatus fetches the remote payload's running/stopped state.
func (c *Client) GetPayloadStatus(ctx context.Context) (string, error) {
	return c.call(ctx, "PAYLOADSTATUS")
}

// ProbeRarMetadata asks the remote to report RAR part/volume metadata
// for relPath ahead of a RAR extraction driver decision.
func (c *Client) ProbeRarMetadata(ctx context.Context, relPath string) (string, error) {
	return c.call(ctx, "PROBERAR", relPath)
}
