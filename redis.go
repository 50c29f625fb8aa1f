package main

import (
    "bufio"
    "errors"
    "fmt"
    "io"
    "net"
    "net/url"
    "strconv"
    "strings"
    "time"
)

// redisConfig is the parsed form of REDIS_URL.
type redisConfig struct {
    Addr     string
    Password string
    DB       int
}

func parseRedisURL(raw string) (redisConfig, error) {
    if raw == "" {
        raw = "redis://localhost:6379/0"
    }
    u, err := url.Parse(raw)
    if err != nil {
        return redisConfig{}, fmt.Errorf("invalid REDIS_URL: %w", err)
    }
    if u.Scheme == "unix" {
        return redisConfig{}, errors.New("unix sockets not supported by this worker")
    }
    if u.Host == "" {
        return redisConfig{}, fmt.Errorf("REDIS_URL %q has no host", raw)
    }
    cfg := redisConfig{Addr: u.Host}
    if u.Port() == "" {
        cfg.Addr = net.JoinHostPort(u.Hostname(), "6379")
    }
    cfg.Password, _ = u.User.Password()
    if db := strings.TrimPrefix(u.Path, "/"); db != "" {
        if i, err := strconv.Atoi(db); err == nil {
            cfg.DB = i
        }
    }
    return cfg, nil
}

// respConn speaks just enough RESP for a Sidekiq consumer.
type respConn struct {
    conn net.Conn
    rw   *bufio.ReadWriter
}

func dialRedis(cfg redisConfig) (*respConn, error) {
    conn, err := net.DialTimeout("tcp", cfg.Addr, 5*time.Second)
    if err != nil {
        return nil, err
    }
    c := &respConn{conn: conn, rw: bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))}
    if cfg.Password != "" {
        if err := c.expectOK("AUTH", cfg.Password); err != nil {
            conn.Close()
            return nil, fmt.Errorf("redis auth failed: %w", err)
        }
    }
    if cfg.DB != 0 {
        if err := c.expectOK("SELECT", strconv.Itoa(cfg.DB)); err != nil {
            conn.Close()
            return nil, fmt.Errorf("redis select failed: %w", err)
        }
    }
    return c, nil
}

func (c *respConn) Close() error {
    if c.conn == nil {
        return nil
    }
    return c.conn.Close()
}

func (c *respConn) expectOK(cmd string, args ...string) error {
    if err := writeCommand(c.rw.Writer, cmd, args...); err != nil {
        return err
    }
    reply, err := readReply(c.rw.Reader)
    if err != nil {
        return err
    }
    if reply.kind != '+' {
        return fmt.Errorf("redis not OK: %s", reply.str)
    }
    return nil
}

// brpop blocks up to timeoutSec on queue. A timeout yields empty key and
// payload with a nil error.
func (c *respConn) brpop(queue string, timeoutSec int) (key, payload string, err error) {
    if err := writeCommand(c.rw.Writer, "BRPOP", queue, strconv.Itoa(timeoutSec)); err != nil {
        return "", "", err
    }
    return readBRPOP(c.rw.Reader)
}

func writeCommand(w *bufio.Writer, cmd string, args ...string) error {
    if _, err := fmt.Fprintf(w, "*%d\r\n", 1+len(args)); err != nil {
        return err
    }
    for _, a := range append([]string{cmd}, args...) {
        if _, err := fmt.Fprintf(w, "$%d\r\n%s\r\n", len(a), a); err != nil {
            return err
        }
    }
    return w.Flush()
}

// respValue is one decoded reply. null marks the nil bulk string and the
// nil array.
type respValue struct {
    kind  byte
    str   string
    items []respValue
    null  bool
}

func readLine(r *bufio.Reader) (string, error) {
    b, err := r.ReadBytes('\n')
    if err != nil {
        return "", err
    }
    return strings.TrimSuffix(strings.TrimSuffix(string(b), "\n"), "\r"), nil
}

func readReply(r *bufio.Reader) (respValue, error) {
    line, err := readLine(r)
    if err != nil {
        return respValue{}, err
    }
    if line == "" {
        return respValue{}, errors.New("empty reply")
    }
    v := respValue{kind: line[0], str: line[1:]}
    switch v.kind {
    case '+', '-', ':':
        return v, nil
    case '$':
        n, err := strconv.Atoi(v.str)
        if err != nil {
            return respValue{}, fmt.Errorf("bad bulk length %q", v.str)
        }
        if n < 0 {
            v.null = true
            return v, nil
        }
        buf := make([]byte, n+2)
        if _, err := io.ReadFull(r, buf); err != nil {
            return respValue{}, err
        }
        v.str = string(buf[:n])
        return v, nil
    case '*':
        n, err := strconv.Atoi(v.str)
        if err != nil {
            return respValue{}, fmt.Errorf("bad array length %q", v.str)
        }
        if n < 0 {
            v.null = true
            return v, nil
        }
        v.items = make([]respValue, n)
        for i := range v.items {
            if v.items[i], err = readReply(r); err != nil {
                return respValue{}, err
            }
        }
        return v, nil
    default:
        return respValue{}, fmt.Errorf("unexpected reply: %s", line)
    }
}

func readBRPOP(r *bufio.Reader) (key string, payload string, err error) {
    reply, err := readReply(r)
    if err != nil {
        return "", "", err
    }
    switch reply.kind {
    case '-':
        return "", "", fmt.Errorf("redis error: %s", reply.str)
    case '$':
        if reply.null {
            return "", "", nil
        }
        return "", reply.str, nil
    case '*':
        if reply.null || len(reply.items) == 0 {
            return "", "", nil
        }
        if len(reply.items) != 2 {
            return "", "", fmt.Errorf("BRPOP returned %d elements", len(reply.items))
        }
        return reply.items[0].str, reply.items[1].str, nil
    default:
        return "", "", fmt.Errorf("unexpected BRPOP reply type %q", reply.kind)
    }
}
