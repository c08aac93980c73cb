// Package postgres owns the lazily opened pgvector connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/mmdex/internal/secrets"
)

// EFSearch is the per-session HNSW candidate list size. It matches the search topK cap.
const EFSearch = 100

// ErrClosed is returned by Handle after Close.
var ErrClosed = errors.New("postgres: connector closed")

// Config holds connection parameters. Credentials come from the secret store.
type Config struct {
	Host           string
	Port           int
	Database       string
	SSLMode        string
	MaxConns       int32
	ConnectTimeout time.Duration
	ConnectRetries uint64
}

// Querier is the query surface shared by pgxpool.Pool and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Handle is an open pool.
type Handle interface {
	Querier
	Ping(ctx context.Context) error
	Close()
}

// CredentialSource resolves and caches credentials.
type CredentialSource interface {
	Get(ctx context.Context, key string) (string, error)
	Clear()
}

// DialFunc opens a pool for dsn.
type DialFunc func(ctx context.Context, dsn string) (Handle, error)

// Connector opens one pool per process on first use and reuses it until Close.
// Concurrent first callers share a single connect attempt.
type Connector struct {
	cfg    Config
	creds  CredentialSource
	dial   DialFunc
	logger *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	handle Handle
	closed bool
}

// NewConnector creates a connector that registers pgvector types on every connection.
func NewConnector(cfg Config, creds CredentialSource, logger *zap.Logger) *Connector {
	return NewConnectorWithDial(cfg, creds, PoolDialer(cfg.MaxConns, true), logger)
}

// NewConnectorWithDial creates a connector with a custom dialer.
func NewConnectorWithDial(cfg Config, creds CredentialSource, dial DialFunc, logger *zap.Logger) *Connector {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{cfg: cfg, creds: creds, dial: dial, logger: logger}
}

// PoolDialer returns a DialFunc backed by pgxpool. registerVector must be false
// until the vector extension exists (the migrate command).
func PoolDialer(maxConns int32, registerVector bool) DialFunc {
	return func(ctx context.Context, dsn string) (Handle, error) {
		pcfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		if maxConns > 0 {
			pcfg.MaxConns = maxConns
		}
		if registerVector {
			pcfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
				if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
					return fmt.Errorf("register vector types: %w", err)
				}
				// The HNSW candidate list must cover the largest topK or filtered scans come back short.
				_, err := conn.Exec(ctx, "SET hnsw.ef_search = "+strconv.Itoa(EFSearch))
				return err
			}
		}
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, fmt.Errorf("open pool: %w", err)
		}
		return pool, nil
	}
}

// Handle returns the process pool, connecting on first use.
func (c *Connector) Handle(ctx context.Context) (Handle, error) {
	if h, err := c.current(); h != nil || err != nil {
		return h, err
	}

	ch := c.group.DoChan("connect", func() (any, error) {
		if h, err := c.current(); h != nil || err != nil {
			return h, err
		}
		// The first caller may give up; the connect itself must not.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ConnectTimeout)
		defer cancel()

		h, err := c.connect(cctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			h.Close()
			return nil, ErrClosed
		}
		c.handle = h
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Handle), nil
	}
}

// Querier satisfies repositories that only run SQL.
func (c *Connector) Querier(ctx context.Context) (Querier, error) {
	return c.Handle(ctx)
}

// Ping checks connectivity, connecting first if needed.
func (c *Connector) Ping(ctx context.Context) error {
	h, err := c.Handle(ctx)
	if err != nil {
		return err
	}
	return h.Ping(ctx)
}

// Close tears the pool down and forgets the cached credentials.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
	c.creds.Clear()
}

func (c *Connector) current() (Handle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.handle, nil
}

func (c *Connector) connect(ctx context.Context) (Handle, error) {
	user, err := c.creds.Get(ctx, secrets.KeyDBUsername)
	if err != nil {
		return nil, fmt.Errorf("db credentials: %w", err)
	}
	password, err := c.creds.Get(ctx, secrets.KeyDBPassword)
	if err != nil {
		return nil, fmt.Errorf("db credentials: %w", err)
	}

	h, err := c.dial(ctx, c.dsn(user, password))
	if err != nil {
		return nil, err
	}

	attempt := 0
	ping := func() error {
		attempt++
		if err := h.Ping(ctx); err != nil {
			c.logger.Warn("postgres ping failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.ConnectRetries), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		h.Close()
		// Rotated credentials are the usual cause of a dead pool.
		c.creds.Clear()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	c.logger.Info("postgres connected",
		zap.String("host", c.cfg.Host), zap.String("database", c.cfg.Database))
	return h, nil
}

func (c *Connector) dsn(user, password string) string {
	port := c.cfg.Port
	if port == 0 {
		port = 5432
	}
	q := url.Values{}
	if c.cfg.SSLMode != "" {
		q.Set("sslmode", c.cfg.SSLMode)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     c.cfg.Host + ":" + strconv.Itoa(port),
		Path:     "/" + c.cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}
