package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-rpc-api/internal/bootstrap"
	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	"github.com/target/mmk-rpc-api/internal/service"
)

// withDatabase connects Postgres, bounds the command by timeout and SIGINT/SIGTERM, and runs f.
func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

// adminServices are the business services the user and permission commands go through.
type adminServices struct {
	Users       *service.UserService
	Permissions *service.PermissionService
	redis       redis.UniversalClient
}

func (a *adminServices) Close() error {
	if a == nil || a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

// newAdminServices wires services over db. When the hierarchy cache is enabled the
// permission service is given the same cache the server uses, so hierarchy edits
// made here invalidate it.
func newAdminServices(cmdCtx *commandContext, db *sql.DB) (*adminServices, error) {
	out := &adminServices{}

	var hierarchy *core.HierarchyCache
	if cmdCtx.Config.Cache.Enabled {
		client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cmdCtx.Config.Redis, Logger: cmdCtx.Logger})
		if err != nil {
			// Edits still land in Postgres; the cached snapshot expires on its TTL.
			cmdCtx.Logger.Warn("redis unavailable; hierarchy cache will not be invalidated", "error", err)
		} else {
			out.redis = client
			hierarchy = core.NewHierarchyCache(
				data.NewRedisCacheRepo(client, cmdCtx.Config.Cache.KeyPrefix),
				core.HierarchyCacheConfig{TTL: cmdCtx.Config.Cache.HierarchyTTL},
			)
		}
	}

	var err error
	if out.Permissions, err = service.NewPermissionService(service.PermissionServiceOptions{
		Repo:   data.NewPermissionRepo(db),
		Cache:  hierarchy,
		Logger: cmdCtx.Logger,
	}); err != nil {
		return nil, errors.Join(err, out.Close())
	}
	if out.Users, err = service.NewUserService(service.UserServiceOptions{
		Users:    data.NewUserRepo(db),
		Sessions: data.NewSessionRepo(db),
		Logger:   cmdCtx.Logger,
	}); err != nil {
		return nil, errors.Join(err, out.Close())
	}
	return out, nil
}

// withServices runs f with admin services bound to a fresh connection.
func withServices(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB, *adminServices) error,
) error {
	return withDatabase(cmdCtx, timeout, func(ctx context.Context, db *sql.DB) error {
		svcs, err := newAdminServices(cmdCtx, db)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := svcs.Close(); cerr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", cerr)
			}
		}()
		return f(ctx, db, svcs)
	})
}

// resolveUserID maps a username to its ID.
func resolveUserID(ctx context.Context, db *sql.DB, username string) (string, error) {
	u, err := data.NewUserRepo(db).GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, data.ErrUserNotFound) {
		return "", fmt.Errorf("user %q not found", username)
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func guardRemoteHost(cmdCtx *commandContext, allow bool, action string) error {
	host := cmdCtx.Config.Postgres.Host
	if !isLikelyRemoteHost(host) {
		return nil
	}
	if !allow {
		return fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			host,
		)
	}
	return requireRemoteHostConfirmation(os.Stdin, os.Stderr, action, host)
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return false
	}
	if strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func requireRemoteHostConfirmation(in io.Reader, out io.Writer, action, host string) error {
	if err := writef(out,
		"\nWARNING: database host %q does not look like a local address.\nThis operation will %s.\n",
		host, action); err != nil {
		return fmt.Errorf("print remote host warning: %w", err)
	}
	if err := writef(out, "Type %q to continue or press enter to abort: ", host); err != nil {
		return fmt.Errorf("print remote host prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("aborted by user: read confirmation: %w", err)
	}
	if strings.TrimSpace(resp) != host {
		if writeErr := writeln(out, "\nRemote safeguard check failed; aborting."); writeErr != nil {
			return fmt.Errorf("print remote safeguard failure: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	return nil
}
