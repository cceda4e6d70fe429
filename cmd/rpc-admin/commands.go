package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-rpc-api/internal/bootstrap"
	"github.com/target/mmk-rpc-api/internal/devseed"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/migrate"
	"github.com/target/mmk-rpc-api/internal/util"
)

type migrateOptions struct {
	Timeout time.Duration
}

type seedOptions struct {
	File        string
	Timeout     time.Duration
	AllowRemote bool
}

type userOptions struct {
	Username     string
	PasswordHash string
	Admin        bool
	Active       bool
	Timeout      time.Duration
}

type grantOptions struct {
	Username string
	Key      string
	Timeout  time.Duration
}

type defineOptions struct {
	Key         string
	Parent      string
	Description string
	Timeout     time.Duration
}

type listPermissionsOptions struct {
	Username string
	Timeout  time.Duration
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags("migrate", args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runMigrationStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags("migrate-status", args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		all, statusErr := migrate.Status(ctx, db)
		if statusErr != nil {
			return fmt.Errorf("migration status: %w", statusErr)
		}
		return printMigrations(cmdCtx.Out, all)
	})
}

func runSeed(cmdCtx *commandContext, args []string) error {
	opts, err := parseSeedFlags(args)
	if err != nil {
		return err
	}
	fx, err := devseed.Load(opts.File)
	if err != nil {
		return err
	}
	if guardErr := guardRemoteHost(cmdCtx, opts.AllowRemote, "load seed data into the configured database"); guardErr != nil {
		return guardErr
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("ensuring database migrations are current")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}

		start := time.Now()
		sum, seedErr := devseed.Run(ctx, devseed.NewDeps(db, cmdCtx.Logger), fx)
		if seedErr != nil {
			return fmt.Errorf("seed data: %w", seedErr)
		}
		return writef(cmdCtx.Out,
			"Seeded %s in %s: %d permissions, %d users created, %d users kept, %d new grants\n",
			opts.File, util.FormatElapsed(time.Since(start)),
			sum.Permissions, sum.UsersCreated, sum.UsersKept, sum.Grants)
	})
}

func runCreateUser(cmdCtx *commandContext, args []string) error {
	opts, err := parseCreateUserFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, _ *sql.DB, svcs *adminServices) error {
		u, createErr := svcs.Users.Create(ctx, domainauth.CreateUserRequest{
			Username:     opts.Username,
			PasswordHash: opts.PasswordHash,
			IsAdmin:      opts.Admin,
		})
		if createErr != nil {
			return createErr
		}
		return writef(cmdCtx.Out, "Created user %s (%s), admin: %s\n", u.Username, u.ID, util.YesNo(u.IsAdmin))
	})
}

func runSetActive(cmdCtx *commandContext, args []string) error {
	opts, err := parseSetActiveFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB, svcs *adminServices) error {
		id, lookupErr := resolveUserID(ctx, db, opts.Username)
		if lookupErr != nil {
			return lookupErr
		}
		if setErr := svcs.Users.SetActive(ctx, id, opts.Active); setErr != nil {
			return setErr
		}
		return writef(cmdCtx.Out, "User %s active: %s\n", opts.Username, util.YesNo(opts.Active))
	})
}

func runGrant(cmdCtx *commandContext, args []string) error {
	opts, err := parseGrantFlags("grant", args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB, svcs *adminServices) error {
		id, lookupErr := resolveUserID(ctx, db, opts.Username)
		if lookupErr != nil {
			return lookupErr
		}
		created, grantErr := svcs.Permissions.Grant(ctx, id, opts.Key)
		if grantErr != nil {
			return grantErr
		}
		if !created {
			return writef(cmdCtx.Out, "%s already holds %s\n", opts.Username, opts.Key)
		}
		return writef(cmdCtx.Out, "Granted %s to %s\n", opts.Key, opts.Username)
	})
}

func runRevoke(cmdCtx *commandContext, args []string) error {
	opts, err := parseGrantFlags("revoke", args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB, svcs *adminServices) error {
		id, lookupErr := resolveUserID(ctx, db, opts.Username)
		if lookupErr != nil {
			return lookupErr
		}
		removed, revokeErr := svcs.Permissions.Revoke(ctx, id, opts.Key)
		if revokeErr != nil {
			return revokeErr
		}
		if !removed {
			return writef(cmdCtx.Out, "%s had no direct grant of %s\n", opts.Username, opts.Key)
		}
		return writef(cmdCtx.Out, "Revoked %s from %s\n", opts.Key, opts.Username)
	})
}

func runDefinePermission(cmdCtx *commandContext, args []string) error {
	opts, err := parseDefineFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, _ *sql.DB, svcs *adminServices) error {
		if defineErr := svcs.Permissions.Define(ctx, domainauth.Permission{
			Key:         opts.Key,
			Parent:      opts.Parent,
			Description: opts.Description,
		}); defineErr != nil {
			return defineErr
		}
		return writef(cmdCtx.Out, "Defined %s\n", opts.Key)
	})
}

func runListPermissions(cmdCtx *commandContext, args []string) error {
	opts, err := parseListPermissionsFlags(args)
	if err != nil {
		return err
	}
	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB, svcs *adminServices) error {
		if opts.Username == "" {
			perms, listErr := svcs.Permissions.List(ctx)
			if listErr != nil {
				return listErr
			}
			return printHierarchy(cmdCtx.Out, perms)
		}

		id, lookupErr := resolveUserID(ctx, db, opts.Username)
		if lookupErr != nil {
			return lookupErr
		}
		keys, effErr := svcs.Permissions.EffectivePermissions(ctx, id)
		if effErr != nil {
			return effErr
		}
		if len(keys) == 0 {
			return writef(cmdCtx.Out, "%s holds no permissions\n", opts.Username)
		}
		for _, k := range keys {
			if writeErr := writeln(cmdCtx.Out, k); writeErr != nil {
				return writeErr
			}
		}
		return nil
	})
}

func printMigrations(w io.Writer, all []migrate.Migration) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "VERSION\tFILE\tAPPLIED\n"); err != nil {
		return err
	}
	for _, m := range all {
		if err := writef(tw, "%s\t%s\t%s\n", m.Version, m.File, util.YesNo(m.Applied)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// printHierarchy renders the hierarchy as an indented tree. Permissions whose parent is
// not defined are printed as roots.
func printHierarchy(w io.Writer, perms []domainauth.Permission) error {
	if len(perms) == 0 {
		return writeln(w, "(no permissions defined)")
	}

	defined := make(map[string]bool, len(perms))
	for _, p := range perms {
		defined[p.Key] = true
	}
	children := make(map[string][]domainauth.Permission)
	var roots []domainauth.Permission
	for _, p := range perms {
		if p.Parent == "" || !defined[p.Parent] {
			roots = append(roots, p)
			continue
		}
		children[p.Parent] = append(children[p.Parent], p)
	}
	byKey := func(ps []domainauth.Permission) {
		sort.Slice(ps, func(i, j int) bool { return ps[i].Key < ps[j].Key })
	}
	byKey(roots)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	seen := make(map[string]bool, len(perms))
	var walk func(p domainauth.Permission, depth int) error
	walk = func(p domainauth.Permission, depth int) error {
		if seen[p.Key] {
			return nil
		}
		seen[p.Key] = true
		if err := writef(tw, "%s%s\t%s\n", strings.Repeat("  ", depth), p.Key, p.Description); err != nil {
			return err
		}
		kids := children[p.Key]
		byKey(kids)
		for _, c := range kids {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := walk(r, 0); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func parseMigrateFlags(name string, args []string) (migrateOptions, error) {
	fs := newFlagSet(name)
	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations")
	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if err := requireTimeout(opts.Timeout); err != nil {
		return migrateOptions{}, err
	}
	return opts, nil
}

func parseSeedFlags(args []string) (seedOptions, error) {
	fs := newFlagSet("seed")
	opts := seedOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for seeding")
	fs.BoolVar(&opts.AllowRemote, "allow-remote", false, "Permit running against database hosts that do not look local")
	if err := fs.Parse(args); err != nil {
		return seedOptions{}, err
	}
	if fs.NArg() != 1 {
		return seedOptions{}, errors.New("usage: rpc-admin seed [flags] <file>")
	}
	opts.File = fs.Arg(0)
	if err := requireTimeout(opts.Timeout); err != nil {
		return seedOptions{}, err
	}
	return opts, nil
}

func parseCreateUserFlags(args []string) (userOptions, error) {
	fs := newFlagSet("create-user")
	opts := userOptions{}
	fs.StringVar(&opts.Username, "username", "", "Login name")
	fs.StringVar(&opts.PasswordHash, "password-hash", "", "Hex password digest as computed by clients")
	fs.BoolVar(&opts.Admin, "admin", false, "Mark the user as an administrator")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration for the command")
	if err := fs.Parse(args); err != nil {
		return userOptions{}, err
	}
	if strings.TrimSpace(opts.Username) == "" {
		return userOptions{}, errors.New("--username is required")
	}
	if strings.TrimSpace(opts.PasswordHash) == "" {
		return userOptions{}, errors.New("--password-hash is required")
	}
	if err := requireTimeout(opts.Timeout); err != nil {
		return userOptions{}, err
	}
	return opts, nil
}

func parseSetActiveFlags(args []string) (userOptions, error) {
	fs := newFlagSet("set-active")
	opts := userOptions{}
	fs.StringVar(&opts.Username, "username", "", "Login name")
	fs.BoolVar(&opts.Active, "active", true, "Whether the user may log in")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration for the command")
	if err := fs.Parse(args); err != nil {
		return userOptions{}, err
	}
	if strings.TrimSpace(opts.Username) == "" {
		return userOptions{}, errors.New("--username is required")
	}
	if err := requireTimeout(opts.Timeout); err != nil {
		return userOptions{}, err
	}
	return opts, nil
}

func parseGrantFlags(name string, args []string) (grantOptions, error) {
	fs := newFlagSet(name)
	opts := grantOptions{}
	fs.StringVar(&opts.Username, "username", "", "Login name")
	fs.StringVar(&opts.Key, "key", "", "Permission key")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration for the command")
	if err := fs.Parse(args); err != nil {
		return grantOptions{}, err
	}
	opts.Username = strings.TrimSpace(opts.Username)
	opts.Key = strings.TrimSpace(opts.Key)
	if opts.Username == "" || opts.Key == "" {
		return grantOptions{}, errors.New("--username and --key are required")
	}
	if err := requireTimeout(opts.Timeout); err != nil {
		return grantOptions{}, err
	}
	return opts, nil
}

func parseDefineFlags(args []string) (defineOptions, error) {
	fs := newFlagSet("define-permission")
	opts := defineOptions{}
	fs.StringVar(&opts.Key, "key", "", "Permission key")
	fs.StringVar(&opts.Parent, "parent", "", "Parent key; empty makes a root")
	fs.StringVar(&opts.Description, "description", "", "Human-readable description")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration for the command")
	if err := fs.Parse(args); err != nil {
		return defineOptions{}, err
	}
	opts.Key = strings.TrimSpace(opts.Key)
	opts.Parent = strings.TrimSpace(opts.Parent)
	if opts.Key == "" {
		return defineOptions{}, errors.New("--key is required")
	}
	if opts.Key == opts.Parent {
		return defineOptions{}, errors.New("a permission cannot be its own parent")
	}
	if err := requireTimeout(opts.Timeout); err != nil {
		return defineOptions{}, err
	}
	return opts, nil
}

func parseListPermissionsFlags(args []string) (listPermissionsOptions, error) {
	fs := newFlagSet("list-permissions")
	opts := listPermissionsOptions{}
	fs.StringVar(&opts.Username, "username", "", "Show this user's effective permissions instead of the hierarchy")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration for the command")
	if err := fs.Parse(args); err != nil {
		return listPermissionsOptions{}, err
	}
	opts.Username = strings.TrimSpace(opts.Username)
	if err := requireTimeout(opts.Timeout); err != nil {
		return listPermissionsOptions{}, err
	}
	return opts, nil
}
