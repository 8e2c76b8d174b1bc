package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/shopinv/app/backup"
	"github.com/umputun/shopinv/app/inventory"
	"github.com/umputun/shopinv/app/store"
	"github.com/umputun/shopinv/app/web"
)

var opts struct {
	DBFile       string `short:"d" long:"db" env:"SHOPINV_DB" default:"shop.db" description:"items database file"`
	Listen       string `short:"l" long:"listen" env:"SHOPINV_LISTEN" default:"127.0.0.1:8080" description:"web UI listen address"`
	PasswordHash string `long:"password-hash" env:"SHOPINV_PASSWORD_HASH" description:"bcrypt hash of web UI password, auth disabled if empty"`
	Dbg          bool   `long:"dbg" env:"SHOPINV_DEBUG" description:"debug mode"`

	Open struct {
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"1" description:"how many times to try opening the database"`
		Duration time.Duration `long:"duration" env:"DURATION" default:"1s" description:"initial delay between attempts"`
		Factor   float64       `long:"factor" env:"FACTOR" default:"2" description:"backoff factor"`
	} `group:"open" namespace:"open" env-namespace:"SHOPINV_OPEN"`

	Backup struct {
		Schedule string `long:"schedule" env:"SCHEDULE" description:"backup schedule in crontab format, disabled if empty"`
		Location string `long:"dir" env:"DIR" default:"backup" description:"backup directory"`
		Keep     int    `long:"keep" env:"KEEP" default:"7" description:"how many backups to keep, 0 keeps all"`
	} `group:"backup" namespace:"backup" env-namespace:"SHOPINV_BACKUP"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"write log to file instead of stdout"`
		Filename        string `long:"filename" env:"FILENAME" default:"shopinv.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in megabytes"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max days to keep old log files, 0 keeps all"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of old log files"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"compress rotated log files"`
	} `group:"log" namespace:"log" env-namespace:"SHOPINV_LOG"`
}

var revision = "unknown"

func main() {
	fmt.Printf("shopinv %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT, SIGINT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
	log.Printf("[INFO] shopinv stopped")
}

// run opens the store and blocks serving the web UI until ctx is canceled
func run(ctx context.Context) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("[WARN] failed to close store, %v", err)
		}
	}()
	log.Printf("[INFO] using items database %s", st)

	if opts.Backup.Schedule != "" {
		bk, err := backup.New(st, backup.Params{Schedule: opts.Backup.Schedule, Location: opts.Backup.Location,
			Keep: opts.Backup.Keep})
		if err != nil {
			return fmt.Errorf("failed to make backup service: %w", err)
		}
		go bk.Run(ctx)
	}

	srv, err := web.New(web.Config{
		App:          inventory.New(st),
		Version:      revision,
		PasswordHash: opts.PasswordHash,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx, opts.Listen)
}

// openStore opens the database, retrying with backoff if configured
func openStore(ctx context.Context) (*store.SQLite, error) {
	rptr := repeater.New(&strategy.Backoff{Repeats: opts.Open.Attempts, Duration: opts.Open.Duration,
		Factor: opts.Open.Factor})

	var st *store.SQLite
	err := rptr.Do(ctx, func() error {
		s, e := store.NewSQLite(ctx, opts.DBFile)
		if e != nil {
			log.Printf("[WARN] can't open %s, %v", opts.DBFile, e)
			return e
		}
		st = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open items database %s: %w", opts.DBFile, err)
	}
	return st, nil
}

func setupLogs() io.Writer {
	var out io.Writer = os.Stdout
	if opts.Log.Enabled {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxAge:     opts.Log.MaxAge,
			MaxBackups: opts.Log.MaxBackups,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	if opts.Dbg {
		log.Setup(log.Out(out), log.Err(out), log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile)
		return out
	}
	log.Setup(log.Out(out), log.Err(out), log.Msec)
	return out
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] %v received, shutting down", sig)
			cancel()
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
}
