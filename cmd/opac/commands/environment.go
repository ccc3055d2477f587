package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"opacbridge/internal/backends"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/i18n"
	"opacbridge/internal/opac"
	"opacbridge/internal/store"
	"opacbridge/internal/transport"
	"opacbridge/lib/configutil"

	"golang.org/x/term"
)

type AccountConfig struct {
	Library string `json:"library"`
	// ID identifies the account locally, it defaults to "<library>:<name>".
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type Config struct {
	Language  string            `json:"language"`
	Timezone  string            `json:"timezone"`
	Database  string            `json:"database"`
	Libraries []opac.Library    `json:"libraries"`
	Accounts  []AccountConfig   `json:"accounts"`
	Transport transport.Options `json:"transport"`
	Telemetry telemetry.Config  `json:"telemetry"`
}

func readConfig(path string, explicit bool) (Config, error) {
	var cfg Config
	var err error
	if explicit {
		cfg, err = configutil.ReadConfig[Config](path)
	} else {
		cfg, err = configutil.ReadRecursively[Config](path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Database == "" {
		cfg.Database = "opac.db"
	}
	if len(cfg.Libraries) == 0 {
		return Config{}, fmt.Errorf("read config: no libraries configured")
	}
	return cfg, nil
}

type environment struct {
	cfg      Config
	tel      telemetry.API
	strings  i18n.Table
	clock    chrono.StandardTime
	shutdown telemetry.Shutdown
	db       *store.Store
	closed   bool
}

func newEnvironment(ctx context.Context, cfg Config) (*environment, error) {
	clock, err := chrono.NewStandardTime(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	shutdown, err := telemetry.Setup(ctx, "opac", cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return &environment{
		cfg:      cfg,
		tel:      telemetry.SlogAPI{},
		strings:  i18n.NewTable(cfg.Language),
		clock:    clock,
		shutdown: shutdown,
	}, nil
}

func (e *environment) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.db != nil {
		e.db.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := e.shutdown(ctx)
	if err != nil {
		e.tel.ReportWarning("telemetry.shutdown", err)
	}
}

// library is the one selected with --library, or the first configured.
func (e *environment) library() (opac.Library, error) {
	if *libraryFlag == "" {
		return e.cfg.Libraries[0], nil
	}
	return backends.Find(e.cfg.Libraries, *libraryFlag)
}

// adapter opens a fresh adapter with its own http session.
func (e *environment) adapter(lib opac.Library) (opac.Adapter, error) {
	http, err := transport.New(e.cfg.Transport, e.tel)
	if err != nil {
		return nil, err
	}
	a, err := backends.Open(lib, backends.Deps{
		Transport: http,
		Strings:   e.strings,
		Telemetry: e.tel,
	})
	if err != nil {
		return nil, err
	}
	a.SetLanguage(e.cfg.Language)
	return a, nil
}

func (e *environment) store(ctx context.Context) (*store.Store, error) {
	if e.db != nil {
		return e.db, nil
	}
	db, err := store.Open(ctx, e.cfg.Database, e.clock, e.tel)
	if err != nil {
		return nil, err
	}
	e.db = db
	return db, nil
}

// passwordEnv is the environment variable holding the password of an
// account, ex. OPAC_PASSWORD_BASEL_NB for the library "basel-nb".
func passwordEnv(ident string) string {
	ident = strings.Map(func(r rune) rune {
		if r == '-' || r == '.' || r == ' ' {
			return '_'
		}
		return r
	}, ident)
	return "OPAC_PASSWORD_" + strings.ToUpper(ident)
}

// account returns the configured account of lib. A password missing from
// the config is read from the environment, or else asked for.
func (e *environment) account(lib opac.Library) (opac.Account, error) {
	if !lib.Account {
		return opac.Account{}, opac.UnsupportedError("account")
	}
	for _, acc := range e.cfg.Accounts {
		if acc.Library != lib.Ident {
			continue
		}
		if acc.Name == "" {
			return opac.Account{}, fmt.Errorf("account of '%s' has no name", lib.Ident)
		}
		if acc.ID == "" {
			acc.ID = lib.Ident + ":" + acc.Name
		}
		if acc.Password == "" {
			acc.Password = os.Getenv(passwordEnv(lib.Ident))
		}
		if acc.Password == "" {
			password, err := readPassword(fmt.Sprintf("Password for %s at %s: ", acc.Name, lib.DisplayName()))
			if err != nil {
				return opac.Account{}, fmt.Errorf("failed to read password: %w", err)
			}
			acc.Password = password
		}
		return opac.Account{
			ID:       acc.ID,
			Library:  lib.Ident,
			Name:     acc.Name,
			Password: acc.Password,
		}, nil
	}
	return opac.Account{}, fmt.Errorf("no account configured for '%s'", lib.Ident)
}

var errNoInput = errors.New("no input")

// stdin is shared by all prompts, a second reader on os.Stdin would lose
// the lines the first one buffered.
var stdin = bufio.NewReader(os.Stdin)

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" && err != nil {
		return "", errNoInput
	}
	return line, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(stdin)
	}
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(password)), nil
}
