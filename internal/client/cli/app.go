package cli

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/client/client"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/config"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/services"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config         *config.Config
	authService    services.AuthService
	accountService services.AccountService
	user           *models.Account
	reader         *bufio.Reader
	out            io.Writer

	mu   sync.Mutex
	mode Mode
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewHTTPClient(c.ServerBaseURL, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	return &App{
		config:         c,
		authService:    services.NewAuthService(apiClient),
		accountService: services.NewAccountService(apiClient),
		reader:         bufio.NewReader(os.Stdin),
		out:            os.Stdout,
	}, nil
}

// setMode is called from the connectivity watcher and the REPL.
func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

func (a *App) getStatus() string {
	s := ""
	if a.user != nil {
		s = a.user.Username + " "
	}
	return s + string(a.Mode())
}

// Run starts the connectivity watcher and the REPL, and blocks until the
// user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	defer a.authService.Close(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	log.Println("Welcome to the account CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.authService.Ping(ctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
