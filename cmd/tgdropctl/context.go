package main

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgdrop/internal/app/botapp"
	"github.com/ivankudzin/tgdrop/internal/config"
)

type commandContext struct {
	configFlag   *string
	usernameFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error

	// openStore is replaced in tests.
	openStore func(context.Context, config.Config, *zap.Logger) (botapp.BundleStore, error)
}

func newCommandContext(configFlag, usernameFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		usernameFlag: usernameFlag,
		openStore:    botapp.OpenStore,
	}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		path := os.Getenv("APP_CONFIG")
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// botUsername prefers the --bot flag and falls back to the configuration.
func (c *commandContext) botUsername() string {
	if c.usernameFlag != nil {
		if name := strings.TrimPrefix(strings.TrimSpace(*c.usernameFlag), "@"); name != "" {
			return name
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return ""
	}
	return cfg.Bot.Username
}

func (c *commandContext) withStore(ctx context.Context, fn func(botapp.BundleStore) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := c.openStore(ctx, cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
