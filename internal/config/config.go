// Package config loads the tool configuration from config.yaml with
// environment overrides.
package config

import (
	stderrors "errors"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/VaynZXC/tanki/internal/errors"
)

// Poll bounds one wait loop: how often to probe and how long in total.
type Poll struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Vision holds template dataset locations.
type Vision struct {
	DatasetDir   string `mapstructure:"dataset_dir"`
	TemplatesDir string `mapstructure:"templates_dir"`
}

// Launcher covers the game-center window and the login flow budgets.
type Launcher struct {
	TitlePattern     string        `mapstructure:"title_pattern"`
	TrayHints        []string      `mapstructure:"tray_hints"`
	ScenePoll        Poll          `mapstructure:"scene_poll"`
	GameStartTimeout time.Duration `mapstructure:"game_start_timeout"`
	LogoutScrolls    int           `mapstructure:"logout_scrolls"`

	titleRe *regexp.Regexp
}

// Game covers the in-game flow.
type Game struct {
	TitlePattern   string        `mapstructure:"title_pattern"`
	StuckThreshold int           `mapstructure:"stuck_threshold"`
	GracePeriod    time.Duration `mapstructure:"grace_period"`
	FinalSeenLimit int           `mapstructure:"final_seen_limit"`
	TerminalScenes []string      `mapstructure:"terminal_scenes"`
	RewardIDs      []string      `mapstructure:"reward_ids"`
	ScrollMemDir   string        `mapstructure:"scroll_mem_dir"`
	ResultFile     string        `mapstructure:"result_file"`
	TimeBudget     time.Duration `mapstructure:"time_budget"`
	ScenePoll      Poll          `mapstructure:"scene_poll"`

	titleRe *regexp.Regexp
}

// Runner drives batch execution over an accounts file.
type Runner struct {
	AccountsFile     string `mapstructure:"accounts_file"`
	BucketDir        string `mapstructure:"bucket_dir"`
	GameStartRetries int    `mapstructure:"game_start_retries"`
}

// Firstmail configures the mailbox shop API.
type Firstmail struct {
	BaseURL string   `mapstructure:"base_url"`
	APIKey  string   `mapstructure:"api_key"`
	Proxies []string `mapstructure:"proxies"`
	Workers int      `mapstructure:"workers"`
	OutFile string   `mapstructure:"out_file"`
}

// Registration configures browser signup.
type Registration struct {
	SignupURL string        `mapstructure:"signup_url"`
	Headless  bool          `mapstructure:"headless"`
	MailPoll  Poll          `mapstructure:"mail_poll"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Status configures the optional live dashboard endpoint.
type Status struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type Config struct {
	LogLevel     string       `mapstructure:"log_level"`
	LogFile      string       `mapstructure:"log_file"`
	Vision       Vision       `mapstructure:"vision"`
	Launcher     Launcher     `mapstructure:"launcher"`
	Game         Game         `mapstructure:"game"`
	Runner       Runner       `mapstructure:"runner"`
	Firstmail    Firstmail    `mapstructure:"firstmail"`
	Registration Registration `mapstructure:"registration"`
	Status       Status       `mapstructure:"status"`
}

// Load reads config.yaml from dir (CWD when empty), applies TANKI_*
// environment overrides, and validates. A missing file yields defaults.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)

	v.SetEnvPrefix("TANKI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(err, errors.Config, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.Config, "decode config")
	}
	if err := cfg.compile(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetDefault("vision.dataset_dir", "dataset")
	v.SetDefault("vision.templates_dir", "images")

	v.SetDefault("launcher.title_pattern", `(?i)(lesta|wargaming).*game center|game center`)
	v.SetDefault("launcher.tray_hints", []string{"game center", "lesta"})
	v.SetDefault("launcher.scene_poll.interval", "200ms")
	v.SetDefault("launcher.scene_poll.timeout", "18s")
	v.SetDefault("launcher.game_start_timeout", "30s")
	v.SetDefault("launcher.logout_scrolls", 5)

	v.SetDefault("game.title_pattern", `(?i)(мир танков|world of tanks|tanki)`)
	v.SetDefault("game.stuck_threshold", 10)
	v.SetDefault("game.grace_period", "5s")
	v.SetDefault("game.final_seen_limit", 3)
	v.SetDefault("game.terminal_scenes", []string{"game_ungar", "game_nagrada_code"})
	v.SetDefault("game.reward_ids", []string{"is7", "fv4005"})
	v.SetDefault("game.scroll_mem_dir", "scroll_memory")
	v.SetDefault("game.result_file", "game_result.txt")
	v.SetDefault("game.time_budget", "5m")
	v.SetDefault("game.scene_poll.interval", "1s")
	v.SetDefault("game.scene_poll.timeout", "30s")

	v.SetDefault("runner.accounts_file", "accounts.txt")
	v.SetDefault("runner.bucket_dir", "results")
	v.SetDefault("runner.game_start_retries", 2)

	v.SetDefault("firstmail.base_url", "https://api.firstmail.ltd")
	v.SetDefault("firstmail.workers", 4)
	v.SetDefault("firstmail.out_file", "mailboxes.txt")

	v.SetDefault("registration.signup_url", "https://lesta.ru/ru/registration/")
	v.SetDefault("registration.headless", false)
	v.SetDefault("registration.mail_poll.interval", "5s")
	v.SetDefault("registration.mail_poll.timeout", "3m")
	v.SetDefault("registration.timeout", "5m")

	v.SetDefault("status.enabled", false)
	v.SetDefault("status.addr", "127.0.0.1:8077")
}

func (c *Config) compile() error {
	var err error
	if c.Launcher.titleRe, err = regexp.Compile(c.Launcher.TitlePattern); err != nil {
		return errors.Wrap(err, errors.Config, "launcher title pattern")
	}
	if c.Game.titleRe, err = regexp.Compile(c.Game.TitlePattern); err != nil {
		return errors.Wrap(err, errors.Config, "game title pattern")
	}
	if c.Game.StuckThreshold <= 0 {
		return errors.New(errors.Config, "stuck_threshold must be positive")
	}
	return nil
}

// TitleRegexp returns the compiled launcher window matcher.
func (l *Launcher) TitleRegexp() *regexp.Regexp { return l.titleRe }

// TitleRegexp returns the compiled game window matcher.
func (g *Game) TitleRegexp() *regexp.Regexp { return g.titleRe }

// IsTerminalScene reports whether scene ends the in-game flow.
func (g *Game) IsTerminalScene(scene string) bool {
	for _, s := range g.TerminalScenes {
		if s == scene {
			return true
		}
	}
	return false
}
