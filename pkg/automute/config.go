package automute

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"

	"github.com/retr0680/automute/pkg/automute/util"
)

// Settings are the user-editable parts of the configuration.
type Settings struct {
	Enabled       bool     `mapstructure:"enabled" yaml:"enabled"`
	ManagedApps   []string `mapstructure:"managed_apps" yaml:"managed_apps"`
	MaxRecentApps int      `mapstructure:"max_recent_apps" yaml:"max_recent_apps"`
}

// CanonicalConfig provides centralized access to configuration fields
type CanonicalConfig struct {
	logger             *zap.SugaredLogger
	notifier           Notifier
	path               string
	stopWatcherChannel chan struct{}

	reloadConsumers []chan bool

	userConfig *viper.Viper

	// serializes Load and Save against each other
	fileLock sync.Mutex

	lock          sync.RWMutex
	settings      Settings
	lastSelfWrite time.Time
}

const (
	// DefaultConfigFilepath is used when no --config flag is given.
	DefaultConfigFilepath = "config.yaml"

	configType             = "yaml"
	configKeyEnabled       = "enabled"
	configKeyManagedApps   = "managed_apps"
	configKeyMaxRecentApps = "max_recent_apps"

	defaultMaxRecentApps = 10

	minTimeBetweenReloadAttempts = time.Millisecond * 500
	delayBetweenEventAndReload   = time.Millisecond * 50

	configFileHeader = `# automute configuration
#
# enabled:          mute managed apps while they are in the background
# managed_apps:     full paths of the programs to manage
# max_recent_apps:  how many recently focused apps the tray menu offers
`
)

// DefaultSettings are written to disk when no config file exists yet.
func DefaultSettings() Settings {
	return Settings{
		Enabled:       true,
		ManagedApps:   []string{},
		MaxRecentApps: defaultMaxRecentApps,
	}
}

// NewConfig initializes the configuration manager for the file at path
func NewConfig(logger *zap.SugaredLogger, notifier Notifier, path string) (*CanonicalConfig, error) {
	logger = logger.Named("config")

	if path == "" {
		path = DefaultConfigFilepath
	}

	cc := &CanonicalConfig{
		logger:             logger,
		notifier:           notifier,
		path:               path,
		reloadConsumers:    make([]chan bool, 0),
		stopWatcherChannel: make(chan struct{}),
		settings:           DefaultSettings(),
	}

	cc.userConfig = viper.New()
	cc.userConfig.SetConfigFile(path)
	cc.userConfig.SetConfigType(configType)
	cc.userConfig.SetDefault(configKeyEnabled, true)
	cc.userConfig.SetDefault(configKeyManagedApps, []string{})
	cc.userConfig.SetDefault(configKeyMaxRecentApps, defaultMaxRecentApps)

	logger.Debugw("Created configuration instance", "path", path)

	return cc, nil
}

// Path returns the location of the config file.
func (cc *CanonicalConfig) Path() string {
	return cc.path
}

// Settings returns a copy of the current settings.
func (cc *CanonicalConfig) Settings() Settings {
	cc.lock.RLock()
	defer cc.lock.RUnlock()

	s := cc.settings
	s.ManagedApps = append([]string(nil), cc.settings.ManagedApps...)
	return s
}

// Load reads the config file, creating it with defaults if it doesn't exist.
func (cc *CanonicalConfig) Load() error {
	cc.fileLock.Lock()
	defer cc.fileLock.Unlock()

	cc.logger.Debugw("Loading configuration", "path", cc.path)

	if !util.FileExists(cc.path) {
		cc.logger.Infow("Configuration file not found, writing defaults", "path", cc.path)
		if err := cc.writeLocked(DefaultSettings()); err != nil {
			cc.notifier.Notify("Can't create configuration!", "Check logs for more details.")
			return err
		}
	}

	if err := cc.userConfig.ReadInConfig(); err != nil {
		return cc.handleConfigError(err)
	}

	var s Settings
	if err := cc.userConfig.Unmarshal(&s); err != nil {
		return cc.handleConfigError(err)
	}

	s = cc.normalize(s)

	cc.lock.Lock()
	cc.settings = s
	cc.lock.Unlock()

	cc.logger.Debugw("Configuration populated successfully",
		"enabled", s.Enabled,
		"managedApps", len(s.ManagedApps),
		"maxRecentApps", s.MaxRecentApps)
	return nil
}

// Save writes the given settings to disk and makes them current.
func (cc *CanonicalConfig) Save(s Settings) error {
	cc.fileLock.Lock()
	defer cc.fileLock.Unlock()

	s = cc.normalize(s)

	if err := cc.writeLocked(s); err != nil {
		return err
	}

	cc.lock.Lock()
	cc.settings = s
	cc.lock.Unlock()

	cc.logger.Infow("Saved configuration", "path", cc.path)
	return nil
}

// Update applies fn to a copy of the current settings and saves the result.
func (cc *CanonicalConfig) Update(fn func(s *Settings)) error {
	s := cc.Settings()
	fn(&s)
	return cc.Save(s)
}

// SubscribeToChanges returns a channel that receives a value after every successful reload.
func (cc *CanonicalConfig) SubscribeToChanges() chan bool {
	c := make(chan bool, 1)
	cc.reloadConsumers = append(cc.reloadConsumers, c)
	return c
}

// WatchConfigFileChanges reloads the config whenever the file is written by
// someone else. Blocks until StopWatchingConfigFile is called.
func (cc *CanonicalConfig) WatchConfigFileChanges() {
	cc.logger.Debugw("Starting to watch config file for changes", "path", cc.path)

	lastAttemptedReload := time.Now()

	// viper does the fsnotify plumbing, the cooldown is still ours since
	// many editors write a file twice
	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {
		if !isConfigRewrite(event) {
			return
		}

		now := time.Now()
		if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).After(now) || cc.wroteRecently(now) {
			return
		}

		cc.logger.Debugw("Config file modified, attempting reload", "event", event)

		// let the editor flush the new contents to disk
		<-time.After(delayBetweenEventAndReload)

		if err := cc.Load(); err != nil {
			cc.logger.Warnw("Failed to reload config file", "error", err)
		} else {
			cc.logger.Info("Reloaded config successfully")
			cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")
			cc.onConfigReloaded()
		}

		lastAttemptedReload = now
	})
	cc.userConfig.WatchConfig()

	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping config file watcher")
	cc.userConfig.OnConfigChange(func(fsnotify.Event) {})
}

// StopWatchingConfigFile ends WatchConfigFileChanges.
func (cc *CanonicalConfig) StopWatchingConfigFile() {
	close(cc.stopWatcherChannel)
}

// Reload re-reads the file on request (e.g. from the tray) and notifies subscribers.
func (cc *CanonicalConfig) Reload() error {
	if err := cc.Load(); err != nil {
		return err
	}
	cc.onConfigReloaded()
	return nil
}

func (cc *CanonicalConfig) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	for _, consumer := range cc.reloadConsumers {
		select {
		case consumer <- true:
		default:
			// a reload is already pending for this consumer
		}
	}
}

// isConfigRewrite reports whether event carries new file contents. Editors
// that save by renaming a temp file over the config produce Create, not Write.
func isConfigRewrite(event fsnotify.Event) bool {
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (cc *CanonicalConfig) wroteRecently(now time.Time) bool {
	cc.lock.RLock()
	defer cc.lock.RUnlock()

	return cc.lastSelfWrite.Add(minTimeBetweenReloadAttempts).After(now)
}

// writeLocked serializes s as YAML. Caller holds fileLock.
func (cc *CanonicalConfig) writeLocked(s Settings) error {
	payload, err := marshalSettings(s)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	cc.lock.Lock()
	cc.lastSelfWrite = time.Now()
	cc.lock.Unlock()

	if err := os.WriteFile(cc.path, payload, 0644); err != nil {
		cc.logger.Warnw("Failed to write config file", "path", cc.path, "error", err)
		return fmt.Errorf("write config %s: %w", cc.path, err)
	}

	return nil
}

func (cc *CanonicalConfig) handleConfigError(err error) error {
	cc.logger.Warnw("Failed to load configuration", "path", cc.path, "error", err)

	if strings.Contains(err.Error(), "yaml:") {
		cc.notifier.Notify("Invalid configuration format!",
			"Ensure the YAML file is properly formatted.")
	} else {
		cc.notifier.Notify("Error loading configuration!", "Check logs for more details.")
	}
	return fmt.Errorf("read config %s: %w", cc.path, err)
}

// normalize drops empty and duplicate app paths and fixes invalid limits.
func (cc *CanonicalConfig) normalize(s Settings) Settings {
	if s.MaxRecentApps <= 0 {
		cc.logger.Warnw("Invalid max recent apps specified, using default",
			"invalidValue", s.MaxRecentApps,
			"defaultValue", defaultMaxRecentApps)
		s.MaxRecentApps = defaultMaxRecentApps
	}

	s.ManagedApps = sortedAppPaths(funk.FilterString(s.ManagedApps, func(path string) bool {
		return strings.TrimSpace(path) != ""
	}))

	return s
}

// sortedAppPaths dedups paths case-insensitively and sorts them by their
// folded form, keeping the first spelling seen.
func sortedAppPaths(paths []string) []string {
	byFolded := make(map[string]string, len(paths))
	for _, path := range paths {
		folded := util.FoldPath(path)
		if _, ok := byFolded[folded]; !ok {
			byFolded[folded] = path
		}
	}

	keys := maps.Keys(byFolded)
	sort.Strings(keys)

	result := make([]string, 0, len(keys))
	for _, key := range keys {
		result = append(result, byFolded[key])
	}
	return result
}

func marshalSettings(s Settings) ([]byte, error) {
	if s.ManagedApps == nil {
		s.ManagedApps = []string{}
	}

	var buf bytes.Buffer
	buf.WriteString(configFileHeader)
	buf.WriteString("\n")

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(s); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
