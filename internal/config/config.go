// Package config loads the machine configuration from YAML.
//
// A file only needs the keys it changes: values are decoded on top of
// Default(), so an empty file yields the stock machine.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/cardsort/pkg/adapters/pigpio"
	"github.com/aretw0/cardsort/pkg/dispense"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/feed"
	"github.com/aretw0/cardsort/pkg/sorter"
)

// Counter backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config is the full machine configuration.
type Config struct {
	Board    BoardConfig    `mapstructure:"board" yaml:"board"`
	Feed     FeedConfig     `mapstructure:"feed" yaml:"feed"`
	Panel    PanelConfig    `mapstructure:"panel" yaml:"panel"`
	Dispense DispenseConfig `mapstructure:"dispense" yaml:"dispense"`
	Sorter   SorterConfig   `mapstructure:"sorter" yaml:"sorter"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Identify IdentifyConfig `mapstructure:"identify" yaml:"identify"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	MQTT     MQTTConfig     `mapstructure:"mqtt" yaml:"mqtt"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// BoardConfig locates the pigpio daemon.
type BoardConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	Pull string `mapstructure:"pull" yaml:"pull"`
}

// FeedConfig describes the feed mechanism.
type FeedConfig struct {
	EntryMotor      []int         `mapstructure:"entry_motor" yaml:"entry_motor"`
	PinchMotor      []int         `mapstructure:"pinch_motor" yaml:"pinch_motor"`
	TransportMotor  []int         `mapstructure:"transport_motor" yaml:"transport_motor"`
	EntrySensor     int           `mapstructure:"entry_sensor" yaml:"entry_sensor"`
	ExitSensor      int           `mapstructure:"exit_sensor" yaml:"exit_sensor"`
	SensorActiveLow bool          `mapstructure:"sensor_active_low" yaml:"sensor_active_low"`
	EntryTimeout    time.Duration `mapstructure:"entry_timeout" yaml:"entry_timeout"`
	ClearTimeout    time.Duration `mapstructure:"clear_timeout" yaml:"clear_timeout"`
	ExitTimeout     time.Duration `mapstructure:"exit_timeout" yaml:"exit_timeout"`
	StableWindow    time.Duration `mapstructure:"stable_window" yaml:"stable_window"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ExtraFeed       time.Duration `mapstructure:"motor2_extra_feed" yaml:"motor2_extra_feed"`
	StepDelay       time.Duration `mapstructure:"step_delay" yaml:"step_delay"`

	// Simulated travel time between sensors when running without hardware.
	SimulatedTravel time.Duration `mapstructure:"simulated_travel" yaml:"simulated_travel"`
}

// PanelConfig lists the sensors shown on the diagnostics panel.
type PanelConfig struct {
	Sensors         []int `mapstructure:"sensors" yaml:"sensors"`
	SensorActiveLow bool  `mapstructure:"sensor_active_low" yaml:"sensor_active_low"`
}

// DispenseConfig holds the servo table and pauses.
type DispenseConfig struct {
	CardServo dispense.Servo         `mapstructure:"card_servo" yaml:"card_servo"`
	Gates     map[int]dispense.Servo `mapstructure:"gates" yaml:"gates"`
	Settle    time.Duration          `mapstructure:"settle" yaml:"settle"`
	Hold      time.Duration          `mapstructure:"hold" yaml:"hold"`
}

// SorterConfig holds the orchestrator pauses.
type SorterConfig struct {
	RetryPause  time.Duration `mapstructure:"retry_pause" yaml:"retry_pause"`
	CyclePause  time.Duration `mapstructure:"cycle_pause" yaml:"cycle_pause"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
}

// StorageConfig selects where counters, criteria and card records live.
type StorageConfig struct {
	Dir          string        `mapstructure:"dir" yaml:"dir"`
	Counters     string        `mapstructure:"counters" yaml:"counters"`
	CriteriaPath string        `mapstructure:"criteria_path" yaml:"criteria_path"`
	Redis        RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Archive      ArchiveConfig `mapstructure:"archive" yaml:"archive"`
}

// RedisConfig is used when storage.counters is "redis".
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

// ArchiveConfig controls the card record archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// IdentifyConfig selects the recognition command and its artifacts.
type IdentifyConfig struct {
	Command      string `mapstructure:"command" yaml:"command"`
	CommandsFile string `mapstructure:"commands_file" yaml:"commands_file"`
	BaseDir      string `mapstructure:"base_dir" yaml:"base_dir"`
	ScanPath     string `mapstructure:"scan_path" yaml:"scan_path"`
	CropPath     string `mapstructure:"crop_path" yaml:"crop_path"`
	DisplayPath  string `mapstructure:"display_path" yaml:"display_path"`
	FailedDir    string `mapstructure:"failed_dir" yaml:"failed_dir"`
}

// HTTPConfig configures the control surface.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// MQTTConfig configures cycle event publishing.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration of the stock machine.
func Default() Config {
	ft := feed.DefaultTiming()
	dt := dispense.DefaultTiming()
	st := sorter.DefaultTiming()

	gatePins := map[int]int{1: 13, 2: 15, 3: 20, 4: 18, 5: 21, 6: 16, 7: 23, 8: 24, 9: 25}
	gates := make(map[int]dispense.Servo, len(gatePins))
	for bin, pin := range gatePins {
		gates[bin] = dispense.Servo{Pin: pin, OpenDegrees: 45, CloseDegrees: 90}
	}

	return Config{
		Board: BoardConfig{Addr: pigpio.DefaultAddr, Pull: "down"},
		Feed: FeedConfig{
			EntryMotor:      []int{19, 26, 4, 17},
			PinchMotor:      []int{27, 22, 10, 9},
			TransportMotor:  []int{11, 7, 5, 6},
			EntrySensor:     8,
			ExitSensor:      14,
			SensorActiveLow: true,
			EntryTimeout:    ft.EntryTimeout,
			ClearTimeout:    ft.ClearTimeout,
			ExitTimeout:     ft.ExitTimeout,
			StableWindow:    ft.StableWindow,
			PollInterval:    ft.PollInterval,
			ExtraFeed:       ft.ExtraFeed,
			StepDelay:       ft.StepDelay,
			SimulatedTravel: 200 * time.Millisecond,
		},
		Panel: PanelConfig{Sensors: []int{8, 14}, SensorActiveLow: true},
		Dispense: DispenseConfig{
			CardServo: dispense.Servo{Pin: 12, OpenDegrees: 120, CloseDegrees: 60},
			Gates:     gates,
			Settle:    dt.Settle,
			Hold:      dt.Hold,
		},
		Sorter: SorterConfig{
			RetryPause:  st.RetryPause,
			CyclePause:  st.CyclePause,
			StopTimeout: st.StopTimeout,
		},
		Storage: StorageConfig{
			Dir:          ".cardsort",
			Counters:     BackendFile,
			CriteriaPath: ".cardsort/criteria.json",
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Prefix:  "cardsort:",
				LockTTL: 10 * time.Second,
			},
			Archive: ArchiveConfig{Enabled: false, Path: ".cardsort/cards.db"},
		},
		Identify: IdentifyConfig{
			Command:      "identify",
			CommandsFile: "commands.yaml",
			ScanPath:     ".cardsort/scan.png",
			CropPath:     ".cardsort/combined_crop.jpg",
			DisplayPath:  ".cardsort/last_scanned.png",
			FailedDir:    ".cardsort/failed",
		},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Metrics: MetricsConfig{Enabled: true},
		MQTT:    MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "cardsort", Topic: "cardsort"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over Default and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := Decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode merges YAML data into cfg.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	// Lists given in the file replace the defaults instead of merging by index.
	if feedRaw, ok := raw["feed"].(map[string]any); ok {
		for key, field := range map[string]*[]int{
			"entry_motor":     &cfg.Feed.EntryMotor,
			"pinch_motor":     &cfg.Feed.PinchMotor,
			"transport_motor": &cfg.Feed.TransportMotor,
		} {
			if _, set := feedRaw[key]; set {
				*field = nil
			}
		}
	}
	if panelRaw, ok := raw["panel"].(map[string]any); ok {
		if _, set := panelRaw["sensors"]; set {
			cfg.Panel.Sensors = nil
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDuration,
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// secondsToDuration lets timings be written as plain seconds (1.2) as well as "1.2s".
func secondsToDuration(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// Validate rejects configurations the machine cannot run with.
func (c Config) Validate() error {
	var errs []error

	if err := c.FeedTiming().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Motors().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.DispenseTable(); err != nil {
		errs = append(errs, err)
	}
	if c.Dispense.Settle < 0 || c.Dispense.Hold < 0 {
		errs = append(errs, errors.New("dispense: settle and hold must not be negative"))
	}
	if c.Sorter.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sorter: stop timeout must be positive, got %s", c.Sorter.StopTimeout))
	}
	if c.Sorter.RetryPause < 0 || c.Sorter.CyclePause < 0 {
		errs = append(errs, errors.New("sorter: pauses must not be negative"))
	}
	switch c.Storage.Counters {
	case BackendFile:
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage: redis addr is required"))
		}
		if c.Storage.Redis.LockTTL <= 0 {
			errs = append(errs, errors.New("storage: redis lock_ttl must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown counter backend %q", c.Storage.Counters))
	}
	if c.Storage.Archive.Enabled && c.Storage.Archive.Path == "" {
		errs = append(errs, errors.New("storage: archive path is required when enabled"))
	}
	if strings.TrimSpace(c.Identify.Command) == "" {
		errs = append(errs, errors.New("identify: command is required"))
	}
	if _, err := pigpio.ParsePull(c.Board.Pull); err != nil {
		errs = append(errs, fmt.Errorf("board: %w", err))
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		errs = append(errs, errors.New("mqtt: broker and topic are required when enabled"))
	}
	if err := c.checkPinConflicts(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// checkPinConflicts rejects a servo or sensor pin that is also a motor coil.
func (c Config) checkPinConflicts() error {
	coils := make(map[int]bool)
	for _, pins := range [][]int{c.Feed.EntryMotor, c.Feed.PinchMotor, c.Feed.TransportMotor} {
		for _, p := range pins {
			coils[p] = true
		}
	}
	check := func(what string, pin int) error {
		if coils[pin] {
			return fmt.Errorf("%s: pin %d is a motor coil", what, pin)
		}
		return nil
	}
	var errs []error
	errs = append(errs, check("entry sensor", c.Feed.EntrySensor), check("exit sensor", c.Feed.ExitSensor))
	errs = append(errs, check("card servo", c.Dispense.CardServo.Pin))
	for bin, g := range c.Dispense.Gates {
		errs = append(errs, check(fmt.Sprintf("gate %d", bin), g.Pin))
	}
	return errors.Join(errs...)
}

// FeedTiming converts the feed section.
func (c Config) FeedTiming() feed.Timing {
	return feed.Timing{
		EntryTimeout: c.Feed.EntryTimeout,
		ClearTimeout: c.Feed.ClearTimeout,
		ExitTimeout:  c.Feed.ExitTimeout,
		StableWindow: c.Feed.StableWindow,
		PollInterval: c.Feed.PollInterval,
		ExtraFeed:    c.Feed.ExtraFeed,
		StepDelay:    c.Feed.StepDelay,
	}
}

// Motors converts the motor pins.
func (c Config) Motors() feed.Motors {
	return feed.Motors{
		Entry:     c.Feed.EntryMotor,
		Pinch:     c.Feed.PinchMotor,
		Transport: c.Feed.TransportMotor,
	}
}

// FeedSensors converts the feed sensor pins.
func (c Config) FeedSensors() feed.Sensors {
	return feed.Sensors{
		Entry:     c.Feed.EntrySensor,
		Exit:      c.Feed.ExitSensor,
		ActiveLow: c.Feed.SensorActiveLow,
	}
}

// DispenseTable validates and converts the servo table.
func (c Config) DispenseTable() (dispense.Table, error) {
	return dispense.NewTable(c.Dispense.Gates, c.Dispense.CardServo)
}

// DispenseTiming converts the dispense pauses.
func (c Config) DispenseTiming() dispense.Timing {
	return dispense.Timing{Settle: c.Dispense.Settle, Hold: c.Dispense.Hold}
}

// SorterTiming converts the sorter section.
func (c Config) SorterTiming() sorter.Timing {
	return sorter.Timing{
		RetryPause:  c.Sorter.RetryPause,
		CyclePause:  c.Sorter.CyclePause,
		StopTimeout: c.Sorter.StopTimeout,
	}
}

// OutputPins lists every pin driven by the machine.
func (c Config) OutputPins() []int {
	var pins []int
	pins = append(pins, c.Feed.EntryMotor...)
	pins = append(pins, c.Feed.PinchMotor...)
	pins = append(pins, c.Feed.TransportMotor...)
	pins = append(pins, c.Dispense.CardServo.Pin)
	for bin := 1; bin < domain.DefaultBin; bin++ {
		if g, ok := c.Dispense.Gates[bin]; ok {
			pins = append(pins, g.Pin)
		}
	}
	return pins
}

// InputPins lists every sensor pin without duplicates.
func (c Config) InputPins() []int {
	seen := make(map[int]bool)
	var pins []int
	for _, p := range append([]int{c.Feed.EntrySensor, c.Feed.ExitSensor}, c.Panel.Sensors...) {
		if !seen[p] {
			seen[p] = true
			pins = append(pins, p)
		}
	}
	return pins
}
