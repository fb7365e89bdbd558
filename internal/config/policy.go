package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReminderPolicy is the organization-wide renewal reminder configuration.
// It is consumed by the scheduling engine; the settings screens edit the
// backing YAML file and the holder picks changes up without a restart.
type ReminderPolicy struct {
	OffsetsDays              []int `mapstructure:"offsetsDays" json:"offsets_days"`
	PostExpiryOffsetsDays    []int `mapstructure:"postExpiryOffsetsDays" json:"post_expiry_offsets_days"`
	EscalateAfterDays        int   `mapstructure:"escalateAfterDays" json:"escalate_after_days"`
	EscalationRepeatDays     int   `mapstructure:"escalationRepeatDays" json:"escalation_repeat_days"`
	SoonThresholdDays        int   `mapstructure:"soonThresholdDays" json:"soon_threshold_days"`
	RecentlyRenewedGraceDays int   `mapstructure:"recentlyRenewedGraceDays" json:"recently_renewed_grace_days"`
	MissedTierGraceDays      int   `mapstructure:"missedTierGraceDays" json:"missed_tier_grace_days"`
	AlertPageCap             int   `mapstructure:"alertPageCap" json:"alert_page_cap"`
}

func DefaultReminderPolicy() ReminderPolicy {
	return ReminderPolicy{
		OffsetsDays:              []int{30, 14, 7, 1},
		PostExpiryOffsetsDays:    []int{1, 7},
		EscalateAfterDays:        3,
		EscalationRepeatDays:     3,
		SoonThresholdDays:        30,
		RecentlyRenewedGraceDays: 7,
		MissedTierGraceDays:      2,
		AlertPageCap:             100,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds ReminderPolicy
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("reminders")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/renewd/config") // Volume-mounted config
	v.AddConfigPath("/etc/renewd")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("RENEWD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := DefaultReminderPolicy()
	if fileFound {
		if err := v.UnmarshalKey("reminders", &cfg); err != nil {
			return nil, err
		}
		cfg = cfg.withDefaults()
		if err := validateReminderPolicy(cfg); err != nil {
			return nil, err
		}
	} else {
		log.Printf("[reminder-policy] no config file found, using defaults")
	}

	holder := &PolicyHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated := DefaultReminderPolicy()
			if err := v.UnmarshalKey("reminders", &updated); err != nil {
				log.Printf("[reminder-policy] reload failed: %v", err)
				return
			}
			updated = updated.withDefaults()
			if err := validateReminderPolicy(updated); err != nil {
				log.Printf("[reminder-policy] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[reminder-policy] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *PolicyHolder) Get() ReminderPolicy {
	return h.current.Load().(ReminderPolicy)
}

// Store replaces the active policy. Used by the settings API and tests.
func (h *PolicyHolder) Store(p ReminderPolicy) error {
	p = p.withDefaults()
	if err := validateReminderPolicy(p); err != nil {
		return err
	}
	h.current.Store(p)
	return nil
}

// NewStaticPolicyHolder returns a holder pinned to the given policy.
func NewStaticPolicyHolder(p ReminderPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p.withDefaults())
	return holder
}

func (p ReminderPolicy) withDefaults() ReminderPolicy {
	defaults := DefaultReminderPolicy()
	if len(p.OffsetsDays) == 0 {
		p.OffsetsDays = defaults.OffsetsDays
	}
	if p.EscalateAfterDays <= 0 {
		p.EscalateAfterDays = defaults.EscalateAfterDays
	}
	if p.EscalationRepeatDays <= 0 {
		p.EscalationRepeatDays = defaults.EscalationRepeatDays
	}
	if p.SoonThresholdDays <= 0 {
		p.SoonThresholdDays = defaults.SoonThresholdDays
	}
	if p.RecentlyRenewedGraceDays <= 0 {
		p.RecentlyRenewedGraceDays = defaults.RecentlyRenewedGraceDays
	}
	if p.MissedTierGraceDays <= 0 {
		p.MissedTierGraceDays = defaults.MissedTierGraceDays
	}
	if p.AlertPageCap <= 0 {
		p.AlertPageCap = defaults.AlertPageCap
	}
	return p
}

func validateReminderPolicy(p ReminderPolicy) error {
	for _, offset := range p.OffsetsDays {
		if offset < 0 {
			return errors.New("reminders.offsetsDays must be non-negative")
		}
	}
	for _, offset := range p.PostExpiryOffsetsDays {
		if offset <= 0 {
			return errors.New("reminders.postExpiryOffsetsDays must be positive")
		}
	}
	return nil
}
