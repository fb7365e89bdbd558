package providers

import (
	clientdomain "github.com/agencyops/renewd/internal/client/domain"
	"github.com/agencyops/renewd/internal/clock"
	"github.com/agencyops/renewd/internal/config"
	dispatchdomain "github.com/agencyops/renewd/internal/dispatch/domain"
	"github.com/agencyops/renewd/internal/providers/email"
	"github.com/agencyops/renewd/internal/providers/gateway"
	"github.com/agencyops/renewd/internal/providers/inapp"
	"github.com/agencyops/renewd/internal/providers/sms"
	"github.com/agencyops/renewd/internal/providers/whatsapp"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("providers",
	email.Module,
	fx.Provide(NewRegistry),
)

type RegistryParams struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node
	Clock clock.Clock
	Email *email.Sender
}

// NewRegistry assembles the channel transports the dispatch coordinator
// draws from. Channels without gateway configuration fall back to noop
// transports so development environments still exercise the full path.
func NewRegistry(p RegistryParams) dispatchdomain.SenderRegistry {
	registry := dispatchdomain.SenderRegistry{
		clientdomain.ChannelEmail: p.Email,
		clientdomain.ChannelInApp: inapp.NewSender(p.DB, p.GenID, p.Clock),
	}

	if p.Cfg.SMS.BaseURL != "" {
		registry[clientdomain.ChannelSMS] = sms.NewSender(
			gateway.NewClient(p.Cfg.SMS.BaseURL, p.Cfg.SMS.APIKey),
			p.Cfg.SMS.Sender,
		)
	} else {
		registry[clientdomain.ChannelSMS] = &sms.NoOpSender{}
	}

	if p.Cfg.Chat.BaseURL != "" {
		registry[clientdomain.ChannelWhatsApp] = whatsapp.NewSender(
			gateway.NewClient(p.Cfg.Chat.BaseURL, p.Cfg.Chat.APIKey),
			p.Cfg.Chat.Sender,
		)
	} else {
		registry[clientdomain.ChannelWhatsApp] = &whatsapp.NoOpSender{}
	}

	return registry
}
