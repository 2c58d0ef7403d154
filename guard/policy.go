package guard

import (
	"github.com/SwouitAzia/formshandler/config"
	"github.com/SwouitAzia/formshandler/protocol"
)

// Action is applied to a connection that commits a protocol violation.
type Action uint8

const (
	// Warn reports the violation and resets the session.
	Warn Action = iota
	// Disconnect reports the violation and drops the connection.
	Disconnect
)

func (a Action) String() string {
	if a == Disconnect {
		return "disconnect"
	}
	return "warn"
}

// Policy groups the rules that can change while the guard runs.
type Policy struct {
	Action            Action
	DisconnectMessage string
	Filter            *Filter
}

// DefaultPolicy warns on violations and uses DefaultFilter.
func DefaultPolicy() Policy {
	return Policy{
		Action:            Warn,
		DisconnectMessage: "Protocol violation",
		Filter:            DefaultFilter(),
	}
}

// PolicyFromConfig builds the policy described by cfg.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	if cfg.Violation.Policy == config.ActionDisconnect {
		p.Action = Disconnect
	}
	if cfg.Violation.DisconnectMessage != "" {
		p.DisconnectMessage = cfg.Violation.DisconnectMessage
	}
	ids := make([]protocol.ID, len(cfg.Filter.Packets))
	for i, id := range cfg.Filter.Packets {
		ids[i] = protocol.ID(id)
	}
	switch {
	case cfg.Filter.Mode == config.FilterDeny && len(ids) == 0:
		p.Filter = DenyList(DefaultDenied...)
	case cfg.Filter.Mode == config.FilterDeny:
		p.Filter = DenyList(ids...)
	case len(ids) > 0:
		p.Filter = AllowList(ids...)
	}
	return p
}
