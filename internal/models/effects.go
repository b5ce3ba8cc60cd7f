package models

type EffectKind string

const (
	EffectEmail    EffectKind = "email"
	EffectWebhook  EffectKind = "webhook"
	EffectRealtime EffectKind = "realtime"
	EffectAudit    EffectKind = "audit"
)

// Effect is one side effect of an accepted transition. Action is only set for webhooks.
type Effect struct {
	Kind   EffectKind
	Action WebhookAction
}

func (e Effect) String() string {
	if e.Action != "" {
		return string(e.Kind) + ":" + string(e.Action)
	}
	return string(e.Kind)
}
