package settings

import (
	"context"
	"strings"

	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
)

// Service reads and replaces the settings document.
type Service struct {
	gateway Gateway
	audit   *shared.AuditLogger
}

// NewService constructs a new Service. audit may be nil.
func NewService(gateway Gateway, audit *shared.AuditLogger) *Service {
	return &Service{gateway: gateway, audit: audit}
}

// Fetch relays the settings document.
func (s *Service) Fetch(ctx context.Context, token string) (*upstream.Response, error) {
	return s.gateway.GetSettings(ctx, token)
}

// Load decodes the settings document.
func (s *Service) Load(ctx context.Context, token string) (upstream.Settings, error) {
	return s.gateway.Settings(ctx, token)
}

// Update replaces the settings document. Secrets are never written to the
// audit trail, only which sections changed.
func (s *Service) Update(ctx context.Context, token string, settings upstream.Settings) (*upstream.Response, error) {
	resp, err := s.gateway.UpdateSettings(ctx, token, settings)
	if err != nil {
		return nil, err
	}
	s.audit.RecordQuietly(ctx, shared.AuditLog{
		Actor:  shared.ActorFromContext(ctx),
		Action: shared.AuditSettingsChange,
		Entity: "settings",
		Meta: map[string]any{
			"smtp_host":       settings.SMTP.Host,
			"trestle_api_url": settings.Trestle.APIURL,
		},
	})
	return resp, nil
}

// Normalize trims every field.
func Normalize(s upstream.Settings) upstream.Settings {
	t := strings.TrimSpace
	s.SMTP = upstream.SMTPSettings{
		FromAddress: t(s.SMTP.FromAddress),
		Host:        t(s.SMTP.Host),
		Port:        t(s.SMTP.Port),
		Username:    t(s.SMTP.Username),
		Password:    s.SMTP.Password,
		Encryption:  strings.ToLower(t(s.SMTP.Encryption)),
	}
	s.Trestle = upstream.TrestleSettings{
		ClientID:     t(s.Trestle.ClientID),
		ClientSecret: s.Trestle.ClientSecret,
		APIURL:       t(s.Trestle.APIURL),
	}
	return s
}
