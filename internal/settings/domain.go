package settings

import (
	"context"

	"github.com/roleboard/roleboard/internal/upstream"
)

// Gateway is the slice of the upstream client the settings page needs.
type Gateway interface {
	GetSettings(ctx context.Context, token string) (*upstream.Response, error)
	Settings(ctx context.Context, token string) (upstream.Settings, error)
	UpdateSettings(ctx context.Context, token string, settings upstream.Settings) (*upstream.Response, error)
}

type smtpForm struct {
	FromAddress string `json:"from_address" validate:"omitempty,email"`
	Host        string `json:"host"`
	Port        string `json:"port" validate:"omitempty,port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Encryption  string `json:"encryption" validate:"omitempty,oneof=tls ssl none"`
}

type trestleForm struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	APIURL       string `json:"api_url" validate:"omitempty,url"`
}

// form mirrors upstream.Settings with validation rules attached.
type form struct {
	SMTP    smtpForm    `json:"smtp"`
	Trestle trestleForm `json:"trestle"`
}

func formFrom(s upstream.Settings) form {
	return form{
		SMTP:    smtpForm(s.SMTP),
		Trestle: trestleForm(s.Trestle),
	}
}
