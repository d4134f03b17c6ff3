package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	Host       string     `koanf:"host"`
	Upstream   Upstream   `koanf:"upstream"`
	Google     Google     `koanf:"google"`
	Credential Credential `koanf:"credential"`
	Metrics    Metrics    `koanf:"metrics"`
}

type Upstream struct {
	// Provider selects the calendar backend: "google" or "msgraph".
	Provider    string `koanf:"provider"`
	PageSize    int    `koanf:"pagesize"`
	BaseDelayMs int    `koanf:"basedelayms"`
	MaxDelayMs  int    `koanf:"maxdelayms"`
	MaxRetries  int    `koanf:"maxretries"`
}

type Google struct {
	CalendarId string `koanf:"calendarid"`
}

type Credential struct {
	// AccessToken is a static bearer token for local runs. In a deployment the
	// fronting auth service owns token storage and refresh.
	AccessToken string `koanf:"accesstoken"`
}

type Metrics struct {
	CacheTtlMinutes       int  `koanf:"cachettlminutes"`
	ComputeTimeoutSeconds int  `koanf:"computetimeoutseconds"`
	RequestTimeoutSeconds int  `koanf:"requesttimeoutseconds"`
	Blob                  Blob `koanf:"blob"`
}

// Blob configures the composite 0-100 score. Weights are normalized over
// their sum before use, so only their ratio matters.
type Blob struct {
	LoadWeight       float64 `koanf:"loadweight"`
	BalanceWeight    float64 `koanf:"balanceweight"`
	GapWeight        float64 `koanf:"gapweight"`
	CapacityFraction float64 `koanf:"capacityfraction"`
	TargetGapMinutes float64 `koanf:"targetgapminutes"`
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Application{
		Host: "http://localhost:3000",
		Upstream: Upstream{
			Provider:    "google",
			PageSize:    100,
			BaseDelayMs: 500,
			MaxDelayMs:  30000,
			MaxRetries:  5,
		},
		Google: Google{
			CalendarId: "primary",
		},
		Metrics: Metrics{
			CacheTtlMinutes:       5,
			ComputeTimeoutSeconds: 30,
			RequestTimeoutSeconds: 15,
			Blob: Blob{
				LoadWeight:       1,
				BalanceWeight:    1,
				GapWeight:        1,
				CapacityFraction: 0.25,
				TargetGapMinutes: 60,
			},
		},
	}, "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "GRAPHMVP_",
		TransformFunc: func(k, v string) (string, any) {
			// Transform the key.
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "GRAPHMVP_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
