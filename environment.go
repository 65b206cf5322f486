package allegro

import "golang.org/x/oauth2"

// Environment groups the origins of one Allegro deployment.
// APIURL and UploadURL are distinct hosts: binary and upload endpoints are
// only served by the upload host.
type Environment struct {
	APIURL    string
	UploadURL string
	Endpoint  oauth2.Endpoint
}

// Production is the live Allegro marketplace.
var Production = Environment{
	APIURL:    "https://api.allegro.pl",
	UploadURL: "https://upload.allegro.pl",
	Endpoint: oauth2.Endpoint{
		AuthURL:   "https://allegro.pl/auth/oauth/authorize",
		TokenURL:  "https://allegro.pl/auth/oauth/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	},
}

// Sandbox is the Allegro test environment. It uses separate accounts and
// application registrations from Production.
var Sandbox = Environment{
	APIURL:    "https://api.allegro.pl.allegrosandbox.pl",
	UploadURL: "https://upload.allegro.pl.allegrosandbox.pl",
	Endpoint: oauth2.Endpoint{
		AuthURL:   "https://allegro.pl.allegrosandbox.pl/auth/oauth/authorize",
		TokenURL:  "https://allegro.pl.allegrosandbox.pl/auth/oauth/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	},
}

// EnvironmentByName returns the environment registered under name
// ("production" or "sandbox").
func EnvironmentByName(name string) (Environment, bool) {
	switch name {
	case "production":
		return Production, true
	case "sandbox":
		return Sandbox, true
	default:
		return Environment{}, false
	}
}
