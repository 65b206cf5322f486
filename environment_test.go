package allegro

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvironmentByName(t *testing.T) {
	env, ok := EnvironmentByName("production")
	assert.True(t, ok)
	assert.Equal(t, Production, env)

	env, ok = EnvironmentByName("sandbox")
	assert.True(t, ok)
	assert.Equal(t, Sandbox, env)

	_, ok = EnvironmentByName("staging")
	assert.False(t, ok)
}

func TestWithEnvironmentSandbox(t *testing.T) {
	api := New(testCredentials, WithEnvironment(Sandbox))

	assert.Equal(t, "https://api.allegro.pl.allegrosandbox.pl", api.BaseURI())
	assert.Equal(t, "https://upload.allegro.pl.allegrosandbox.pl/sale/images", api.Path("sale", "images").UploadURI())
	assert.Equal(t,
		"https://allegro.pl.allegrosandbox.pl/auth/oauth/authorize?response_type=code&client_id=c1&redirect_uri=https%3A%2F%2Fx%2Fcb",
		api.AuthorizationURI(),
	)
}
